package publish

const activityStartedSchema = `{
  "type": "object",
  "title": "ActivityStarted",
  "properties": {
    "activity_id": {"type": "string"},
    "parent_id": {"type": "string"},
    "activity_type": {"type": "string", "enum": ["visit", "wait", "unaccountable time"]},
    "tester_staff_id": {"type": "string"},
    "test_station_p_number": {"type": "string"},
    "start_time": {"type": "string", "format": "date-time"},
    "end_time": {"type": "string", "format": "date-time"},
    "activity_day": {"type": "string", "format": "date"}
  },
  "required": ["activity_id", "activity_type", "tester_staff_id", "test_station_p_number", "start_time", "activity_day"],
  "additionalProperties": false
}`

const activityEndedSchema = `{
  "type": "object",
  "title": "ActivityEnded",
  "properties": {
    "activity_id": {"type": "string"},
    "activity_type": {"type": "string"},
    "tester_staff_id": {"type": "string"},
    "start_time": {"type": "string", "format": "date-time"},
    "end_time": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "activity_type", "tester_staff_id", "start_time", "end_time"],
  "additionalProperties": false
}`

const activityUpdatedSchema = `{
  "type": "object",
  "title": "ActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "wait_reason": {"type": "array", "items": {"type": "string"}},
    "notes": {"type": ["string", "null"]}
  },
  "required": ["activity_id", "wait_reason"],
  "additionalProperties": false
}`

const closeRequestedSchema = `{
  "type": "object",
  "title": "CloseRequested",
  "properties": {
    "activity_id": {"type": "string"},
    "end_time": {"type": "string", "format": "date-time"},
    "requested_by": {"type": "string"}
  },
  "required": ["activity_id"],
  "additionalProperties": false
}`
