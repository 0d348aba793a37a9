// Package events defines the payloads published around the activity lifecycle.
package events

import "time"

// Event types carried in the "event-type" message header.
const (
	TypeActivityStarted        = "activity.started"
	TypeActivityEnded          = "activity.ended"
	TypeActivityUpdated        = "activity.updated"
	TypeActivityCloseRequested = "activity.close_requested"
)

// Types lists every event type the service emits or consumes.
var Types = []string{TypeActivityStarted, TypeActivityEnded, TypeActivityUpdated, TypeActivityCloseRequested}

// ActivityStarted is emitted when a new activity is stored.
type ActivityStarted struct {
	ActivityID         string     `json:"activity_id"`
	ParentID           string     `json:"parent_id,omitempty"`
	ActivityType       string     `json:"activity_type"`
	TesterStaffID      string     `json:"tester_staff_id"`
	TestStationPNumber string     `json:"test_station_p_number"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	ActivityDay        string     `json:"activity_day"`
}

// ActivityEnded is emitted when an open activity is closed. Ends of already closed
// activities are not announced.
type ActivityEnded struct {
	ActivityID    string    `json:"activity_id"`
	ActivityType  string    `json:"activity_type"`
	TesterStaffID string    `json:"tester_staff_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// ActivityUpdated is emitted for every activity rewritten by an update batch.
type ActivityUpdated struct {
	ActivityID string   `json:"activity_id"`
	WaitReason []string `json:"wait_reason"`
	Notes      *string  `json:"notes,omitempty"`
}

// CloseRequested asks the consumer to end an activity. EndTime is optional; when empty the
// consumer ends the activity at its own clock.
type CloseRequested struct {
	ActivityID  string     `json:"activity_id"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
}

// Envelope pairs an event type with its key and payload, ready for a publisher.
type Envelope struct {
	Type    string
	Key     string
	Payload any
}
