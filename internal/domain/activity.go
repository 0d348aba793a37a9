// Package domain defines the activity entity, its request shapes and the error taxonomy
// shared by the lifecycle service, the query engine and the store gateways.
package domain

import "time"

// ActivityType classifies the work recorded by an activity.
type ActivityType string

const (
	ActivityTypeVisit             ActivityType = "visit"
	ActivityTypeWait              ActivityType = "wait"
	ActivityTypeUnaccountableTime ActivityType = "unaccountable time"
)

// ActivityTypes lists every accepted activity type.
var ActivityTypes = []ActivityType{ActivityTypeVisit, ActivityTypeWait, ActivityTypeUnaccountableTime}

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// StationType classifies a test station.
type StationType string

const (
	StationTypeATF  StationType = "atf"
	StationTypeGVTS StationType = "gvts"
	StationTypeHQ   StationType = "hq"
	StationTypePOTF StationType = "potf"
)

// StationTypes lists every accepted station type.
var StationTypes = []StationType{StationTypeATF, StationTypeGVTS, StationTypeHQ, StationTypePOTF}

// WaitReason explains why a tester was waiting or otherwise unaccounted for.
type WaitReason string

const (
	WaitReasonWaitingForVehicle WaitReason = "Waiting for vehicle"
	WaitReasonBreak             WaitReason = "Break"
	WaitReasonAdmin             WaitReason = "Admin"
	WaitReasonSiteIssue         WaitReason = "Site issue"
	WaitReasonOther             WaitReason = "Other"
)

// WaitReasons lists every accepted wait reason.
var WaitReasons = []WaitReason{
	WaitReasonWaitingForVehicle,
	WaitReasonBreak,
	WaitReasonAdmin,
	WaitReasonSiteIssue,
	WaitReasonOther,
}

// ActivityDayLayout is the layout of the derived activityDay attribute.
const ActivityDayLayout = "2006-01-02"

// Activity is the persisted record. The zero EndTime (nil) marks an open activity and is
// stored as an explicit null so the "endTime has no value" filters match it.
type Activity struct {
	ID                 string       `json:"id" dynamodbav:"id"`
	ParentID           string       `json:"parentId,omitempty" dynamodbav:"parentId,omitempty"`
	ActivityType       ActivityType `json:"activityType" dynamodbav:"activityType"`
	TestStationName    string       `json:"testStationName" dynamodbav:"testStationName"`
	TestStationPNumber string       `json:"testStationPNumber" dynamodbav:"testStationPNumber"`
	TestStationEmail   string       `json:"testStationEmail" dynamodbav:"testStationEmail"`
	TestStationType    StationType  `json:"testStationType" dynamodbav:"testStationType"`
	TesterName         string       `json:"testerName" dynamodbav:"testerName"`
	TesterStaffID      string       `json:"testerStaffId" dynamodbav:"testerStaffId"`
	TesterEmail        string       `json:"testerEmail,omitempty" dynamodbav:"testerEmail,omitempty"`
	StartTime          time.Time    `json:"startTime" dynamodbav:"startTime"`
	EndTime            *time.Time   `json:"endTime" dynamodbav:"endTime"`
	WaitReason         []WaitReason `json:"waitReason,omitempty" dynamodbav:"waitReason,omitempty"`
	Notes              *string      `json:"notes" dynamodbav:"notes"`
	ActivityDay        string       `json:"activityDay" dynamodbav:"activityDay"`
}

// IsOpen reports whether the activity has not been ended yet.
func (a Activity) IsOpen() bool {
	return a.EndTime == nil
}

// ActivityDayOf derives the activityDay partition value from a start time.
func ActivityDayOf(start time.Time) string {
	return start.UTC().Format(ActivityDayLayout)
}

// Station groups the test station attributes carried by every activity.
type Station struct {
	Name    string
	PNumber string
	Email   string
	Type    StationType
}

// Tester groups the staff attributes carried by every activity.
type Tester struct {
	Name    string
	StaffID string
}
