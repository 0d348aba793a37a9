package domain

import "time"

// CreateRequest is the create payload as received from a caller. Shape rules live in the
// struct tags and are enforced by the payload validator before Candidate is called.
type CreateRequest struct {
	ParentID           string       `json:"parentId,omitempty"`
	ActivityType       ActivityType `json:"activityType" validate:"required,activitytype"`
	TestStationName    string       `json:"testStationName" validate:"required"`
	TestStationPNumber string       `json:"testStationPNumber" validate:"required"`
	TestStationEmail   string       `json:"testStationEmail" validate:"omitempty,email"`
	TestStationType    StationType  `json:"testStationType" validate:"required,stationtype"`
	TesterName         string       `json:"testerName" validate:"required,min=1,max=60"`
	TesterStaffID      string       `json:"testerStaffId" validate:"required"`
	TesterEmail        string       `json:"testerEmail,omitempty" validate:"omitempty,email"`
	StartTime          *time.Time   `json:"startTime,omitempty"`
	EndTime            *time.Time   `json:"endTime,omitempty"`
	WaitReason         []WaitReason `json:"waitReason,omitempty" validate:"omitempty,dive,waitreason"`
	Notes              *string      `json:"notes,omitempty"`
}

// Candidate is a create request narrowed to the field set legal for its activity type.
// The only implementations are VisitCandidate and ChildCandidate.
type Candidate interface {
	Type() ActivityType
	candidate()
}

// VisitCandidate is a top-level visit. It has no parent by construction.
type VisitCandidate struct {
	Station     Station
	Tester      Tester
	TesterEmail string
	StartTime   *time.Time
	EndTime     *time.Time
	WaitReason  []WaitReason
	Notes       *string
}

// Type implements Candidate.
func (VisitCandidate) Type() ActivityType { return ActivityTypeVisit }
func (VisitCandidate) candidate()         {}

// ChildCandidate is a wait or unaccountable-time activity anchored to a parent.
type ChildCandidate struct {
	Kind       ActivityType
	ParentID   string
	Station    Station
	Tester     Tester
	StartTime  *time.Time
	EndTime    *time.Time
	WaitReason []WaitReason
	Notes      *string
}

// Type implements Candidate.
func (c ChildCandidate) Type() ActivityType { return c.Kind }
func (ChildCandidate) candidate()           {}

// Candidate applies the parent-id policy and returns the variant matching the activity type.
func (r CreateRequest) Candidate() (Candidate, error) {
	station := Station{
		Name:    r.TestStationName,
		PNumber: r.TestStationPNumber,
		Email:   r.TestStationEmail,
		Type:    r.TestStationType,
	}
	tester := Tester{Name: r.TesterName, StaffID: r.TesterStaffID}

	if r.ActivityType == ActivityTypeVisit {
		if r.ParentID != "" {
			return nil, ErrParentIDNotRequired
		}
		return VisitCandidate{
			Station:     station,
			Tester:      tester,
			TesterEmail: r.TesterEmail,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			WaitReason:  r.WaitReason,
			Notes:       r.Notes,
		}, nil
	}

	if r.ParentID == "" {
		return nil, ErrParentIDRequired
	}
	return ChildCandidate{
		Kind:       r.ActivityType,
		ParentID:   r.ParentID,
		Station:    station,
		Tester:     tester,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		WaitReason: r.WaitReason,
		Notes:      r.Notes,
	}, nil
}

// UpdateRequest changes the wait reasons and notes of a stored activity.
type UpdateRequest struct {
	ID         string       `json:"id" validate:"required"`
	WaitReason []WaitReason `json:"waitReason" validate:"required,dive,waitreason"`
	Notes      *string      `json:"notes"`
}

// ListRequest carries the raw filter parameters of a list call.
type ListRequest struct {
	ActivityType       ActivityType
	FromStartTime      string
	ToStartTime        string
	IsOpen             bool
	TestStationPNumber string
	TesterStaffID      string
}

// EndResult reports whether an end call found the activity already closed.
type EndResult struct {
	WasAlreadyClosed bool `json:"wasVisitAlreadyClosed"`
}
