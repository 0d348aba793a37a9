package query

import (
	"time"

	"example.com/activities/internal/domain"
)

// Filter is a validated list request. Callers must supply ActivityType and either both
// range bounds or IsOpen before handing a Filter to the Builder.
type Filter struct {
	ActivityType       domain.ActivityType
	FromStartTime      time.Time
	ToStartTime        time.Time
	IsOpen             bool
	TestStationPNumber string
	TesterStaffID      string
}

// Builder turns filters into index queries.
type Builder struct {
	ActivityTypeIndex string
	StaffIndex        string
}

// NewBuilder returns a Builder over the given index names, falling back to the defaults.
func NewBuilder(activityTypeIndex, staffIndex string) Builder {
	if activityTypeIndex == "" {
		activityTypeIndex = DefaultActivityTypeIndex
	}
	if staffIndex == "" {
		staffIndex = DefaultStaffIndex
	}
	return Builder{ActivityTypeIndex: activityTypeIndex, StaffIndex: staffIndex}
}

// ForFilter picks the open-activities shape when IsOpen is set and the ranged shape otherwise.
func (b Builder) ForFilter(f Filter) Query {
	if f.IsOpen {
		return b.Open(f.ActivityType)
	}
	return b.Ranged(f)
}

// Ranged queries one activity type between two start times, optionally narrowed by
// station and staff.
func (b Builder) Ranged(f Filter) Query {
	q := Query{
		Index: b.ActivityTypeIndex,
		Key: KeyCondition{
			PartitionAttr:  AttrActivityType,
			PartitionValue: string(f.ActivityType),
			ValueName:      AttrActivityType,
			RangeAttr:      AttrStartTime,
			Range:          RangeBetween,
			From:           f.FromStartTime,
			To:             f.ToStartTime,
		},
	}
	if f.TestStationPNumber != "" {
		q.Filters = append(q.Filters, Condition{Attr: AttrTestStationPNumber, Op: Equals, Value: f.TestStationPNumber})
	}
	if f.TesterStaffID != "" {
		q.Filters = append(q.Filters, Condition{Attr: AttrTesterStaffID, Op: Equals, Value: f.TesterStaffID})
	}
	return q
}

// Open queries every activity of one type that has no end time.
func (b Builder) Open(activityType domain.ActivityType) Query {
	return Query{
		Index: b.ActivityTypeIndex,
		Key: KeyCondition{
			PartitionAttr:  AttrActivityType,
			PartitionValue: string(activityType),
			ValueName:      AttrActivityType,
			RangeAttr:      AttrStartTime,
			Range:          RangeAtLeast,
			From:           OpenSentinel,
		},
		Filters: []Condition{{Attr: AttrEndTime, Op: HasNoValue}},
	}
}

// OpenByStaff queries the activities of one staff member that have no end time.
func (b Builder) OpenByStaff(staffID string) Query {
	return Query{
		Index: b.StaffIndex,
		Key: KeyCondition{
			PartitionAttr:  AttrTesterStaffID,
			PartitionValue: staffID,
			ValueName:      "staffId",
		},
		Filters: []Condition{{Attr: AttrEndTime, Op: HasNoValue}},
	}
}
