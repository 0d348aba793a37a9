// Package query builds the fixed index query shapes used to read activities.
package query

import (
	"strings"
	"time"
)

// Attribute names as stored in the activity table.
const (
	AttrID                 = "id"
	AttrActivityType       = "activityType"
	AttrStartTime          = "startTime"
	AttrEndTime            = "endTime"
	AttrTestStationPNumber = "testStationPNumber"
	AttrTesterStaffID      = "testerStaffId"
	AttrActivityDay        = "activityDay"
)

// Default index names of the reference deployment.
const (
	DefaultActivityTypeIndex = "ActivityTypeIndex"
	DefaultStaffIndex        = "StaffIndex"
)

// OpenSentinel is the lower startTime bound used when callers list open activities.
var OpenSentinel = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// RangeOp is the comparison applied to the sort key of an index.
type RangeOp int

const (
	RangeNone RangeOp = iota
	RangeBetween
	RangeAtLeast
)

// KeyCondition selects one index partition and optionally a startTime range inside it.
type KeyCondition struct {
	PartitionAttr  string
	PartitionValue string
	ValueName      string
	RangeAttr      string
	Range          RangeOp
	From           time.Time
	To             time.Time
}

// ConditionOp is the comparison of a filter clause.
type ConditionOp int

const (
	// Equals matches an attribute against a string value.
	Equals ConditionOp = iota
	// HasNoValue matches an attribute that is absent or explicitly null.
	HasNoValue
)

// Condition is one AND-joined clause of the filter applied after the key condition.
type Condition struct {
	Attr  string
	Op    ConditionOp
	Value string
}

// Query is a fully built index query.
type Query struct {
	Index   string
	Key     KeyCondition
	Filters []Condition
}

// KeyConditionExpression renders the key condition in DynamoDB expression syntax.
func (q Query) KeyConditionExpression() string {
	expr := q.Key.PartitionAttr + " = :" + q.Key.ValueName
	switch q.Key.Range {
	case RangeBetween:
		expr += " AND " + q.Key.RangeAttr + " BETWEEN :fromStartTime AND :toStartTime"
	case RangeAtLeast:
		expr += " AND " + q.Key.RangeAttr + " >= :fromStartTime"
	}
	return expr
}

// FilterExpression renders the filter clauses, or "" when the query has none.
func (q Query) FilterExpression() string {
	parts := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		switch f.Op {
		case Equals:
			parts = append(parts, f.Attr+" = :"+f.Attr)
		case HasNoValue:
			parts = append(parts, "(attribute_not_exists("+f.Attr+") OR attribute_type("+f.Attr+", :NULL))")
		}
	}
	return strings.Join(parts, " AND ")
}

// Values returns the expression attribute values referenced by both expressions.
// Range bounds are time.Time so each store can encode them natively.
func (q Query) Values() map[string]any {
	values := map[string]any{
		":" + q.Key.ValueName: q.Key.PartitionValue,
	}
	switch q.Key.Range {
	case RangeBetween:
		values[":fromStartTime"] = q.Key.From
		values[":toStartTime"] = q.Key.To
	case RangeAtLeast:
		values[":fromStartTime"] = q.Key.From
	}
	for _, f := range q.Filters {
		switch f.Op {
		case Equals:
			values[":"+f.Attr] = f.Value
		case HasNoValue:
			values[":NULL"] = "NULL"
		}
	}
	return values
}
