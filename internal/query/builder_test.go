package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activities/internal/domain"
)

func TestRangedQueryWithoutOptionalFilters(t *testing.T) {
	from := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2030, time.January, 2, 0, 0, 0, 0, time.UTC)

	q := NewBuilder("", "").ForFilter(Filter{
		ActivityType:  domain.ActivityTypeVisit,
		FromStartTime: from,
		ToStartTime:   to,
	})

	require.Equal(t, DefaultActivityTypeIndex, q.Index)
	require.Equal(t, "activityType = :activityType AND startTime BETWEEN :fromStartTime AND :toStartTime", q.KeyConditionExpression())
	require.Empty(t, q.FilterExpression())
	require.Equal(t, map[string]any{
		":activityType":  "visit",
		":fromStartTime": from,
		":toStartTime":   to,
	}, q.Values())
}

func TestRangedQueryJoinsOptionalFiltersInOrder(t *testing.T) {
	q := NewBuilder("TypeIdx", "StaffIdx").Ranged(Filter{
		ActivityType:       domain.ActivityTypeWait,
		FromStartTime:      time.Unix(0, 0).UTC(),
		ToStartTime:        time.Unix(10, 0).UTC(),
		TestStationPNumber: "87-1369569",
		TesterStaffID:      "132",
	})

	require.Equal(t, "TypeIdx", q.Index)
	require.Equal(t, "testStationPNumber = :testStationPNumber AND testerStaffId = :testerStaffId", q.FilterExpression())
	values := q.Values()
	require.Equal(t, "87-1369569", values[":testStationPNumber"])
	require.Equal(t, "132", values[":testerStaffId"])
}

func TestRangedQueryWithStaffOnly(t *testing.T) {
	q := NewBuilder("", "").Ranged(Filter{ActivityType: domain.ActivityTypeVisit, TesterStaffID: "7"})
	require.Equal(t, "testerStaffId = :testerStaffId", q.FilterExpression())
}

func TestOpenQueryIgnoresRangeAndOptionalFilters(t *testing.T) {
	q := NewBuilder("", "").ForFilter(Filter{
		ActivityType:       domain.ActivityTypeVisit,
		IsOpen:             true,
		ToStartTime:        time.Now(),
		TestStationPNumber: "ignored",
		TesterStaffID:      "ignored",
	})

	require.Equal(t, DefaultActivityTypeIndex, q.Index)
	require.Equal(t, "activityType = :activityType AND startTime >= :fromStartTime", q.KeyConditionExpression())
	require.Equal(t, "(attribute_not_exists(endTime) OR attribute_type(endTime, :NULL))", q.FilterExpression())
	require.Equal(t, map[string]any{
		":activityType":  "visit",
		":fromStartTime": OpenSentinel,
		":NULL":          "NULL",
	}, q.Values())
	require.Equal(t, "2020-01-01T00:00:00Z", OpenSentinel.Format(time.RFC3339))
}

func TestOpenByStaffQuery(t *testing.T) {
	q := NewBuilder("", "StaffIdx").OpenByStaff("132")

	require.Equal(t, "StaffIdx", q.Index)
	require.Equal(t, "testerStaffId = :staffId", q.KeyConditionExpression())
	require.Equal(t, "(attribute_not_exists(endTime) OR attribute_type(endTime, :NULL))", q.FilterExpression())
	require.Equal(t, map[string]any{":staffId": "132", ":NULL": "NULL"}, q.Values())
}
