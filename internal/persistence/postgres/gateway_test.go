package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/persistence"
	"example.com/activities/internal/query"
)

func TestBuildSelectRanged(t *testing.T) {
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	q := query.NewBuilder("", "").Ranged(query.Filter{
		ActivityType:       domain.ActivityTypeVisit,
		FromStartTime:      from,
		ToStartTime:        to,
		TestStationPNumber: "87-1369569",
		TesterStaffID:      "132",
	})

	stmt, args, err := buildSelect(q, nil, 50)
	require.NoError(t, err)
	require.Equal(t, "SELECT doc FROM activities WHERE activity_type = $1 AND start_time BETWEEN $2 AND $3"+
		" AND test_station_p_number = $4 AND tester_staff_id = $5 ORDER BY start_time, id LIMIT $6", stmt)
	require.Equal(t, []any{"visit", from, to, "87-1369569", "132", 50}, args)
}

func TestBuildSelectOpenWithCursor(t *testing.T) {
	after := &persistence.Key{StartTime: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC), ID: "a-9"}
	q := query.NewBuilder("", "").Open(domain.ActivityTypeVisit)

	stmt, args, err := buildSelect(q, after, 10)
	require.NoError(t, err)
	require.Equal(t, "SELECT doc FROM activities WHERE activity_type = $1 AND start_time >= $2"+
		" AND end_time IS NULL AND (start_time, id) > ($3, $4) ORDER BY start_time, id LIMIT $5", stmt)
	require.Equal(t, []any{"visit", query.OpenSentinel, after.StartTime, "a-9", 10}, args)
}

func TestBuildSelectByStaff(t *testing.T) {
	stmt, args, err := buildSelect(query.NewBuilder("", "").OpenByStaff("132"), nil, 5)
	require.NoError(t, err)
	require.Equal(t, "SELECT doc FROM activities WHERE tester_staff_id = $1 AND end_time IS NULL ORDER BY start_time, id LIMIT $2", stmt)
	require.Equal(t, []any{"132", 5}, args)
}

func TestBuildSelectRejectsUnknownAttribute(t *testing.T) {
	q := query.Query{Key: query.KeyCondition{PartitionAttr: "colour", PartitionValue: "red", ValueName: "colour"}}
	_, _, err := buildSelect(q, nil, 5)
	require.Error(t, err)
}

func TestUpsertArgsStoresNullEndTime(t *testing.T) {
	start := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)
	args, err := upsertArgs(domain.Activity{ID: "a-1", ActivityType: domain.ActivityTypeVisit, StartTime: start, ActivityDay: "2024-01-02"})
	require.NoError(t, err)
	require.Nil(t, args[1])
	require.Nil(t, args[6])
	require.Contains(t, string(args[8].([]byte)), `"endTime":null`)
}
