package results

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activities/internal/domain"
)

func activitiesAt(base time.Time, offsets ...int) []domain.Activity {
	out := make([]domain.Activity, 0, len(offsets))
	for i, off := range offsets {
		out = append(out, domain.Activity{
			ID:        fmt.Sprintf("a-%d", i),
			StartTime: base.Add(time.Duration(off) * time.Minute),
		})
	}
	return out
}

func TestOrderByStartTimeDescending(t *testing.T) {
	base := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	items := activitiesAt(base, 5, 30, 0, 30, 10)

	ordered := OrderByStartTimeDescending(items)

	ids := make([]string, 0, len(ordered))
	for _, a := range ordered {
		ids = append(ids, a.ID)
	}
	// a-1 and a-3 share a start time and keep their input order.
	require.Equal(t, []string{"a-1", "a-3", "a-4", "a-0", "a-2"}, ids)
	for i := 1; i < len(ordered); i++ {
		require.False(t, ordered[i].StartTime.After(ordered[i-1].StartTime))
	}
}

func TestAssembleRecentCapsAtTen(t *testing.T) {
	base := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	offsets := make([]int, 15)
	for i := range offsets {
		offsets[i] = i
	}

	res := Assemble(activitiesAt(base, offsets...), ModeRecent)

	require.Equal(t, ModeRecent, res.Mode)
	require.True(t, res.Truncated)
	require.Len(t, res.Items, RecentLimit)
	require.Equal(t, "a-14", res.Items[0].ID)
}

func TestAssembleCleanupDoesNotCap(t *testing.T) {
	base := time.Date(2024, time.May, 1, 8, 0, 0, 0, time.UTC)
	offsets := make([]int, 15)

	res := Assemble(activitiesAt(base, offsets...), ModeCleanup)

	require.Equal(t, ModeCleanup, res.Mode)
	require.False(t, res.Truncated)
	require.Len(t, res.Items, 15)
}

func TestAssembleRecentUnderLimit(t *testing.T) {
	res := Assemble(activitiesAt(time.Now(), 1, 2), ModeRecent)
	require.False(t, res.Truncated)
	require.Len(t, res.Items, 2)
}
