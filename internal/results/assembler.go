// Package results orders and truncates activity result sets.
package results

import (
	"sort"

	"example.com/activities/internal/domain"
)

// RecentLimit caps result sets returned in ModeRecent.
const RecentLimit = 10

// Mode selects how a sorted result set is presented.
type Mode string

const (
	// ModeRecent keeps the RecentLimit most recent activities.
	ModeRecent Mode = "recent"
	// ModeCleanup keeps every activity; used by auto-close.
	ModeCleanup Mode = "cleanup"
)

// Result is an ordered result set together with the mode that produced it.
type Result struct {
	Items     []domain.Activity
	Mode      Mode
	Truncated bool
}

// OrderByStartTimeDescending sorts items in place, most recent first. Ties keep their
// input order.
func OrderByStartTimeDescending(items []domain.Activity) []domain.Activity {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartTime.After(items[j].StartTime)
	})
	return items
}

// Assemble orders items and applies the cap of the given mode.
func Assemble(items []domain.Activity, mode Mode) Result {
	ordered := OrderByStartTimeDescending(items)
	res := Result{Items: ordered, Mode: mode}
	if mode == ModeRecent && len(ordered) > RecentLimit {
		res.Items = ordered[:RecentLimit]
		res.Truncated = true
	}
	return res
}
