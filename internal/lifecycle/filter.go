package lifecycle

import (
	"strings"
	"time"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/query"
	"example.com/activities/internal/results"
)

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", domain.ActivityDayLayout}

// ParseTime accepts full timestamps and bare dates. Bare dates mean midnight UTC.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseFilter checks the list preconditions the query builder relies on and picks the
// retrieval mode.
func parseFilter(req domain.ListRequest) (query.Filter, results.Mode, error) {
	if !req.ActivityType.Valid() {
		return query.Filter{}, "", domain.ErrBadRequest
	}
	if req.IsOpen {
		return query.Filter{ActivityType: req.ActivityType, IsOpen: true}, results.ModeCleanup, nil
	}

	from, ok := ParseTime(req.FromStartTime)
	if !ok {
		return query.Filter{}, "", domain.ErrBadRequest
	}
	to, ok := ParseTime(req.ToStartTime)
	if !ok || to.Before(from) {
		return query.Filter{}, "", domain.ErrBadRequest
	}
	return query.Filter{
		ActivityType:       req.ActivityType,
		FromStartTime:      from,
		ToStartTime:        to,
		TestStationPNumber: req.TestStationPNumber,
		TesterStaffID:      req.TesterStaffID,
	}, results.ModeRecent, nil
}
