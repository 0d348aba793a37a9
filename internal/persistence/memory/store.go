// Package memory implements the store gateway in process. It emulates index queries with
// bounded pages and continuation tokens so callers exercise the same pagination path as
// against a real store. Intended for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/observability"
	"example.com/activities/internal/persistence"
	"example.com/activities/internal/query"
)

// Store keeps activities in a map keyed by id.
type Store struct {
	mu       sync.RWMutex
	items    map[string]domain.Activity
	pageSize int
	failures map[string]error
	pages    int
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the number of items returned per emulated query page.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		items:    make(map[string]domain.Activity),
		pageSize: persistence.DefaultPageSize,
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fail makes every later call of op ("get", "put", "delete", "batchPut", "query") return err.
// A nil err clears the failure.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Pages returns how many query pages have been served.
func (s *Store) Pages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages
}

func (s *Store) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return &domain.StorageError{Op: op, Code: "InjectedFailure", Message: err.Error(), StatusCode: 500, Err: err}
	}
	return nil
}

// Get returns the activity stored under id, or nil when there is none.
func (s *Store) Get(_ context.Context, id string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("get"); err != nil {
		return nil, err
	}
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	out := clone(item)
	return &out, nil
}

// Put replaces the activity stored under a.ID and returns the previous one, if any.
func (s *Store) Put(_ context.Context, a domain.Activity) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("put"); err != nil {
		return nil, err
	}
	prev, existed := s.items[a.ID]
	s.items[a.ID] = clone(a)
	if !existed {
		return nil, nil
	}
	return &prev, nil
}

// Delete removes the activity stored under id and returns it, if any.
func (s *Store) Delete(_ context.Context, id string) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("delete"); err != nil {
		return nil, err
	}
	prev, existed := s.items[id]
	if !existed {
		return nil, nil
	}
	delete(s.items, id)
	return &prev, nil
}

// BatchPut replaces every item, in chunks of persistence.MaxBatchSize. An injected batchPut
// failure rejects the call before any item is written.
func (s *Store) BatchPut(_ context.Context, items []domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("batchPut"); err != nil {
		return err
	}
	for _, bounds := range persistence.Chunk(len(items), persistence.MaxBatchSize) {
		for _, a := range items[bounds[0]:bounds[1]] {
			s.items[a.ID] = clone(a)
		}
	}
	return nil
}

// QueryIndex returns every item matching q, following continuation tokens until exhausted.
func (s *Store) QueryIndex(ctx context.Context, q query.Query) ([]domain.Activity, error) {
	var (
		out   []domain.Activity
		token string
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, next, err := s.queryPage(q, token)
		if err != nil {
			return nil, err
		}
		observability.RecordQueryPage(q.Index)
		out = append(out, page...)
		if next == "" {
			return out, nil
		}
		token = next
	}
}

// queryPage evaluates up to pageSize index entries after the token position and returns
// the matching ones. Like a real index, the filter is applied after the page is cut, so a
// page may be empty while a continuation token is still returned.
func (s *Store) queryPage(q query.Query, token string) ([]domain.Activity, string, error) {
	start, err := persistence.DecodeToken(token)
	if err != nil {
		return nil, "", &domain.StorageError{Op: "query", Code: "ValidationException", Message: "invalid continuation token", StatusCode: 400, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("query"); err != nil {
		return nil, "", err
	}
	s.pages++

	candidates := make([]domain.Activity, 0)
	for _, item := range s.items {
		if matchesKey(q.Key, item) && start.After(item.StartTime, item.ID) {
			candidates = append(candidates, item)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].StartTime.Equal(candidates[j].StartTime) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].StartTime.Before(candidates[j].StartTime)
	})

	next := ""
	if len(candidates) > s.pageSize {
		candidates = candidates[:s.pageSize]
		last := candidates[len(candidates)-1]
		next = persistence.EncodeToken(&persistence.Key{StartTime: last.StartTime, ID: last.ID})
	}

	page := make([]domain.Activity, 0, len(candidates))
	for _, item := range candidates {
		if matchesFilters(q.Filters, item) {
			page = append(page, clone(item))
		}
	}
	return page, next, nil
}

func matchesKey(k query.KeyCondition, a domain.Activity) bool {
	value, ok := attribute(a, k.PartitionAttr)
	if !ok || value != k.PartitionValue {
		return false
	}
	switch k.Range {
	case query.RangeBetween:
		return !a.StartTime.Before(k.From) && !a.StartTime.After(k.To)
	case query.RangeAtLeast:
		return !a.StartTime.Before(k.From)
	}
	return true
}

func matchesFilters(filters []query.Condition, a domain.Activity) bool {
	for _, f := range filters {
		switch f.Op {
		case query.Equals:
			value, ok := attribute(a, f.Attr)
			if !ok || value != f.Value {
				return false
			}
		case query.HasNoValue:
			if _, ok := attribute(a, f.Attr); ok {
				return false
			}
		}
	}
	return true
}

// attribute returns the string form of a named attribute and whether it has a value.
func attribute(a domain.Activity, name string) (string, bool) {
	switch name {
	case query.AttrID:
		return a.ID, a.ID != ""
	case query.AttrActivityType:
		return string(a.ActivityType), a.ActivityType != ""
	case query.AttrTesterStaffID:
		return a.TesterStaffID, a.TesterStaffID != ""
	case query.AttrTestStationPNumber:
		return a.TestStationPNumber, a.TestStationPNumber != ""
	case query.AttrActivityDay:
		return a.ActivityDay, a.ActivityDay != ""
	case query.AttrStartTime:
		return a.StartTime.UTC().Format(time.RFC3339Nano), !a.StartTime.IsZero()
	case query.AttrEndTime:
		if a.EndTime == nil {
			return "", false
		}
		return a.EndTime.UTC().Format(time.RFC3339Nano), true
	}
	return "", false
}

func clone(a domain.Activity) domain.Activity {
	out := a
	if a.EndTime != nil {
		end := *a.EndTime
		out.EndTime = &end
	}
	if a.Notes != nil {
		notes := *a.Notes
		out.Notes = &notes
	}
	if a.WaitReason != nil {
		out.WaitReason = append([]domain.WaitReason(nil), a.WaitReason...)
	}
	return out
}
