// Package lifecycle owns every write to the activity store: create, end and update, plus the
// filtered reads built on top of the query builder and result assembler.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/events"
	"example.com/activities/internal/observability"
	"example.com/activities/internal/query"
	"example.com/activities/internal/results"
)

// Gateway is the store surface the service persists through. Get and Delete return nil, nil
// when nothing is stored under the id.
type Gateway interface {
	Get(ctx context.Context, id string) (*domain.Activity, error)
	Put(ctx context.Context, activity domain.Activity) (*domain.Activity, error)
	Delete(ctx context.Context, id string) (*domain.Activity, error)
	BatchPut(ctx context.Context, activities []domain.Activity) error
	QueryIndex(ctx context.Context, q query.Query) ([]domain.Activity, error)
}

// Validator checks payload shape before any business rule runs.
type Validator interface {
	ValidateCreate(req domain.CreateRequest) error
	ValidateUpdate(req domain.UpdateRequest) error
}

// Publisher announces lifecycle events. Failures never undo a completed write.
type Publisher interface {
	Publish(ctx context.Context, event events.Envelope) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Envelope) error { return nil }

// Service orchestrates the activity lifecycle.
type Service struct {
	store     Gateway
	validator Validator
	publisher Publisher
	builder   query.Builder
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for default start and end times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher enables lifecycle events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithBuilder overrides the index names used for queries.
func WithBuilder(b query.Builder) Option {
	return func(s *Service) {
		s.builder = b
	}
}

// NewService constructs a Service over an explicitly supplied gateway.
func NewService(store Gateway, validator Validator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: validator,
		publisher: nopPublisher{},
		builder:   query.NewBuilder("", ""),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateActivity validates and stores a new activity and returns its id.
func (s *Service) CreateActivity(ctx context.Context, req domain.CreateRequest) (string, error) {
	const op = "create"

	if err := s.validator.ValidateCreate(req); err != nil {
		return "", s.fail(op, domain.NewValidationError(err.Error()))
	}
	candidate, err := req.Candidate()
	if err != nil {
		return "", s.fail(op, err)
	}

	var activity domain.Activity
	switch c := candidate.(type) {
	case domain.VisitCandidate:
		activity, err = s.newVisit(ctx, c)
	case domain.ChildCandidate:
		activity, err = s.newChild(ctx, c)
	default:
		err = domain.ErrBadRequest
	}
	if err != nil {
		return "", s.fail(op, err)
	}

	activity.ID = uuid.NewString()
	activity.ActivityDay = domain.ActivityDayOf(activity.StartTime)

	if _, err := s.store.Put(ctx, activity); err != nil {
		return "", s.fail(op, err)
	}
	observability.RecordCreated(string(activity.ActivityType))
	observability.RecordActivityPersisted(s.now())

	s.publish(ctx, events.Envelope{
		Type: events.TypeActivityStarted,
		Key:  activity.ID,
		Payload: events.ActivityStarted{
			ActivityID:         activity.ID,
			ParentID:           activity.ParentID,
			ActivityType:       string(activity.ActivityType),
			TesterStaffID:      activity.TesterStaffID,
			TestStationPNumber: activity.TestStationPNumber,
			StartTime:          activity.StartTime,
			EndTime:            activity.EndTime,
			ActivityDay:        activity.ActivityDay,
		},
	})

	s.logger.Info("activity created",
		zap.String("activity_id", activity.ID),
		zap.String("activity_type", string(activity.ActivityType)),
		zap.String("tester_staff_id", activity.TesterStaffID),
	)
	return activity.ID, nil
}

func (s *Service) newVisit(ctx context.Context, c domain.VisitCandidate) (domain.Activity, error) {
	open, err := s.store.QueryIndex(ctx, s.builder.OpenByStaff(c.Tester.StaffID))
	if err != nil {
		return domain.Activity{}, err
	}
	if len(open) > 0 {
		return domain.Activity{}, domain.NewStaffHasOngoingActivityError(c.Tester.StaffID)
	}

	start := s.now().UTC()
	if c.StartTime != nil {
		start = c.StartTime.UTC()
	}
	return domain.Activity{
		ActivityType:       domain.ActivityTypeVisit,
		TestStationName:    c.Station.Name,
		TestStationPNumber: c.Station.PNumber,
		TestStationEmail:   c.Station.Email,
		TestStationType:    c.Station.Type,
		TesterName:         c.Tester.Name,
		TesterStaffID:      c.Tester.StaffID,
		TesterEmail:        c.TesterEmail,
		StartTime:          start,
		EndTime:            utc(c.EndTime),
		WaitReason:         c.WaitReason,
		Notes:              c.Notes,
	}, nil
}

func (s *Service) newChild(ctx context.Context, c domain.ChildCandidate) (domain.Activity, error) {
	parent, err := s.store.Get(ctx, c.ParentID)
	if err != nil {
		return domain.Activity{}, err
	}
	if parent == nil {
		return domain.Activity{}, domain.ErrParentNotFound
	}
	if c.StartTime == nil {
		return domain.Activity{}, domain.ErrStartTimeRequired
	}
	if c.EndTime == nil {
		return domain.Activity{}, domain.ErrEndTimeRequired
	}
	return domain.Activity{
		ParentID:           c.ParentID,
		ActivityType:       c.Kind,
		TestStationName:    c.Station.Name,
		TestStationPNumber: c.Station.PNumber,
		TestStationEmail:   c.Station.Email,
		TestStationType:    c.Station.Type,
		TesterName:         c.Tester.Name,
		TesterStaffID:      c.Tester.StaffID,
		StartTime:          c.StartTime.UTC(),
		EndTime:            utc(c.EndTime),
		WaitReason:         c.WaitReason,
		Notes:              c.Notes,
	}, nil
}

// EndActivity closes an open activity at endTime, or now when endTime is nil. Ending an
// activity that is already closed writes nothing and reports WasAlreadyClosed.
func (s *Service) EndActivity(ctx context.Context, id string, endTime *time.Time) (domain.EndResult, error) {
	const op = "end"

	if strings.TrimSpace(id) == "" {
		return domain.EndResult{}, s.fail(op, domain.ErrNotFound)
	}
	activity, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.EndResult{}, s.fail(op, err)
	}
	if activity == nil {
		return domain.EndResult{}, s.fail(op, domain.ErrNotFound)
	}

	if !activity.IsOpen() {
		observability.RecordEnded(true)
		s.logger.Info("activity already closed",
			zap.String("activity_id", id),
			zap.Time("end_time", *activity.EndTime),
		)
		return domain.EndResult{WasAlreadyClosed: true}, nil
	}

	end := s.now().UTC()
	if endTime != nil {
		end = endTime.UTC()
	}
	activity.EndTime = &end

	if _, err := s.store.Put(ctx, *activity); err != nil {
		return domain.EndResult{}, s.fail(op, err)
	}
	observability.RecordEnded(false)
	observability.RecordActivityPersisted(s.now())

	s.publish(ctx, events.Envelope{
		Type: events.TypeActivityEnded,
		Key:  activity.ID,
		Payload: events.ActivityEnded{
			ActivityID:    activity.ID,
			ActivityType:  string(activity.ActivityType),
			TesterStaffID: activity.TesterStaffID,
			StartTime:     activity.StartTime,
			EndTime:       end,
		},
	})
	s.logger.Info("activity ended", zap.String("activity_id", id), zap.Time("end_time", end))
	return domain.EndResult{WasAlreadyClosed: false}, nil
}

// UpdateActivities rewrites the wait reasons and notes of every referenced activity and
// persists the batch in one call. The first invalid or unknown element aborts the batch
// before anything is written.
func (s *Service) UpdateActivities(ctx context.Context, reqs []domain.UpdateRequest) error {
	const op = "update"

	if len(reqs) == 0 {
		return s.fail(op, domain.ErrBadRequest)
	}

	updated := make([]domain.Activity, 0, len(reqs))
	position := make(map[string]int, len(reqs))
	for _, req := range reqs {
		if err := s.validator.ValidateUpdate(req); err != nil {
			return s.fail(op, domain.NewValidationError(err.Error()))
		}
		activity, err := s.store.Get(ctx, req.ID)
		if err != nil {
			return s.fail(op, err)
		}
		if activity == nil {
			return s.fail(op, domain.ErrNotFound)
		}
		activity.WaitReason = req.WaitReason
		activity.Notes = req.Notes

		// A batch write may not name the same key twice; the last request for an id wins.
		if i, ok := position[activity.ID]; ok {
			updated[i] = *activity
			continue
		}
		position[activity.ID] = len(updated)
		updated = append(updated, *activity)
	}

	if err := s.store.BatchPut(ctx, updated); err != nil {
		return s.fail(op, err)
	}
	observability.RecordUpdated(len(updated))
	observability.RecordActivityPersisted(s.now())

	for _, activity := range updated {
		reasons := make([]string, 0, len(activity.WaitReason))
		for _, r := range activity.WaitReason {
			reasons = append(reasons, string(r))
		}
		s.publish(ctx, events.Envelope{
			Type:    events.TypeActivityUpdated,
			Key:     activity.ID,
			Payload: events.ActivityUpdated{ActivityID: activity.ID, WaitReason: reasons, Notes: activity.Notes},
		})
	}
	s.logger.Info("activities updated", zap.Int("count", len(updated)))
	return nil
}

// ListActivities returns the activities matching req, newest first. Ranged requests are
// capped to the most recent results; open requests return every match.
func (s *Service) ListActivities(ctx context.Context, req domain.ListRequest) (results.Result, error) {
	const op = "list"

	filter, mode, err := parseFilter(req)
	if err != nil {
		return results.Result{}, s.fail(op, err)
	}
	items, err := s.store.QueryIndex(ctx, s.builder.ForFilter(filter))
	if err != nil {
		return results.Result{}, s.fail(op, err)
	}
	if len(items) == 0 {
		return results.Result{}, s.fail(op, domain.ErrNoResourcesFound)
	}
	return results.Assemble(items, mode), nil
}

// HasOpenVisit reports whether the staff member has an activity without an end time.
func (s *Service) HasOpenVisit(ctx context.Context, staffID string) (bool, error) {
	const op = "open_visit"

	if strings.TrimSpace(staffID) == "" {
		return false, s.fail(op, domain.ErrBadRequest)
	}
	open, err := s.store.QueryIndex(ctx, s.builder.OpenByStaff(staffID))
	if err != nil {
		return false, s.fail(op, err)
	}
	return len(open) > 0, nil
}

// GetActivity fetches one activity by id.
func (s *Service) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	activity, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.fail("get", err)
	}
	if activity == nil {
		return nil, s.fail("get", domain.ErrNotFound)
	}
	return activity, nil
}

// DeleteActivity removes an activity. It exists for test data cleanup only.
func (s *Service) DeleteActivity(ctx context.Context, id string) (*domain.Activity, error) {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, s.fail("delete", err)
	}
	if removed == nil {
		return nil, s.fail("delete", domain.ErrNotFound)
	}
	s.logger.Info("activity deleted", zap.String("activity_id", id))
	return removed, nil
}

func (s *Service) publish(ctx context.Context, event events.Envelope) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish lifecycle event",
			zap.String("event_type", event.Type),
			zap.String("key", event.Key),
			zap.Error(err),
		)
	}
}

// fail normalises err into a domain error, counts it, and logs it at a level matching its kind.
func (s *Service) fail(op string, err error) error {
	kind := domain.KindOf(err)
	if kind == "" {
		err = domain.NewStorageFailure(op, err)
		kind = domain.KindStorage
	}
	observability.RecordRejected(op, string(kind))

	fields := []zap.Field{zap.String("operation", op), zap.String("kind", string(kind)), zap.Error(err)}
	if kind == domain.KindStorage {
		s.logger.Error("activity store failure", fields...)
	} else {
		s.logger.Info("activity request rejected", fields...)
	}
	return err
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
