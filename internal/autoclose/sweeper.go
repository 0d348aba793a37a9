// Package autoclose ends visits that were left open longer than allowed.
package autoclose

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/events"
	"example.com/activities/internal/results"
)

// Lister lists activities.
type Lister interface {
	ListActivities(ctx context.Context, req domain.ListRequest) (results.Result, error)
}

// Closer requests that an activity be ended at endTime.
type Closer interface {
	RequestClose(ctx context.Context, id string, endTime time.Time) error
}

// Ender ends activities directly.
type Ender interface {
	EndActivity(ctx context.Context, id string, endTime *time.Time) (domain.EndResult, error)
}

// DirectCloser ends activities in process.
type DirectCloser struct {
	ender Ender
}

// NewDirectCloser constructs a DirectCloser.
func NewDirectCloser(ender Ender) *DirectCloser {
	return &DirectCloser{ender: ender}
}

// RequestClose implements Closer.
func (c *DirectCloser) RequestClose(ctx context.Context, id string, endTime time.Time) error {
	_, err := c.ender.EndActivity(ctx, id, &endTime)
	return err
}

// EventPublisher publishes lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Envelope) error
}

// EventCloser emits activity.close_requested events for the consumer to act on.
type EventCloser struct {
	publisher EventPublisher
}

// NewEventCloser constructs an EventCloser.
func NewEventCloser(publisher EventPublisher) *EventCloser {
	return &EventCloser{publisher: publisher}
}

// RequestClose implements Closer.
func (c *EventCloser) RequestClose(ctx context.Context, id string, endTime time.Time) error {
	return c.publisher.Publish(ctx, events.Envelope{
		Type: events.TypeActivityCloseRequested,
		Key:  id,
		Payload: events.CloseRequested{
			ActivityID:  id,
			EndTime:     &endTime,
			RequestedBy: "autoclose",
		},
	})
}

// Sweeper finds open visits older than maxOpen and closes them at startTime+maxOpen.
type Sweeper struct {
	lister  Lister
	closer  Closer
	maxOpen time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSweeper constructs a Sweeper.
func NewSweeper(lister Lister, closer Closer, maxOpen time.Duration, opts ...Option) *Sweeper {
	if maxOpen <= 0 {
		maxOpen = 12 * time.Hour
	}
	s := &Sweeper{lister: lister, closer: closer, maxOpen: maxOpen, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce closes every overdue visit and returns how many close requests succeeded.
// Individual failures are joined; the sweep continues past them.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	res, err := s.lister.ListActivities(ctx, domain.ListRequest{ActivityType: domain.ActivityTypeVisit, IsOpen: true})
	if errors.Is(err, domain.ErrNoResourcesFound) {
		recordSweep(s.now(), 0)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	now := s.now()
	var (
		closed int
		errs   error
	)
	for _, a := range res.Items {
		deadline := a.StartTime.Add(s.maxOpen)
		if !deadline.Before(now) {
			continue
		}
		if err := s.closer.RequestClose(ctx, a.ID, deadline.UTC()); err != nil {
			recordCloseRequest("error")
			errs = errors.Join(errs, err)
			continue
		}
		recordCloseRequest("ok")
		closed++
		s.logger.Info("requested close of overdue visit",
			zap.String("activity_id", a.ID),
			zap.String("tester_staff_id", a.TesterStaffID),
			zap.Time("end_time", deadline),
		)
	}
	recordSweep(now, closed)
	return closed, errs
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("auto-close sweeper started", zap.Duration("interval", interval), zap.Duration("max_open", s.maxOpen))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			closed, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("auto-close sweep", zap.Int("closed", closed), zap.Error(err))
			} else if closed > 0 {
				s.logger.Info("auto-close sweep", zap.Int("closed", closed))
			}
		}
	}
}
