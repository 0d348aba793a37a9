package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/events"
	"example.com/activities/internal/persistence/postgres"
)

// Ender ends activities.
type Ender interface {
	EndActivity(ctx context.Context, id string, endTime *time.Time) (domain.EndResult, error)
}

// CloseHandler ends the activity named by an activity.close_requested event. Ending is
// idempotent, so redelivered requests are harmless.
type CloseHandler struct {
	ender  Ender
	logger *zap.Logger
}

// NewCloseHandler constructs a CloseHandler.
func NewCloseHandler(ender Ender, logger *zap.Logger) *CloseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloseHandler{ender: ender, logger: logger}
}

// Handle ends the activity. Unknown activities and malformed requests are logged and
// acknowledged; only storage failures are returned.
func (h *CloseHandler) Handle(ctx context.Context, msg Message) error {
	var req events.CloseRequested
	if err := json.Unmarshal(msg.Payload, &req); err != nil || req.ActivityID == "" {
		h.logger.Warn("discarding malformed close request", zap.Int64("offset", msg.Offset), zap.Error(err))
		recordCloseOutcome("invalid")
		return nil
	}

	res, err := h.ender.EndActivity(ctx, req.ActivityID, req.EndTime)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.logger.Warn("close requested for unknown activity", zap.String("activity_id", req.ActivityID))
		recordCloseOutcome("not_found")
		return nil
	case err != nil:
		return err
	case res.WasAlreadyClosed:
		recordCloseOutcome("already_closed")
	default:
		recordCloseOutcome("closed")
	}
	h.logger.Info("close request handled",
		zap.String("activity_id", req.ActivityID),
		zap.Bool("was_already_closed", res.WasAlreadyClosed),
		zap.String("requested_by", req.RequestedBy),
	)
	return nil
}

// EventAppender stores audit records.
type EventAppender interface {
	Append(ctx context.Context, rec postgres.EventRecord) error
}

// AuditHandler writes every consumed event into the activity event log.
type AuditHandler struct {
	log EventAppender
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(log EventAppender) *AuditHandler {
	return &AuditHandler{log: log}
}

// Handle stores the event payload.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	var ref struct {
		ActivityID string `json:"activity_id"`
	}
	_ = json.Unmarshal(msg.Payload, &ref)
	if ref.ActivityID == "" {
		ref.ActivityID = msg.Key
	}

	return h.log.Append(ctx, postgres.EventRecord{
		EventType:  msg.EventType,
		ActivityID: ref.ActivityID,
		Payload:    msg.Payload,
		Topic:      msg.Topic,
		Partition:  msg.Partition,
		Offset:     msg.Offset,
		ReceivedAt: msg.Timestamp,
	})
}

// Router fans a message out to the handlers registered for its event type, in registration
// order. The first failing handler stops the fan-out.
type Router struct {
	routes map[string][]Handler
	all    []Handler
	logger *zap.Logger
}

// NewRouter constructs an empty Router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{routes: make(map[string][]Handler), logger: logger}
}

// Route registers h for one event type.
func (r *Router) Route(eventType string, h Handler) *Router {
	r.routes[eventType] = append(r.routes[eventType], h)
	return r
}

// RouteAll registers h for every event type. These handlers run first.
func (r *Router) RouteAll(h Handler) *Router {
	r.all = append(r.all, h)
	return r
}

// Handle implements Handler.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	handlers := append(append([]Handler(nil), r.all...), r.routes[msg.EventType]...)
	if len(handlers) == 0 {
		r.logger.Debug("no handler for event type", zap.String("event_type", msg.EventType))
		return nil
	}
	for _, h := range handlers {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
