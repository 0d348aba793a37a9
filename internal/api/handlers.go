// Package api exposes HTTP handlers for the activity service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/activities/internal/auth"
	"example.com/activities/internal/domain"
	"example.com/activities/internal/lifecycle"
	"example.com/activities/internal/logging"
	"example.com/activities/internal/results"
)

// Response headers describing how a list result was assembled.
const (
	HeaderResultMode      = "X-Result-Mode"
	HeaderResultTruncated = "X-Result-Truncated"
)

// Service is the lifecycle surface the handlers drive.
type Service interface {
	CreateActivity(ctx context.Context, req domain.CreateRequest) (string, error)
	EndActivity(ctx context.Context, id string, endTime *time.Time) (domain.EndResult, error)
	UpdateActivities(ctx context.Context, reqs []domain.UpdateRequest) error
	ListActivities(ctx context.Context, req domain.ListRequest) (results.Result, error)
	HasOpenVisit(ctx context.Context, staffID string) (bool, error)
}

// Handler coordinates HTTP requests with the lifecycle service.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Router assembles the chi router. A nil authenticate leaves the activity routes open.
func (h *Handler) Router(authenticate func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RequestID)
	r.Use(logging.Requests(h.logger))
	r.Use(middleware.Recoverer)
	if authenticate != nil {
		r.Use(authenticate)
	}

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/activities", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeActivitiesWrite))
			r.Post("/", h.createActivity)
			r.Put("/update", h.updateActivities)
			r.Put("/{id}/end", h.endActivity)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireScope(auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite))
			r.Get("/details", h.listActivities)
			r.Get("/open", h.openVisit)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "Route "+r.Method+" "+r.URL.Path+" was not found.")
	})
	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := h.service.CreateActivity(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) endActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !parameterIsValid(id) {
		writeError(w, http.StatusBadRequest, domain.MsgBadRequest)
		return
	}

	var endTime *time.Time
	if raw := r.URL.Query().Get("endTime"); raw != "" {
		parsed, ok := lifecycle.ParseTime(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, domain.MsgBadRequest)
			return
		}
		endTime = &parsed
	}

	result, err := h.service.EndActivity(r.Context(), id, endTime)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) updateActivities(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !decodeBody(w, r, &raw) {
		return
	}
	var reqs []domain.UpdateRequest
	if err := json.Unmarshal(raw, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, domain.MsgBadRequest)
		return
	}

	if err := h.service.UpdateActivities(r.Context(), reqs); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := domain.ListRequest{
		ActivityType:       domain.ActivityType(params.Get("activityType")),
		FromStartTime:      params.Get("fromStartTime"),
		ToStartTime:        params.Get("toStartTime"),
		TestStationPNumber: params.Get("testStationPNumber"),
		TesterStaffID:      params.Get("testerStaffId"),
	}
	if raw := params.Get("isOpen"); raw != "" {
		open, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.MsgBadRequest)
			return
		}
		req.IsOpen = open
	}

	result, err := h.service.ListActivities(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.Header().Set(HeaderResultMode, string(result.Mode))
	w.Header().Set(HeaderResultTruncated, strconv.FormatBool(result.Truncated))
	writeJSON(w, http.StatusOK, result.Items)
}

func (h *Handler) openVisit(w http.ResponseWriter, r *http.Request) {
	staffID := r.URL.Query().Get("testerStaffId")
	if !parameterIsValid(staffID) {
		writeError(w, http.StatusBadRequest, domain.MsgBadRequest)
		return
	}

	open, err := h.service.HasOpenVisit(r.Context(), staffID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, open)
}

// parameterIsValid rejects blank values and the literal strings clients send for missing ones.
func parameterIsValid(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && value != "undefined" && value != "null"
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Body is not a valid JSON.")
		return false
	}
	return true
}

// StatusFor maps a lifecycle error to its HTTP status.
func StatusFor(err error) int {
	switch domain.KindOf(err).Category() {
	case domain.CategoryValidation, domain.CategoryDomainRuleViolation:
		if errors.Is(err, domain.ErrStaffHasOngoingActivity) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case domain.CategoryNotFound, domain.CategoryNoResourcesFound:
		return http.StatusNotFound
	}
	if status := domain.StatusCode(err); status >= 400 && status < 600 {
		return status
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", logging.RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
