// Package handler exposes the audit/query surface over HTTP: paginated log
// reads, per-aggregate history, correlation traces, statistics, and the
// admin-only replay triggers. It is strictly read-side except for replay,
// which redelivers already-stored events.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"rxledger/internal/eventstore"
	"rxledger/internal/eventstore/query"
	"rxledger/internal/eventstore/replayer"
	"rxledger/internal/platform/middleware"
	"rxledger/internal/projection"
	"rxledger/pkg/requestcontext"
)

// Replayer is the slice of the event replayer the handler needs.
type Replayer interface {
	ReplayAggregate(ctx context.Context, aggregateType string, aggregateID uuid.UUID) (replayer.Result, error)
	ReplayByType(ctx context.Context, eventType string) (replayer.Result, error)
}

// Handler handles audit and replay endpoints.
type Handler struct {
	logger    *slog.Logger
	query     *query.Service
	replayer  Replayer
	activity  *projection.RecentActivity
	validator middleware.TokenValidator
	onAuth    middleware.AuthSuccess
}

// New creates the audit Handler. activity may be nil when Redis is not
// configured; the feed endpoint then reports 503.
func New(
	q *query.Service,
	r Replayer,
	activity *projection.RecentActivity,
	validator middleware.TokenValidator,
	onAuth middleware.AuthSuccess,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger:    logger,
		query:     q,
		replayer:  r,
		activity:  activity,
		validator: validator,
		onAuth:    onAuth,
	}
}

// Register mounts the audit routes on the chi router.
func (h *Handler) Register(r chi.Router) {
	auditRouter := chi.NewRouter()
	auditRouter.Use(middleware.Recovery(h.logger))
	auditRouter.Use(middleware.RequestID)
	auditRouter.Use(middleware.ClientMetadata)
	auditRouter.Use(middleware.Logger(h.logger))
	auditRouter.Use(middleware.ContentTypeJSON)
	auditRouter.Use(middleware.RequireAuth(h.validator, h.logger, h.onAuth))

	auditRouter.Get("/events", h.handleRecentEvents)
	auditRouter.Get("/events/statistics", h.handleStatistics)
	auditRouter.Get("/events/types/{eventType}", h.handleEventsByType)
	auditRouter.Get("/aggregates/{aggregateType}/{aggregateID}/events", h.handleAggregateHistory)
	auditRouter.Get("/correlations/{correlationID}/events", h.handleCorrelationTrace)
	auditRouter.Get("/users/{userID}/events", h.handleUserEvents)
	auditRouter.Get("/activity", h.handleActivityFeed)

	auditRouter.Post("/replay/aggregates/{aggregateType}/{aggregateID}", h.handleReplayAggregate)
	auditRouter.Post("/replay/types/{eventType}", h.handleReplayByType)

	r.Mount("/audit", auditRouter)
}

type eventResponse struct {
	SequenceNumber int64          `json:"sequenceNumber"`
	EventID        string         `json:"eventId"`
	EventType      string         `json:"eventType"`
	EventVersion   string         `json:"eventVersion"`
	AggregateType  string         `json:"aggregateType"`
	AggregateID    string         `json:"aggregateId"`
	CausationID    string         `json:"causationId,omitempty"`
	CorrelationID  string         `json:"correlationId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	UserID         string         `json:"userId,omitempty"`
	Payload        map[string]any `json:"payload"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	StoredAt       time.Time      `json:"storedAt"`
}

func toResponse(events []eventstore.StoredEvent) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		resp := eventResponse{
			SequenceNumber: e.SequenceNumber,
			EventID:        e.EventID.String(),
			EventType:      e.EventType,
			EventVersion:   e.EventVersion,
			AggregateType:  e.AggregateType,
			AggregateID:    e.AggregateID.String(),
			OccurredAt:     e.OccurredAt,
			Payload:        e.Payload,
			Metadata:       e.Metadata,
			StoredAt:       e.StoredAt,
		}
		if e.CausationID != uuid.Nil {
			resp.CausationID = e.CausationID.String()
		}
		if e.CorrelationID != uuid.Nil {
			resp.CorrelationID = e.CorrelationID.String()
		}
		if e.UserID != uuid.Nil {
			resp.UserID = e.UserID.String()
		}
		out = append(out, resp)
	}
	return out
}

func (h *Handler) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	events, err := h.query.Recent(r.Context(), page, size)
	if err != nil {
		h.serverError(w, r, "list recent events", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"page":   page,
		"events": toResponse(events),
	})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.query.Statistics(r.Context())
	if err != nil {
		h.serverError(w, r, "compute statistics", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, stats)
}

func (h *Handler) handleEventsByType(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")

	events, err := h.query.ByType(r.Context(), eventType)
	if err != nil {
		h.serverError(w, r, "list events by type", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"eventType": eventType,
		"events":    toResponse(events),
	})
}

func (h *Handler) handleAggregateHistory(w http.ResponseWriter, r *http.Request) {
	aggregateType := chi.URLParam(r, "aggregateType")
	aggregateID, err := uuid.Parse(chi.URLParam(r, "aggregateID"))
	if err != nil {
		h.badRequest(w, "invalid aggregate id")
		return
	}

	var events []eventstore.StoredEvent
	if after := r.URL.Query().Get("after"); after != "" {
		afterSequence, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			h.badRequest(w, "invalid after sequence")
			return
		}
		events, err = h.query.SinceSequence(r.Context(), aggregateType, aggregateID, afterSequence)
		if err != nil {
			h.serverError(w, r, "list aggregate events since sequence", err)
			return
		}
	} else {
		events, err = h.query.AggregateHistory(r.Context(), aggregateType, aggregateID)
		if err != nil {
			h.serverError(w, r, "list aggregate history", err)
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"aggregateType": aggregateType,
		"aggregateId":   aggregateID.String(),
		"events":        toResponse(events),
	})
}

func (h *Handler) handleCorrelationTrace(w http.ResponseWriter, r *http.Request) {
	correlationID, err := uuid.Parse(chi.URLParam(r, "correlationID"))
	if err != nil {
		h.badRequest(w, "invalid correlation id")
		return
	}

	events, err := h.query.Correlated(r.Context(), correlationID)
	if err != nil {
		h.serverError(w, r, "trace correlation", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"correlationId": correlationID.String(),
		"events":        toResponse(events),
	})
}

func (h *Handler) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.badRequest(w, "invalid user id")
		return
	}

	events, err := h.query.ByUser(r.Context(), userID)
	if err != nil {
		h.serverError(w, r, "list user events", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"userId": userID.String(),
		"events": toResponse(events),
	})
}

func (h *Handler) handleActivityFeed(w http.ResponseWriter, r *http.Request) {
	if h.activity == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"activity feed not configured"}`))
		return
	}

	n, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	entries, err := h.activity.List(r.Context(), n)
	if err != nil {
		h.serverError(w, r, "read activity feed", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleReplayAggregate(w http.ResponseWriter, r *http.Request) {
	aggregateType := chi.URLParam(r, "aggregateType")
	aggregateID, err := uuid.Parse(chi.URLParam(r, "aggregateID"))
	if err != nil {
		h.badRequest(w, "invalid aggregate id")
		return
	}

	result, err := h.replayer.ReplayAggregate(r.Context(), aggregateType, aggregateID)
	if err != nil {
		h.serverError(w, r, "replay aggregate", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) handleReplayByType(w http.ResponseWriter, r *http.Request) {
	result, err := h.replayer.ReplayByType(r.Context(), chi.URLParam(r, "eventType"))
	if err != nil {
		h.serverError(w, r, "replay by type", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write response",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "audit query failed",
		"operation", op,
		"error", err,
		"request_id", requestcontext.RequestID(r.Context()),
	)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"internal"}`))
}
