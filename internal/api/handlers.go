// Package api provides HTTP API handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/trustlens/trustlens/internal/analyzer"
	"github.com/trustlens/trustlens/internal/cache"
	"github.com/trustlens/trustlens/internal/corpus"
	"github.com/trustlens/trustlens/internal/dupqueue"
	"github.com/trustlens/trustlens/internal/models"
	"github.com/trustlens/trustlens/internal/throttle"
)

// Handler contains all HTTP handlers.
type Handler struct {
	engine    *analyzer.Engine
	queue     *dupqueue.Queue
	throttler *throttle.Throttler
	cache     *cache.TieredCache
	corpus    *corpus.Memory
}

// NewHandler creates a new handler.
func NewHandler(engine *analyzer.Engine, queue *dupqueue.Queue, throttler *throttle.Throttler, c *cache.TieredCache, corp *corpus.Memory) *Handler {
	return &Handler{
		engine:    engine,
		queue:     queue,
		throttler: throttler,
		cache:     c,
		corpus:    corp,
	}
}

// HealthCheck returns the service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// Analyze runs a full trust analysis for a submitted campaign.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Subject.ID == "" || req.Subject.Text == "" {
		writeError(w, http.StatusBadRequest, "Subject id and text are required")
		return
	}

	result, err := h.engine.Analyze(r.Context(), req.Subject, req.Factors)
	if err != nil {
		if errors.Is(err, analyzer.ErrInFlightTimeout) {
			writeError(w, http.StatusGatewayTimeout, "Timed out waiting for in-flight analysis")
			return
		}
		log.Error().Err(err).Msg("Analysis failed")
		writeError(w, http.StatusInternalServerError, "Analysis failed")
		return
	}

	// Future submissions get compared against this campaign.
	h.corpus.Add(req.Subject.ID, req.Subject.Text)

	writeJSON(w, http.StatusOK, result)
}

// GetResult returns the cached analysis for a subject fingerprint.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	fingerprint := chi.URLParam(r, "fingerprint")
	result, ok := h.engine.Result(r.Context(), fingerprint)
	if !ok {
		writeError(w, http.StatusNotFound, "No live analysis for this fingerprint")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// EnqueueDuplicateCheck queues an asynchronous duplicate check.
func (h *Handler) EnqueueDuplicateCheck(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Subject.ID == "" || req.Subject.Text == "" {
		writeError(w, http.StatusBadRequest, "Subject id and text are required")
		return
	}

	job := h.queue.Enqueue(req.Subject, req.Priority)
	writeJSON(w, http.StatusAccepted, job)
}

// GetJob returns the state of a queued duplicate check.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := h.queue.Job(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns all known duplicate-check jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Jobs())
}

// ListNotifications returns retained notifications, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Notifications())
}

// MarkNotificationRead flags a notification as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.queue.MarkRead(id) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports throttler, cache and daily metrics state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	// Sweep first so aggregate numbers exclude expired entries.
	h.cache.Sweep(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"throttle": h.throttler.Status(),
		"cache":    h.cache.Stats(r.Context()),
		"metrics":  h.engine.DailyMetrics(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
