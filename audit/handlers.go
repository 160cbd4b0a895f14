// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Handler provides the read-only HTTP surface over the trail and stats
type Handler struct {
	recorder *Recorder
	stats    *Stats
	repo     Repository
}

// NewHandler creates an audit API handler
func NewHandler(recorder *Recorder, stats *Stats, repo Repository) *Handler {
	return &Handler{recorder: recorder, stats: stats, repo: repo}
}

// RegisterRoutes registers all audit routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/audit/trail", h.GetTrail).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/stats/errors", h.GetErrorStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/stats/llm", h.GetLLMUsageStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/stats/rate-limits", h.GetRateLimitStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// GetTrail handles GET /api/v1/audit/trail
func (h *Handler) GetTrail(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	query := r.URL.Query()

	q := TrailQuery{
		Type:     EventType(query.Get("event_type")),
		Severity: Severity(query.Get("severity")),
	}

	if raw := query.Get("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, "Invalid user_id", http.StatusBadRequest)
			return
		}
		q.UserID = &userID
	}

	var err error
	if q.WithinDays, err = intParam(query.Get("days"), 0); err != nil {
		h.writeError(w, "Invalid days", http.StatusBadRequest)
		return
	}
	if q.Limit, err = intParam(query.Get("limit"), 0); err != nil {
		h.writeError(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	events, err := h.recorder.QueryTrail(r.Context(), q)
	if err != nil {
		if errors.Is(err, ErrInvalidEventType) || errors.Is(err, ErrInvalidSeverity) || errors.Is(err, ErrInvalidWindow) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if events == nil {
		events = []Event{}
	}

	h.writeJSON(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// GetErrorStats handles GET /api/v1/stats/errors
func (h *Handler) GetErrorStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, func(withinDays int) (interface{}, error) {
		return h.stats.ErrorStats(r.Context(), withinDays)
	})
}

// GetLLMUsageStats handles GET /api/v1/stats/llm
func (h *Handler) GetLLMUsageStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, func(withinDays int) (interface{}, error) {
		return h.stats.LLMUsageStats(r.Context(), withinDays)
	})
}

// GetRateLimitStats handles GET /api/v1/stats/rate-limits
func (h *Handler) GetRateLimitStats(w http.ResponseWriter, r *http.Request) {
	h.serveStats(w, r, func(withinDays int) (interface{}, error) {
		return h.stats.RateLimitStats(r.Context(), withinDays)
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.repo.Ping(r.Context()); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// serveStats runs one stats computation with the shared days-param handling
func (h *Handler) serveStats(w http.ResponseWriter, r *http.Request, compute func(int) (interface{}, error)) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	withinDays, err := intParam(r.URL.Query().Get("days"), 30)
	if err != nil {
		h.writeError(w, "Invalid days", http.StatusBadRequest)
		return
	}

	result, err := compute(withinDays)
	if err != nil {
		if errors.Is(err, ErrInvalidWindow) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, result)
}

// Helper functions

// setCORSHeaders sets CORS headers on all responses (not just OPTIONS)
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (h *Handler) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
