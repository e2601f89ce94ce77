package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kuantumticaret/storepulse/internal/analytics"
	"github.com/kuantumticaret/storepulse/internal/repositories"
)

// AnalyticsHandler serves the admin dashboard queries. The sink is nil
// when ClickHouse is not configured; those endpoints then answer 503
// while the Postgres-backed abandoned count keeps working.
type AnalyticsHandler struct {
	sink   *analytics.Sink
	visits repositories.VisitRepository
}

func NewAnalyticsHandler(sink *analytics.Sink, visits repositories.VisitRepository) *AnalyticsHandler {
	return &AnalyticsHandler{sink: sink, visits: visits}
}

func (h *AnalyticsHandler) window(r *http.Request) (time.Time, time.Time) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	end := time.Now()
	return end.Add(-time.Duration(hours) * time.Hour), end
}

// TopPaths handles GET /api/admin/analytics/top-paths?hours=24&limit=10.
func (h *AnalyticsHandler) TopPaths(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		respondError(w, http.StatusServiceUnavailable, "analytics store not configured")
		return
	}

	start, end := h.window(r)
	limit := uint64(10)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	results, err := h.sink.TopPagePaths(r.Context(), start, end, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query top paths")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"paths": results})
}

// AverageDuration handles GET /api/admin/analytics/average-duration?hours=24.
func (h *AnalyticsHandler) AverageDuration(w http.ResponseWriter, r *http.Request) {
	if h.sink == nil {
		respondError(w, http.StatusServiceUnavailable, "analytics store not configured")
		return
	}

	start, end := h.window(r)
	avg, err := h.sink.AverageDuration(r.Context(), start, end)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query average duration")
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"average_duration_seconds": avg})
}

// Abandoned handles GET /api/admin/analytics/abandoned: visit records
// whose close write never arrived. Records younger than an hour still
// count as possibly live.
func (h *AnalyticsHandler) Abandoned(w http.ResponseWriter, r *http.Request) {
	count, err := h.visits.CountAbandoned(r.Context(), time.Now().Add(-1*time.Hour))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count abandoned visits")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"abandoned": count})
}
