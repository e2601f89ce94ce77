package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// TrackHandler receives the storefront's navigation beacons. Close in
// particular arrives via sendBeacon on pagehide, so both endpoints
// answer fast and never block on storage.
type TrackHandler struct {
	runtimes *Runtimes
}

func NewTrackHandler(runtimes *Runtimes) *TrackHandler {
	return &TrackHandler{runtimes: runtimes}
}

type navigateRequest struct {
	PagePath string `json:"page_path"`
}

// Navigate handles POST /api/track/navigate: closes the session's open
// visit bracket and opens a new one for the given path.
func (h *TrackHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "X-Session-ID header is required")
		return
	}

	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PagePath = strings.TrimSpace(req.PagePath)
	if req.PagePath == "" || !strings.HasPrefix(req.PagePath, "/") {
		respondError(w, http.StatusBadRequest, "page_path must be an absolute path")
		return
	}

	rt := h.runtimes.Get(sessionID)

	// The bearer token is the identity of record for this bracket. A
	// runtime recreated after a restart or release would otherwise
	// stamp anonymous visits for a logged-in user.
	if account, ok := AccountFromContext(r.Context()); ok {
		userID := account.ID
		rt.Tracker.SetUser(&userID)
	}

	rt.Tracker.Navigate(r.Context(), req.PagePath)

	id, _ := rt.Tracker.OpenRecordID()
	respondJSON(w, http.StatusAccepted, map[string]string{"visit_id": id.String()})
}

// Close handles POST /api/track/close: the pagehide beacon. Responds
// 202 unconditionally; a session with no open bracket is a no-op. The
// beacon is also the session's teardown signal, so the whole runtime is
// released here; sessions that never open a WebSocket would otherwise
// sit in memory forever.
func (h *TrackHandler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "X-Session-ID header is required")
		return
	}

	h.runtimes.Release(r.Context(), sessionID)
	respondJSON(w, http.StatusAccepted, nil)
}

// Visits handles GET /api/track/visits: the session's own visit
// history, open bracket included.
func (h *TrackHandler) Visits(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "X-Session-ID header is required")
		return
	}

	visits, err := h.runtimes.visits.ListBySession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list visits")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"visits": visits})
}
