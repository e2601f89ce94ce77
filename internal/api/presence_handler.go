package api

import (
	"net/http"

	"github.com/kuantumticaret/storepulse/internal/repositories"
)

type PresenceHandler struct {
	channel repositories.PresenceChannel
}

func NewPresenceHandler(channel repositories.PresenceChannel) *PresenceHandler {
	return &PresenceHandler{channel: channel}
}

// List handles GET /api/presence: everyone on the online-users channel.
func (h *PresenceHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.channel.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list online users")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"online": entries,
		"count":  len(entries),
	})
}
