package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kuantumticaret/storepulse/internal/repositories"
	"github.com/kuantumticaret/storepulse/internal/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List handles GET /api/notifications: the caller's own rows, newest
// first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFromContext(r.Context())

	notifications, err := h.notificationService.ListForUser(r.Context(), account.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	account, _ := AccountFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	err = h.notificationService.MarkRead(r.Context(), id, account.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		respondError(w, http.StatusNotFound, "notification not found")
		return
	}
	if errors.Is(err, services.ErrNotRecipient) {
		respondError(w, http.StatusForbidden, "notification belongs to another user")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to mark notification read")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "marked read"})
}

type createNotificationRequest struct {
	UserID  string `json:"user_id,omitempty"` // empty means send to everyone
	Message string `json:"message"`
}

// Create handles POST /api/admin/notifications. With a user_id the row
// goes to that account; without one the message fans out to every
// active account.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	if req.UserID == "" {
		sent, err := h.notificationService.Broadcast(r.Context(), req.Message)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to broadcast notification")
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{"sent": sent})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	notification, err := h.notificationService.Create(r.Context(), userID, req.Message)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create notification")
		return
	}
	respondJSON(w, http.StatusCreated, notification)
}

// Delete handles DELETE /api/admin/notifications/{id}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	err = h.notificationService.Delete(r.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		respondError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}
