package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kuantumticaret/storepulse/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
	runtimes    *Runtimes
}

func NewAuthHandler(authService *services.AuthService, runtimes *Runtimes) *AuthHandler {
	return &AuthHandler{authService: authService, runtimes: runtimes}
}

type signupRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   accountPayload `json:"account"`
}

type accountPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.DisplayName == "" {
		respondError(w, http.StatusBadRequest, "email and display_name are required")
		return
	}

	err := h.authService.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if errors.Is(err, services.ErrEmailExists) {
		respondError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"message": "account created"})
}

// Login handles POST /api/auth/login. When the request carries a
// storefront session id, the new identity is bound to that session's
// runtime so presence and the notification feed pick it up right away.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if sessionID := r.Header.Get(sessionHeader); sessionID != "" {
		h.runtimes.Bind(r.Context(), sessionID, resp.Account)
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		Account: accountPayload{
			ID:          resp.Account.ID.String(),
			Email:       resp.Account.Email,
			DisplayName: resp.Account.DisplayName,
			IsAdmin:     resp.Account.IsAdmin,
		},
	})
}

// Logout handles POST /api/auth/logout. The session runtime drops back
// to anonymous even if the token was already invalid.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := r.Header.Get(sessionHeader); sessionID != "" {
		h.runtimes.Unbind(r.Context(), sessionID)
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if err := h.authService.Logout(r.Context(), token); err != nil && !errors.Is(err, services.ErrInvalidToken) {
			respondError(w, http.StatusInternalServerError, "logout failed")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// LogoutAll handles POST /api/auth/logout-all: revokes every session
// of the token's account, other devices included.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	if err := h.authService.LogoutAll(r.Context(), token); err != nil {
		if errors.Is(err, services.ErrInvalidToken) {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		respondError(w, http.StatusInternalServerError, "logout failed")
		return
	}

	if sessionID := r.Header.Get(sessionHeader); sessionID != "" {
		h.runtimes.Unbind(r.Context(), sessionID)
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "all sessions revoked"})
}
