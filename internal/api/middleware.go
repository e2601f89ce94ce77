package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/services"
)

type contextKey string

const accountContextKey contextKey = "account"

// sessionHeader carries the storefront session id on every API call.
// It is the same id the WebSocket connections present as session_id.
const sessionHeader = "X-Session-ID"

// AccountFromContext returns the authenticated account, if any.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(*models.Account)
	return account, ok
}

// AuthMiddleware resolves bearer tokens into accounts.
type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

func (m *AuthMiddleware) resolve(r *http.Request) (*models.Account, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, services.ErrInvalidToken
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return m.authService.CurrentAccount(r.Context(), token)
}

// Require rejects requests without a valid bearer token.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := m.resolve(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), accountContextKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the account when a valid token is present and lets
// anonymous requests through untouched.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account, err := m.resolve(r); err == nil {
			ctx := context.WithValue(r.Context(), accountContextKey, account)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin accounts. Must run after Require.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := AccountFromContext(r.Context())
		if !ok || !account.IsAdmin {
			respondError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
