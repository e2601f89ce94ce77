package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/kuantumticaret/storepulse/internal/analytics"
	"github.com/kuantumticaret/storepulse/internal/repositories"
	"github.com/kuantumticaret/storepulse/internal/services"
	"github.com/kuantumticaret/storepulse/internal/ws"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	AuthService         *services.AuthService
	NotificationService *services.NotificationService
	VisitRepo           repositories.VisitRepository
	PresenceChannel     repositories.PresenceChannel
	Runtimes            *Runtimes
	WSHandler           *ws.Handler
	AnalyticsSink       *analytics.Sink
	AllowedOrigins      []string
}

// NewRouter builds the full route tree.
func NewRouter(deps RouterDeps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	authMw := NewAuthMiddleware(deps.AuthService)
	authHandler := NewAuthHandler(deps.AuthService, deps.Runtimes)
	trackHandler := NewTrackHandler(deps.Runtimes)
	presenceHandler := NewPresenceHandler(deps.PresenceChannel)
	notificationHandler := NewNotificationHandler(deps.NotificationService)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsSink, deps.VisitRepo)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Get("/ws", deps.WSHandler.ServeWS)

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
		})

		r.Route("/track", func(r chi.Router) {
			r.Use(authMw.Optional)
			r.Post("/navigate", trackHandler.Navigate)
			r.Post("/close", trackHandler.Close)
			r.Get("/visits", trackHandler.Visits)
		})

		r.Get("/presence", presenceHandler.List)

		r.Route("/notifications", func(r chi.Router) {
			r.Use(authMw.Require)
			r.Get("/", notificationHandler.List)
			r.Post("/{id}/read", notificationHandler.MarkRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMw.Require)
			r.Use(authMw.RequireAdmin)
			r.Post("/notifications", notificationHandler.Create)
			r.Delete("/notifications/{id}", notificationHandler.Delete)
			r.Get("/analytics/top-paths", analyticsHandler.TopPaths)
			r.Get("/analytics/average-duration", analyticsHandler.AverageDuration)
			r.Get("/analytics/abandoned", analyticsHandler.Abandoned)
		})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Session-ID"},
		AllowCredentials: true,
	})
	return corsHandler.Handler(router)
}
