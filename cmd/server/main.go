package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kuantumticaret/storepulse/internal/analytics"
	"github.com/kuantumticaret/storepulse/internal/api"
	"github.com/kuantumticaret/storepulse/internal/config"
	"github.com/kuantumticaret/storepulse/internal/database"
	"github.com/kuantumticaret/storepulse/internal/repositories"
	"github.com/kuantumticaret/storepulse/internal/services"
	"github.com/kuantumticaret/storepulse/internal/ws"
)

const analyticsExportInterval = 30 * time.Second

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	accountRepo := repositories.NewPostgresAccountRepository(postgresPool)
	visitRepo := repositories.NewPostgresVisitRepository(postgresPool)
	notificationRepo := repositories.NewPostgresNotificationRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)
	presenceChannel := repositories.NewRedisPresenceChannel(redisClient)
	feed := repositories.NewRedisNotificationFeed(redisClient)

	// Services
	authService := services.NewAuthService(accountRepo, sessionRepo, cfg.JWTSecret, cfg.JWTExpiry)
	notificationService := services.NewNotificationService(notificationRepo, accountRepo, feed, cfg.Debug)

	// WebSocket hub and per-session runtimes
	hub := ws.NewHub()
	runtimes := api.NewRuntimes(visitRepo, presenceChannel, feed, hub, cfg.Debug)

	// ClickHouse analytics is optional
	var sink *analytics.Sink
	var exporter *analytics.Exporter
	if cfg.ClickHouseAddr != "" {
		chConn, err := database.NewClickHouseConn(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDatabase, cfg.ClickHouseUsername, cfg.ClickHousePassword)
		if err != nil {
			log.Fatalf("Failed to create clickhouse connection: %v", err)
		}
		defer chConn.Close()
		sink = analytics.NewSink(chConn)
		exporter = analytics.NewExporter(visitRepo, sink, analyticsExportInterval, cfg.Debug)
	} else {
		log.Println("ClickHouse not configured, visit analytics export disabled")
	}

	router := api.NewRouter(api.RouterDeps{
		AuthService:         authService,
		NotificationService: notificationService,
		VisitRepo:           visitRepo,
		PresenceChannel:     presenceChannel,
		Runtimes:            runtimes,
		WSHandler:           ws.NewHandler(hub, cfg.AllowedOrigins),
		AnalyticsSink:       sink,
		AllowedOrigins:      cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		hub.Run()
		return nil
	})

	if exporter != nil {
		group.Go(func() error {
			if err := exporter.Run(groupCtx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Close open visit brackets and retract presence before the
		// listener goes away.
		runtimes.Shutdown(shutdownCtx)
		hub.Shutdown()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
