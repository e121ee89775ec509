package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bodylog-backend/internal/analysis"
	"bodylog-backend/internal/bodylog"
	"bodylog-backend/internal/capture"
	"bodylog-backend/internal/config"
	"bodylog-backend/internal/database"
	"bodylog-backend/internal/handlers"
	"bodylog-backend/internal/session"
	"bodylog-backend/internal/supabase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load .env: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	var persistence bodylog.PersistenceGateway = supabaseClient.Records()
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set. Migrations will be skipped and records go through PostgREST.")
	} else {
		dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize database client: %v", err)
			log.Println("Falling back to PostgREST for body log records.")
		} else {
			defer dbClient.Close()
			persistence = dbClient
			runMigrations(ctx, cfg.DatabaseURL)
		}
	}

	sessions := session.NewManager(ctx, session.Gateways{
		Storage:     supabaseClient.Storage(),
		Persistence: persistence,
		Analysis:    analysis.NewClient(cfg.AnalysisAPIBaseURL, cfg.AnalysisAPIKey, cfg.AnalysisTimeout),
	}, session.Options{
		CaptureTimeout:  cfg.CaptureTimeout,
		AnalysisTimeout: cfg.AnalysisTimeout,
		NoticesCapacity: cfg.NoticesCapacity,
	})

	router := handlers.NewRouter(cfg,
		handlers.NewBodyLogHandler(sessions, capture.NewPreparer(cfg.CaptureMaxDimension, cfg.CaptureJPEGQuality)),
		handlers.NewSessionHandler(sessions))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Println("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	sessions.Wait()
	log.Println("Server stopped")
}

func runMigrations(ctx context.Context, dbURL string) {
	migrator, err := database.NewMigrator(dbURL)
	if err != nil {
		log.Printf("Warning: Failed to initialize migrator: %v", err)
		return
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		log.Printf("Warning: Migration failed: %v", err)
		return
	}
	log.Println("Migrations completed successfully")
}
