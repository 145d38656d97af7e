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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/roadwatch/pavement/handlers"
	"github.com/roadwatch/pavement/internal/config"
	"github.com/roadwatch/pavement/internal/db"
	"github.com/roadwatch/pavement/internal/ingest"
	"github.com/roadwatch/pavement/internal/playback"
	"github.com/roadwatch/pavement/internal/store"
	"github.com/roadwatch/pavement/repository"
)

func main() {
	// Load .env files from repository root
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load("../../.env")
	_ = godotenv.Overload("../../.env.local")

	log.Println("Starting pavement survey service...")
	cfg := config.Load()

	limits, err := cfg.Limits()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	layout, err := cfg.Layout()
	if err != nil {
		log.Fatalf("Invalid survey layout: %v", err)
	}
	log.Printf("Config loaded: layout=%s v%d, roughness_limit=%.0f, warning_ratio=%.2f, reload_every=%v",
		layout.Name, layout.Version, limits.Roughness, limits.WarningRatio, cfg.ReloadInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Initialize Database
	// ═══════════════════════════════════════════════════════
	log.Printf("Connecting to SQLite database: %s", cfg.DatabasePath)
	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	log.Println("SQLite database connection established")

	var reportRepo repository.ReportStore = repository.NewSQLiteReportRepository(database.Conn())
	if cfg.PostgresURL != "" {
		pg, err := repository.NewPostgresReportRepository(ctx, cfg.PostgresURL)
		if err != nil {
			log.Printf("Warning: PostgreSQL report archive unavailable: %v", err)
		} else if err := pg.EnsureSchema(ctx); err != nil {
			log.Printf("Warning: PostgreSQL report schema failed: %v", err)
			pg.Close()
		} else {
			defer pg.Close()
			reportRepo = repository.NewMirroredReportRepository(reportRepo, pg)
			log.Println("Reports mirrored to PostgreSQL")
		}
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Load Survey
	// ═══════════════════════════════════════════════════════
	surveyStore, writer := store.New()
	loader := ingest.NewLoader(surveyStore, writer, ingest.Options{
		Source:    cfg.SurveySource,
		Layout:    layout,
		Limits:    limits,
		Archive:   database,
		Retention: cfg.DatasetRetention,
		Timeout:   cfg.FetchTimeout,
	})

	log.Printf("Loading survey from %s...", cfg.SurveySource)
	if _, _, err := loader.Load(ctx); err != nil {
		log.Printf("Warning: initial survey load failed: %v", err)
		if _, err := loader.Restore(ctx); err != nil {
			log.Printf("Warning: no archived survey to fall back on: %v", err)
			// Continue - the store reports unavailable until a reload succeeds
		}
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: HTTP Server
	// ═══════════════════════════════════════════════════════
	sessions := playback.NewRegistry(surveyStore, cfg.MarkerEase)

	surveyHandler := handlers.NewSurveyHandler(surveyStore, loader, limits)
	playbackHandler := handlers.NewPlaybackHandler(sessions)
	reportsHandler := handlers.NewReportsHandler(surveyStore, reportRepo, limits, cfg.TrendSize)
	healthHandler := handlers.NewHealthHandler(database, surveyStore, sessions)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", healthHandler.GetHealth)

	// Survey API routes
	r.Get("/api/survey", surveyHandler.GetSummary)
	r.Get("/api/survey/segments", surveyHandler.GetSegments)
	r.Get("/api/survey/road.geojson", surveyHandler.GetRoadGeoJSON)
	r.Get("/api/survey/lanes.geojson", surveyHandler.GetLanesGeoJSON)
	r.Post("/api/survey/reload", surveyHandler.Reload)
	r.Get("/api/limits", surveyHandler.GetLimits)

	// Playback routes
	r.Post("/api/playback/sessions", playbackHandler.OpenSession)
	r.Route("/api/playback/sessions/{sessionId}", func(r chi.Router) {
		r.Delete("/", playbackHandler.CloseSession)
		r.Post("/position", playbackHandler.UpdatePosition)
		r.Post("/error", playbackHandler.ReportMediaError)
		r.Post("/resume", playbackHandler.Resume)
		r.Get("/frame", playbackHandler.GetFrame)
		r.Get("/stream", playbackHandler.StreamFrames)
	})

	// Report routes
	r.Post("/api/reports", reportsHandler.CreateReport)
	r.Get("/api/reports", reportsHandler.ListReports)
	r.Get("/api/reports/{reportId}", reportsHandler.GetReport)

	// Static file serving (if configured)
	if staticDir := os.Getenv("STATIC_DIR"); staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("API server starting on :%s", cfg.Port)
	log.Println("Survey endpoints:")
	log.Println("  GET  /api/survey")
	log.Println("  GET  /api/survey/segments?offset&limit")
	log.Println("  GET  /api/survey/road.geojson")
	log.Println("  GET  /api/survey/lanes.geojson")
	log.Println("  POST /api/survey/reload")
	log.Println("  GET  /api/limits")
	log.Println("Playback endpoints:")
	log.Println("  POST   /api/playback/sessions")
	log.Println("  DELETE /api/playback/sessions/{sessionId}")
	log.Println("  POST   /api/playback/sessions/{sessionId}/position|error|resume")
	log.Println("  GET    /api/playback/sessions/{sessionId}/frame|stream")
	log.Println("Report endpoints:")
	log.Println("  POST /api/reports")
	log.Println("  GET  /api/reports")
	log.Println("  GET  /api/reports/{reportId}")
	log.Println("Health:")
	log.Println("  GET /health (with database check)")

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Run until signalled
	// ═══════════════════════════════════════════════════════
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// streams only end when their sessions close
		sessions.CloseAll()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return loader.Run(gctx, cfg.ReloadInterval)
	})

	if cfg.SessionIdleTimeout > 0 {
		g.Go(func() error {
			return sessions.RunReaper(gctx, time.Minute, cfg.SessionIdleTimeout)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("Goodbye!")
}
