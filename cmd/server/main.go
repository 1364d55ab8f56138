package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rislab/flight-review/internal/api"
	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/ingest"
	"github.com/rislab/flight-review/internal/parser"
	"github.com/rislab/flight-review/internal/recordcache"
	"github.com/rislab/flight-review/internal/session"
	"github.com/rislab/flight-review/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get executable path")
	}
	configPath := filepath.Join(filepath.Dir(exePath), "FlightReview.config")
	if p := os.Getenv("FLIGHT_REVIEW_CONFIG"); p != "" {
		configPath = p
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Advanced.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	api.SetDevelopment(level <= zerolog.DebugLevel)

	style, err := config.LoadPlotStyle(cfg.Plots.StyleFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Plots.StyleFile).Msg("failed to load plot style")
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("failed to create directories")
	}

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir(), storage.Options{
		Compress: cfg.Processing.EnableCompression,
		Level:    cfg.Processing.CompressionLevel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Decoded recordings are cached in DuckDB
	var cache ingest.Cache
	if cfg.Storage.EnableCache {
		dbPath := filepath.Join(cfg.Storage.CacheDirectory, "recordings.duckdb")
		store, err := recordcache.Open(dbPath, recordcache.Options{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		})
		if err != nil {
			log.Warn().Err(err).Str("path", dbPath).Msg("recording cache disabled")
		} else {
			defer store.Close()
			cache = store
		}
	}

	registry := parser.GetGlobalRegistry()
	ingestMgr := ingest.NewManager(fileStore, registry, cache)
	sessionMgr := session.NewManager(ingestMgr, style, cfg.Processing.MaxSessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessionMgr.CleanupOldSessions(cfg.SessionTimeout()); n > 0 {
					log.Info().Int("removed", n).Msg("expired panel sessions removed")
				}
				ingestMgr.CleanupOldJobs(cfg.SessionTimeout())
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	api.SetupMiddleware(e, cfg.Advanced.EnableRequestLogging)

	// CORS configuration
	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	// Compression middleware
	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return c.Request().Header.Get("Accept") == "text/event-stream" ||
					strings.HasSuffix(c.Path(), "/ws")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	handlers := api.NewHandlers(&api.Dependencies{
		Store:      fileStore,
		SessionMgr: sessionMgr,
		IngestMgr:  ingestMgr,
		Version:    Version,
		Decoders:   registry.Names(),
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Flight Review Server                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
