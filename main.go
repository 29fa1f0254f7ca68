package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"necc_scraper/api"
	"necc_scraper/config"
	"necc_scraper/events"
	"necc_scraper/httputil"
	"necc_scraper/logging"
	"necc_scraper/models"
	"necc_scraper/scheduler"
	"necc_scraper/scraper"
	"necc_scraper/storage"
)

const zoneSeedPath = "config/zones.yaml"

var (
	scrapeNow = flag.Bool("scrape", false, "Run scrape once and exit")
	year      = flag.Int("year", 0, "Target year for -scrape or -enqueue backfill (default: current)")
	month     = flag.Int("month", 0, "Target month for -scrape or -enqueue backfill (default: current)")
	enqueue   = flag.String("enqueue", "", "Queue a command for the running daemon: scrape_now, backfill, pause, resume")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Sync()
	if logFile != nil {
		defer logFile.Close()
	}

	logger.Info("Starting NECC price scraper",
		zap.String("backend", cfg.Backend),
		zap.String("source", cfg.Source.URL),
	)

	// SQLite holds operational data (command queue) for every backend
	opsStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to open SQLite", zap.Error(err))
	}
	defer opsStore.Close()

	if *enqueue != "" {
		if err := enqueueCommand(opsStore, *enqueue, *year, *month); err != nil {
			logger.Fatal("Failed to enqueue command", zap.Error(err))
		}
		logger.Info("Command queued", zap.String("command", *enqueue))
		return
	}

	ctx := context.Background()
	clients := httputil.NewClients(&cfg.Source)

	store, err := openStore(ctx, cfg, clients, opsStore, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	if store != storage.Store(opsStore) {
		defer store.Close()
	}

	fetcher := scraper.NewFetcher(cfg.Source, clients.Scraping)
	orchestrator := scraper.NewOrchestrator(fetcher, cfg.Source.TableID, store, cfg.Scraper.Location, logger)

	if cfg.S3.Bucket != "" {
		archiver, err := storage.NewS3Archiver(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Failed to configure S3 archive", zap.Error(err))
		}
		orchestrator.SetArchiver(archiver)
		logger.Info("Raw page archive enabled", zap.String("bucket", cfg.S3.Bucket))
	}

	if cfg.NATS.URL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		orchestrator.SetPublisher(publisher)
		logger.Info("Run events enabled", zap.String("subject", cfg.NATS.Subject))
	}

	// Handle one-shot commands
	if *scrapeNow {
		if !cfg.Scraper.Enabled {
			logger.Info("Scraper is disabled via environment variable")
			return
		}
		y, m := orchestrator.CurrentTarget()
		if *year != 0 {
			y = *year
		}
		if *month != 0 {
			m = *month
		}
		result, err := orchestrator.Run(ctx, y, m)
		if err != nil {
			logger.Fatal("Scrape failed", zap.Error(err))
		}
		logger.Info(fmt.Sprintf("Scraped %d/%d zones", result.ZonesSuccessful, result.ZonesScraped))
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.New(cfg.Scheduler, &gatedRunner{orchestrator, cfg.Scraper.Enabled}, opsStore, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(api.Config{
		ServiceKey: cfg.Supabase.ServiceKey,
		Enabled:    cfg.Scraper.Enabled,
	}, orchestrator, store, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP entrypoint listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	logger.Info("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown error", zap.Error(err))
	}
	sched.Stop()
	logger.Info("Goodbye!")
}

func openStore(ctx context.Context, cfg *config.Config, clients *httputil.Clients, opsStore *storage.SQLiteStore, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Supabase.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect to Postgres: %w", err)
		}
		logger.Info("Connected to Postgres", zap.String("db", maskConnectionString(cfg.Supabase.DBURL)))
		return pgStore, nil

	case config.BackendSupabase:
		if cfg.Supabase.URL == "" || cfg.Supabase.ServiceKey == "" {
			return nil, errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase backend")
		}
		logger.Info("Using Supabase REST", zap.String("url", cfg.Supabase.URL))
		return storage.NewSupabaseStore(&cfg.Supabase, clients.API), nil

	case config.BackendSQLite:
		names, err := config.LoadZoneNames(zoneSeedPath)
		if err != nil {
			logger.Warn("No zone seed list, using zones already in SQLite", zap.Error(err))
			return opsStore, nil
		}
		created, err := opsStore.SeedZones(ctx, names)
		if err != nil {
			return nil, err
		}
		logger.Info("Using SQLite", zap.String("path", cfg.DBPath), zap.Int("zones_seeded", created))
		return opsStore, nil

	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
	}
}

func enqueueCommand(ops *storage.SQLiteStore, name string, y, m int) error {
	cmd := models.CommandType(name)
	var params *models.CommandParams

	switch cmd {
	case models.CmdScrapeNow, models.CmdPause, models.CmdResume:
	case models.CmdBackfill:
		if y == 0 || m == 0 {
			return errors.New("backfill needs -year and -month")
		}
		params = &models.CommandParams{Year: y, Month: m}
	default:
		return fmt.Errorf("unknown command %q", name)
	}

	_, err := ops.EnqueueCommand(cmd, params)
	return err
}

// gatedRunner applies the kill switch to scheduled and queued runs
type gatedRunner struct {
	*scraper.Orchestrator
	enabled bool
}

func (g *gatedRunner) RunCurrent(ctx context.Context) (*models.ScrapeResult, error) {
	if !g.enabled {
		return nil, errors.New("scraper is disabled via environment variable")
	}
	return g.Orchestrator.RunCurrent(ctx)
}

func (g *gatedRunner) Run(ctx context.Context, year, month int) (*models.ScrapeResult, error) {
	if !g.enabled {
		return nil, errors.New("scraper is disabled via environment variable")
	}
	return g.Orchestrator.Run(ctx, year, month)
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
