package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"necc_scraper/metrics"
	"necc_scraper/models"
	"necc_scraper/services"
)

// ErrPaused is returned by Run while the scraper is paused by an ops command
var ErrPaused = errors.New("scraper is paused")

// PageFetcher downloads the raw price page for a month
type PageFetcher interface {
	Fetch(ctx context.Context, year, month int) (string, error)
}

// RunStore is everything a run reads and writes
type RunStore interface {
	services.ZoneStore
	services.PriceStore
	CreateScrapeRunLog(ctx context.Context, run *models.ScrapeRunLog) error
}

// Archiver keeps the raw page of a run
type Archiver interface {
	ArchivePage(ctx context.Context, year, month int, runID uuid.UUID, html string) error
}

// Publisher announces a finished run
type Publisher interface {
	PublishRun(run *models.ScrapeRunLog) error
}

// Orchestrator runs fetch, parse, ingest and log for one (year, month).
// Concurrent runs are not coordinated; the (zone, date) upsert makes them
// converge to last write wins.
type Orchestrator struct {
	fetcher   PageFetcher
	tableID   string
	store     RunStore
	ingest    *services.IngestService
	archiver  Archiver
	publisher Publisher
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
	paused    atomic.Bool
}

func NewOrchestrator(fetcher PageFetcher, tableID string, store RunStore, loc *time.Location, logger *zap.Logger) *Orchestrator {
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{
		fetcher: fetcher,
		tableID: tableID,
		store:   store,
		ingest:  services.NewIngestService(store, logger),
		logger:  logger,
		loc:     loc,
		now:     time.Now,
	}
}

// SetArchiver enables raw page archiving
func (o *Orchestrator) SetArchiver(a Archiver) {
	o.archiver = a
}

// SetPublisher enables run announcements
func (o *Orchestrator) SetPublisher(p Publisher) {
	o.publisher = p
}

// CurrentTarget is the calendar month at invocation time in the source's timezone
func (o *Orchestrator) CurrentTarget() (year, month int) {
	now := o.now().In(o.loc)
	return now.Year(), int(now.Month())
}

// RunCurrent scrapes the current month
func (o *Orchestrator) RunCurrent(ctx context.Context) (*models.ScrapeResult, error) {
	year, month := o.CurrentTarget()
	return o.Run(ctx, year, month)
}

// Run scrapes one month and writes exactly one run log, unless the target is
// invalid or the scraper is paused, in which case nothing is logged.
func (o *Orchestrator) Run(ctx context.Context, year, month int) (*models.ScrapeResult, error) {
	if o.paused.Load() {
		return nil, ErrPaused
	}
	if month < 1 || month > 12 || year < 2000 {
		return nil, fmt.Errorf("invalid target %04d-%02d", year, month)
	}

	start := time.Now()
	runID := uuid.New()
	log := o.logger.With(zap.String("run_id", runID.String()), zap.Int("year", year), zap.Int("month", month))
	log.Info("Starting NECC price scrape")

	defer func() {
		metrics.ScrapeDuration.Observe(time.Since(start).Seconds())
	}()

	result, err := o.execute(ctx, runID, year, month, log)
	if err != nil {
		log.Error("Scrape failed", zap.Error(err))
		o.record(ctx, services.BuildFailureLog(runID, err, year, month, o.now().In(o.loc)), log)
		return nil, err
	}

	runLog := services.BuildRunLog(runID, result, year, month, o.now().In(o.loc))
	log.Info("Scrape complete",
		zap.String("status", string(runLog.Status)),
		zap.Int("zones_scraped", result.ZonesScraped),
		zap.Int("zones_successful", result.ZonesSuccessful),
		zap.Int("zones_failed", result.ZonesFailed),
	)
	o.record(ctx, runLog, log)

	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID uuid.UUID, year, month int, log *zap.Logger) (*models.ScrapeResult, error) {
	html, err := o.fetcher.Fetch(ctx, year, month)
	if err != nil {
		return nil, err
	}
	log.Debug("Fetched price page", zap.Int("bytes", len(html)))

	if o.archiver != nil {
		if err := o.archiver.ArchivePage(ctx, year, month, runID, html); err != nil {
			log.Warn("Failed to archive price page", zap.Error(err))
		}
	}

	prices, err := ParsePriceTable(html, o.tableID, year, month)
	if err != nil {
		return nil, err
	}
	log.Info("Parsed price table", zap.Int("rows", len(prices)))

	zones, err := services.LoadZoneLookup(ctx, o.store, log)
	if err != nil {
		return nil, err
	}

	return o.ingest.Ingest(ctx, prices, zones), nil
}

// record writes the audit row and fans it out. None of this can fail the run.
func (o *Orchestrator) record(ctx context.Context, runLog *models.ScrapeRunLog, log *zap.Logger) {
	metrics.ScrapeRunsTotal.WithLabelValues(string(runLog.Status)).Inc()

	// Logged even when the caller has gone away
	if err := o.store.CreateScrapeRunLog(context.WithoutCancel(ctx), runLog); err != nil {
		log.Error("Failed to write scrape run log", zap.Error(err))
	}

	if o.publisher != nil {
		if err := o.publisher.PublishRun(runLog); err != nil {
			log.Warn("Failed to publish run event", zap.Error(err))
		}
	}
}

func (o *Orchestrator) Pause() {
	o.paused.Store(true)
	o.logger.Info("Scraper paused")
}

func (o *Orchestrator) Resume() {
	o.paused.Store(false)
	o.logger.Info("Scraper resumed")
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}
