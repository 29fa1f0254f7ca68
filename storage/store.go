package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"necc_scraper/models"
)

const (
	zonesTable   = "necc_zones"
	pricesTable  = "necc_prices"
	runLogsTable = "necc_scraper_logs"
)

// Store is the persistence contract of the price pipeline: a read-only zone
// directory, price records keyed by (zone_id, date) and append-only run logs.
type Store interface {
	ActiveZones(ctx context.Context) ([]models.Zone, error)
	GetPriceRecord(ctx context.Context, zoneID uuid.UUID, date time.Time) (*models.PriceRecord, error)
	InsertPriceRecord(ctx context.Context, rec *models.PriceRecord) error
	UpdatePriceRecord(ctx context.Context, rec *models.PriceRecord) error
	CreateScrapeRunLog(ctx context.Context, run *models.ScrapeRunLog) error
	RecentScrapeRunLogs(ctx context.Context, limit int) ([]models.ScrapeRunLog, error)
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SupabaseStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
