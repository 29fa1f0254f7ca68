package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"necc_scraper/models"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// One invocation is strictly sequential, so a small pool is plenty
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// =============================================================================
// Zones
// =============================================================================

func (s *PostgresStore) ActiveZones(ctx context.Context) ([]models.Zone, error) {
	query := `SELECT id, name, is_active FROM ` + zonesTable + ` WHERE is_active = true ORDER BY name`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		var z models.Zone
		if err := rows.Scan(&z.ID, &z.Name, &z.IsActive); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// =============================================================================
// Prices
// =============================================================================

func (s *PostgresStore) GetPriceRecord(ctx context.Context, zoneID uuid.UUID, date time.Time) (*models.PriceRecord, error) {
	query := `
		SELECT id, zone_id, date, year, month, day_of_month, suggested_price, prevailing_price,
			source, mode, created_at, updated_at
		FROM ` + pricesTable + ` WHERE zone_id = $1 AND date = $2`

	var r models.PriceRecord
	err := s.pool.QueryRow(ctx, query, zoneID, date).Scan(
		&r.ID, &r.ZoneID, &r.Date, &r.Year, &r.Month, &r.DayOfMonth, &r.SuggestedPrice, &r.PrevailingPrice,
		&r.Source, &r.Mode, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) InsertPriceRecord(ctx context.Context, r *models.PriceRecord) error {
	query := `
		INSERT INTO ` + pricesTable + ` (
			id, zone_id, date, year, month, day_of_month, suggested_price, prevailing_price,
			source, mode, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.ZoneID, r.Date, r.Year, r.Month, r.DayOfMonth, r.SuggestedPrice, r.PrevailingPrice,
		r.Source, r.Mode, r.CreatedAt, r.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %v", models.ErrDuplicatePrice, err)
	}
	return err
}

func (s *PostgresStore) UpdatePriceRecord(ctx context.Context, r *models.PriceRecord) error {
	query := `
		UPDATE ` + pricesTable + ` SET
			suggested_price = $2, prevailing_price = $3, updated_at = $4
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, r.ID, r.SuggestedPrice, r.PrevailingPrice, r.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("price record %s not found", r.ID)
	}
	return nil
}

// =============================================================================
// Scrape Run Logs
// =============================================================================

func (s *PostgresStore) CreateScrapeRunLog(ctx context.Context, run *models.ScrapeRunLog) error {
	details, err := json.Marshal(run.ErrorDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ` + runLogsTable + ` (
			id, scrape_date, target_year, target_month, status, zones_scraped, zones_successful,
			zones_failed, prices_inserted, error_details, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.pool.Exec(ctx, query,
		run.ID, run.ScrapeDate, run.TargetYear, run.TargetMonth, string(run.Status), run.ZonesScraped,
		run.ZonesSuccessful, run.ZonesFailed, run.PricesInserted, details, run.ErrorMessage, run.CreatedAt,
	)
	return err
}

func (s *PostgresStore) RecentScrapeRunLogs(ctx context.Context, limit int) ([]models.ScrapeRunLog, error) {
	query := `
		SELECT id, scrape_date, target_year, target_month, status, zones_scraped, zones_successful,
			zones_failed, prices_inserted, error_details, error_message, created_at
		FROM ` + runLogsTable + ` ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRunLog
	for rows.Next() {
		var run models.ScrapeRunLog
		var status string
		var details []byte
		if err := rows.Scan(
			&run.ID, &run.ScrapeDate, &run.TargetYear, &run.TargetMonth, &status, &run.ZonesScraped,
			&run.ZonesSuccessful, &run.ZonesFailed, &run.PricesInserted, &details, &run.ErrorMessage, &run.CreatedAt,
		); err != nil {
			return nil, err
		}
		run.Status = models.RunStatus(status)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &run.ErrorDetails); err != nil {
				return nil, fmt.Errorf("decode error_details: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
