package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"necc_scraper/models"
)

const testPostgresEnv = "NECC_TEST_POSTGRES_URL"

var postgresTestSchema = `
	CREATE TABLE necc_zones (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE TABLE necc_prices (
		id UUID PRIMARY KEY,
		zone_id UUID NOT NULL REFERENCES necc_zones(id),
		date DATE NOT NULL,
		year INTEGER,
		month INTEGER,
		day_of_month INTEGER,
		suggested_price INTEGER,
		prevailing_price INTEGER,
		source TEXT,
		mode TEXT,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ,
		UNIQUE (zone_id, date)
	);
	CREATE TABLE necc_scraper_logs (
		id UUID PRIMARY KEY,
		scrape_date DATE,
		target_year INTEGER,
		target_month INTEGER,
		status TEXT,
		zones_scraped INTEGER,
		zones_successful INTEGER,
		zones_failed INTEGER,
		prices_inserted INTEGER,
		error_details JSONB,
		error_message TEXT,
		created_at TIMESTAMPTZ
	);`

// newTestPostgres opens a store on a throwaway schema of the database named
// by NECC_TEST_POSTGRES_URL (URL form). Skipped when unset.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv(testPostgresEnv)
	if dbURL == "" {
		t.Skipf("%s not set", testPostgresEnv)
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	schema := "necc_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})
	_, err = admin.Exec(ctx, fmt.Sprintf("SET search_path TO %s;%s", schema, postgresTestSchema))
	require.NoError(t, err)

	u, err := url.Parse(dbURL)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	store, err := NewPostgresStore(ctx, u.String())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStore_PriceRoundTrip(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	zoneID := uuid.New()
	_, err := store.pool.Exec(ctx, `INSERT INTO necc_zones (id, name, is_active) VALUES ($1, 'Namakkal', true), ($2, 'Closed', false)`,
		zoneID, uuid.New())
	require.NoError(t, err)

	zones, err := store.ActiveZones(ctx)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, zoneID, zones[0].ID)

	date := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	missing, err := store.GetPriceRecord(ctx, zoneID, date)
	require.NoError(t, err)
	assert.Nil(t, missing)

	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rec := &models.PriceRecord{
		ID:             uuid.New(),
		ZoneID:         zoneID,
		Date:           date,
		Year:           2024,
		Month:          3,
		DayOfMonth:     2,
		SuggestedPrice: intPtr(455),
		Source:         models.PriceSourceScraped,
		Mode:           models.PriceModeCron,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.InsertPriceRecord(ctx, rec))

	dup := *rec
	dup.ID = uuid.New()
	assert.ErrorIs(t, store.InsertPriceRecord(ctx, &dup), models.ErrDuplicatePrice)

	got, err := store.GetPriceRecord(ctx, zoneID, date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "2024-03-02", got.Date.Format(models.DateLayout))
	require.NotNil(t, got.SuggestedPrice)
	assert.Equal(t, 455, *got.SuggestedPrice)
	assert.Nil(t, got.PrevailingPrice)

	got.SuggestedPrice = intPtr(460)
	got.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.UpdatePriceRecord(ctx, got))

	updated, err := store.GetPriceRecord(ctx, zoneID, date)
	require.NoError(t, err)
	assert.Equal(t, 460, *updated.SuggestedPrice)
	assert.True(t, updated.CreatedAt.Equal(now))

	ghost := *got
	ghost.ID = uuid.New()
	assert.Error(t, store.UpdatePriceRecord(ctx, &ghost))
}

func TestPostgresStore_RunLogRoundTrip(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	msg := "price table not found in HTML"
	failed := &models.ScrapeRunLog{
		ID:           uuid.New(),
		ScrapeDate:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		TargetYear:   2024,
		TargetMonth:  3,
		Status:       models.RunStatusFailure,
		ErrorDetails: []string{msg},
		ErrorMessage: &msg,
		CreatedAt:    time.Date(2024, 3, 5, 4, 30, 0, 0, time.UTC),
	}
	partial := &models.ScrapeRunLog{
		ID:              uuid.New(),
		ScrapeDate:      time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		TargetYear:      2024,
		TargetMonth:     3,
		Status:          models.RunStatusPartial,
		ZonesScraped:    10,
		ZonesSuccessful: 9,
		ZonesFailed:     1,
		PricesInserted:  9,
		ErrorDetails:    []string{"Zone not found: Atlantis"},
		CreatedAt:       time.Date(2024, 3, 6, 4, 30, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateScrapeRunLog(ctx, failed))
	require.NoError(t, store.CreateScrapeRunLog(ctx, partial))

	runs, err := store.RecentScrapeRunLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, partial.ID, runs[0].ID)
	assert.Equal(t, models.RunStatusPartial, runs[0].Status)
	assert.Equal(t, "2024-03-06", runs[0].ScrapeDate.Format(models.DateLayout))
	assert.Equal(t, []string{"Zone not found: Atlantis"}, runs[0].ErrorDetails)
	assert.Nil(t, runs[0].ErrorMessage)

	assert.Equal(t, failed.ID, runs[1].ID)
	require.NotNil(t, runs[1].ErrorMessage)
	assert.Equal(t, msg, *runs[1].ErrorMessage)
	assert.Equal(t, []string{msg}, runs[1].ErrorDetails)
}
