package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"necc_scraper/identity"
	"necc_scraper/models"
)

// SQLiteStore backs local runs and holds the ops command queue
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS necc_zones (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		is_active BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS necc_prices (
		id TEXT PRIMARY KEY,
		zone_id TEXT NOT NULL,
		date TEXT NOT NULL,
		year INTEGER,
		month INTEGER,
		day_of_month INTEGER,
		suggested_price INTEGER,
		prevailing_price INTEGER,
		source TEXT,
		mode TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(zone_id, date),
		FOREIGN KEY (zone_id) REFERENCES necc_zones(id)
	);

	CREATE TABLE IF NOT EXISTS necc_scraper_logs (
		id TEXT PRIMARY KEY,
		scrape_date TEXT,
		target_year INTEGER,
		target_month INTEGER,
		status TEXT,
		zones_scraped INTEGER DEFAULT 0,
		zones_successful INTEGER DEFAULT 0,
		zones_failed INTEGER DEFAULT 0,
		prices_inserted INTEGER DEFAULT 0,
		error_details JSON,
		error_message TEXT,
		created_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_prices_year_month ON necc_prices(year, month);
	CREATE INDEX IF NOT EXISTS idx_logs_created ON necc_scraper_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Zones
// =============================================================================

func (s *SQLiteStore) ActiveZones(ctx context.Context) ([]models.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, is_active FROM necc_zones WHERE is_active = TRUE ORDER BY name`)
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

// SeedZones makes sure every name exists as an active zone. Existing zones
// keep their ids. Returns how many zones were created.
func (s *SQLiteStore) SeedZones(ctx context.Context, names []string) (int, error) {
	created := 0
	for _, name := range names {
		name = identity.NormalizeZoneName(name)
		if name == "" {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO necc_zones (id, name, is_active) VALUES (?, ?, TRUE) ON CONFLICT(name) DO NOTHING`,
			uuid.New().String(), name)
		if err != nil {
			return created, fmt.Errorf("seed zone %s: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		}
	}
	return created, nil
}

// =============================================================================
// Prices
// =============================================================================

func (s *SQLiteStore) GetPriceRecord(ctx context.Context, zoneID uuid.UUID, date time.Time) (*models.PriceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, zone_id, date, year, month, day_of_month, suggested_price, prevailing_price,
			source, mode, created_at, updated_at
		FROM necc_prices WHERE zone_id = ? AND date = ?`,
		zoneID.String(), date.Format(models.DateLayout))

	var r models.PriceRecord
	var day string
	var suggested, prevailing sql.NullInt64
	err := row.Scan(&r.ID, &r.ZoneID, &day, &r.Year, &r.Month, &r.DayOfMonth, &suggested, &prevailing,
		&r.Source, &r.Mode, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Date, err = time.Parse(models.DateLayout, day)
	if err != nil {
		return nil, fmt.Errorf("decode date: %w", err)
	}
	r.SuggestedPrice = nullableInt(suggested)
	r.PrevailingPrice = nullableInt(prevailing)
	return &r, nil
}

func (s *SQLiteStore) InsertPriceRecord(ctx context.Context, r *models.PriceRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO necc_prices (id, zone_id, date, year, month, day_of_month, suggested_price,
			prevailing_price, source, mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.ZoneID.String(), r.Date.Format(models.DateLayout), r.Year, r.Month, r.DayOfMonth,
		r.SuggestedPrice, r.PrevailingPrice, r.Source, r.Mode, r.CreatedAt, r.UpdatedAt)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", models.ErrDuplicatePrice, err)
	}
	return err
}

func (s *SQLiteStore) UpdatePriceRecord(ctx context.Context, r *models.PriceRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE necc_prices SET suggested_price = ?, prevailing_price = ?, updated_at = ? WHERE id = ?`,
		r.SuggestedPrice, r.PrevailingPrice, r.UpdatedAt, r.ID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("price record %s not found", r.ID)
	}
	return nil
}

// CountPriceRecords returns how many price rows exist for a month
func (s *SQLiteStore) CountPriceRecords(ctx context.Context, year, month int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM necc_prices WHERE year = ? AND month = ?`, year, month).Scan(&n)
	return n, err
}

// =============================================================================
// Scrape Run Logs
// =============================================================================

func (s *SQLiteStore) CreateScrapeRunLog(ctx context.Context, run *models.ScrapeRunLog) error {
	details, err := json.Marshal(run.ErrorDetails)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO necc_scraper_logs (id, scrape_date, target_year, target_month, status, zones_scraped,
			zones_successful, zones_failed, prices_inserted, error_details, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.ScrapeDate.Format(models.DateLayout), run.TargetYear, run.TargetMonth,
		string(run.Status), run.ZonesScraped, run.ZonesSuccessful, run.ZonesFailed, run.PricesInserted,
		string(details), run.ErrorMessage, run.CreatedAt)
	return err
}

func (s *SQLiteStore) RecentScrapeRunLogs(ctx context.Context, limit int) ([]models.ScrapeRunLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scrape_date, target_year, target_month, status, zones_scraped, zones_successful,
			zones_failed, prices_inserted, error_details, error_message, created_at
		FROM necc_scraper_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRunLog
	for rows.Next() {
		var run models.ScrapeRunLog
		var scrapeDate, status string
		var details sql.NullString
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &scrapeDate, &run.TargetYear, &run.TargetMonth, &status,
			&run.ZonesScraped, &run.ZonesSuccessful, &run.ZonesFailed, &run.PricesInserted,
			&details, &errMsg, &run.CreatedAt); err != nil {
			return nil, err
		}

		run.ScrapeDate, err = time.Parse(models.DateLayout, scrapeDate)
		if err != nil {
			return nil, fmt.Errorf("decode scrape_date: %w", err)
		}
		run.Status = models.RunStatus(status)
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &run.ErrorDetails); err != nil {
				return nil, fmt.Errorf("decode error_details: %w", err)
			}
		}
		if errMsg.Valid {
			msg := errMsg.String
			run.ErrorMessage = &msg
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var raw []byte
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return 0, err
		}
	}

	res, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, string(cmd), string(raw))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at
		FROM commands WHERE processed_at IS NULL
		ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var command string
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Command = models.CommandType(command)
		if params.Valid && params.String != "" {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, fmt.Errorf("parse params for command %d: %w", cmd.ID, err)
	}
	return params, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
