package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"necc_scraper/config"
	"necc_scraper/models"
)

// SupabaseStore talks to the hosted backend through its PostgREST API
type SupabaseStore struct {
	url        string
	serviceKey string
	client     *http.Client
}

func NewSupabaseStore(cfg *config.SupabaseConfig, client *http.Client) *SupabaseStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		client:     client,
	}
}

func (s *SupabaseStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// priceRow is the REST shape of a price record; dates travel as YYYY-MM-DD
type priceRow struct {
	ID              uuid.UUID `json:"id"`
	ZoneID          uuid.UUID `json:"zone_id"`
	Date            string    `json:"date"`
	Year            int       `json:"year"`
	Month           int       `json:"month"`
	DayOfMonth      int       `json:"day_of_month"`
	SuggestedPrice  *int      `json:"suggested_price"`
	PrevailingPrice *int      `json:"prevailing_price"`
	Source          string    `json:"source"`
	Mode            string    `json:"mode"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type runLogRow struct {
	ID              uuid.UUID        `json:"id"`
	ScrapeDate      string           `json:"scrape_date"`
	TargetYear      int              `json:"target_year"`
	TargetMonth     int              `json:"target_month"`
	Status          models.RunStatus `json:"status"`
	ZonesScraped    int              `json:"zones_scraped"`
	ZonesSuccessful int              `json:"zones_successful"`
	ZonesFailed     int              `json:"zones_failed"`
	PricesInserted  int              `json:"prices_inserted"`
	ErrorDetails    []string         `json:"error_details"`
	ErrorMessage    *string          `json:"error_message"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (s *SupabaseStore) ActiveZones(ctx context.Context) ([]models.Zone, error) {
	q := url.Values{}
	q.Set("select", "id,name,is_active")
	q.Set("is_active", "eq.true")

	var zones []models.Zone
	if err := s.do(ctx, http.MethodGet, zonesTable, q, nil, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

func (s *SupabaseStore) GetPriceRecord(ctx context.Context, zoneID uuid.UUID, date time.Time) (*models.PriceRecord, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("zone_id", "eq."+zoneID.String())
	q.Set("date", "eq."+date.Format(models.DateLayout))
	q.Set("limit", "1")

	var rows []priceRow
	if err := s.do(ctx, http.MethodGet, pricesTable, q, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toRecord()
}

func (s *SupabaseStore) InsertPriceRecord(ctx context.Context, r *models.PriceRecord) error {
	row := priceRow{
		ID:              r.ID,
		ZoneID:          r.ZoneID,
		Date:            r.Date.Format(models.DateLayout),
		Year:            r.Year,
		Month:           r.Month,
		DayOfMonth:      r.DayOfMonth,
		SuggestedPrice:  r.SuggestedPrice,
		PrevailingPrice: r.PrevailingPrice,
		Source:          r.Source,
		Mode:            r.Mode,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	err := s.do(ctx, http.MethodPost, pricesTable, nil, row, nil)
	var restErr *restError
	if errors.As(err, &restErr) && restErr.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %v", models.ErrDuplicatePrice, err)
	}
	return err
}

func (s *SupabaseStore) UpdatePriceRecord(ctx context.Context, r *models.PriceRecord) error {
	q := url.Values{}
	q.Set("id", "eq."+r.ID.String())

	patch := map[string]interface{}{
		"suggested_price":  r.SuggestedPrice,
		"prevailing_price": r.PrevailingPrice,
		"updated_at":       r.UpdatedAt,
	}

	// PostgREST answers a PATCH that matched nothing with 200 and no rows
	var updated []priceRow
	if err := s.do(ctx, http.MethodPatch, pricesTable, q, patch, &updated); err != nil {
		return err
	}
	if len(updated) == 0 {
		return fmt.Errorf("price record %s not found", r.ID)
	}
	return nil
}

func (s *SupabaseStore) CreateScrapeRunLog(ctx context.Context, run *models.ScrapeRunLog) error {
	row := runLogRow{
		ID:              run.ID,
		ScrapeDate:      run.ScrapeDate.Format(models.DateLayout),
		TargetYear:      run.TargetYear,
		TargetMonth:     run.TargetMonth,
		Status:          run.Status,
		ZonesScraped:    run.ZonesScraped,
		ZonesSuccessful: run.ZonesSuccessful,
		ZonesFailed:     run.ZonesFailed,
		PricesInserted:  run.PricesInserted,
		ErrorDetails:    run.ErrorDetails,
		ErrorMessage:    run.ErrorMessage,
		CreatedAt:       run.CreatedAt,
	}
	return s.do(ctx, http.MethodPost, runLogsTable, nil, row, nil)
}

func (s *SupabaseStore) RecentScrapeRunLogs(ctx context.Context, limit int) ([]models.ScrapeRunLog, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))

	var rows []runLogRow
	if err := s.do(ctx, http.MethodGet, runLogsTable, q, nil, &rows); err != nil {
		return nil, err
	}

	runs := make([]models.ScrapeRunLog, 0, len(rows))
	for _, row := range rows {
		scrapeDate, err := time.Parse(models.DateLayout, row.ScrapeDate)
		if err != nil {
			return nil, fmt.Errorf("decode scrape_date: %w", err)
		}
		runs = append(runs, models.ScrapeRunLog{
			ID:              row.ID,
			ScrapeDate:      scrapeDate,
			TargetYear:      row.TargetYear,
			TargetMonth:     row.TargetMonth,
			Status:          row.Status,
			ZonesScraped:    row.ZonesScraped,
			ZonesSuccessful: row.ZonesSuccessful,
			ZonesFailed:     row.ZonesFailed,
			PricesInserted:  row.PricesInserted,
			ErrorDetails:    row.ErrorDetails,
			ErrorMessage:    row.ErrorMessage,
			CreatedAt:       row.CreatedAt,
		})
	}
	return runs, nil
}

func (r priceRow) toRecord() (*models.PriceRecord, error) {
	date, err := time.Parse(models.DateLayout, r.Date)
	if err != nil {
		return nil, fmt.Errorf("decode date: %w", err)
	}
	return &models.PriceRecord{
		ID:              r.ID,
		ZoneID:          r.ZoneID,
		Date:            date,
		Year:            r.Year,
		Month:           r.Month,
		DayOfMonth:      r.DayOfMonth,
		SuggestedPrice:  r.SuggestedPrice,
		PrevailingPrice: r.PrevailingPrice,
		Source:          r.Source,
		Mode:            r.Mode,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

type restError struct {
	StatusCode int
	Body       string
}

func (e *restError) Error() string {
	return fmt.Sprintf("supabase error %d: %s", e.StatusCode, e.Body)
}

func (s *SupabaseStore) do(ctx context.Context, method, table string, query url.Values, in, out interface{}) error {
	endpoint := s.url + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if method != http.MethodGet {
		if out != nil {
			req.Header.Set("Prefer", "return=representation")
		} else {
			req.Header.Set("Prefer", "return=minimal")
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return &restError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
