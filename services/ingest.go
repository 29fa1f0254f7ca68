package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"necc_scraper/metrics"
	"necc_scraper/models"
)

// PriceStore persists daily price records keyed by (zone, date)
type PriceStore interface {
	GetPriceRecord(ctx context.Context, zoneID uuid.UUID, date time.Time) (*models.PriceRecord, error)
	InsertPriceRecord(ctx context.Context, rec *models.PriceRecord) error
	UpdatePriceRecord(ctx context.Context, rec *models.PriceRecord) error
}

// IngestService upserts scraped prices one row at a time. A failing row is
// recorded and skipped; it never stops the rows after it.
type IngestService struct {
	store  PriceStore
	logger *zap.Logger
	now    func() time.Time
}

func NewIngestService(store PriceStore, logger *zap.Logger) *IngestService {
	return &IngestService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Ingest processes prices sequentially in the order given
func (s *IngestService) Ingest(ctx context.Context, prices []models.ScrapedPrice, zones ZoneLookup) *models.ScrapeResult {
	result := &models.ScrapeResult{
		ZonesScraped: len(prices),
		Errors:       []string{},
	}

	for i := range prices {
		outcome, err := s.ingestOne(ctx, &prices[i], zones)
		if err != nil {
			result.ZonesFailed++
			result.Errors = append(result.Errors, err.Error())
			metrics.PriceRowsTotal.WithLabelValues(outcome).Inc()
			s.logger.Warn("Price row failed",
				zap.String("zone", prices[i].ZoneLabel),
				zap.String("date", prices[i].Date),
				zap.Error(err),
			)
			continue
		}

		result.ZonesSuccessful++
		result.PricesInserted++
		metrics.PriceRowsTotal.WithLabelValues(outcome).Inc()
	}

	result.Success = result.ZonesSuccessful > 0
	return result
}

func (s *IngestService) ingestOne(ctx context.Context, p *models.ScrapedPrice, zones ZoneLookup) (string, error) {
	zoneID, ok := zones.Resolve(p.ZoneLabel)
	if !ok {
		return metrics.OutcomeZoneNotFound, &ZoneNotFoundError{Label: p.ZoneLabel}
	}

	fail := func(op string, err error) (string, error) {
		return metrics.OutcomeWriteFailed, &WriteFailedError{
			Label:  p.ZoneLabel,
			ZoneID: zoneID,
			Date:   p.Date,
			Op:     op,
			Err:    err,
		}
	}

	date, err := time.Parse(models.DateLayout, p.Date)
	if err != nil {
		return fail("look up", fmt.Errorf("invalid date: %w", err))
	}

	existing, err := s.store.GetPriceRecord(ctx, zoneID, date)
	if err != nil {
		return fail("look up", err)
	}

	now := s.now()
	price := p.SuggestedPrice

	if existing != nil {
		if err := s.overwrite(ctx, existing, price, now); err != nil {
			return fail("update", err)
		}
		return metrics.OutcomeUpdated, nil
	}

	rec := &models.PriceRecord{
		ID:              uuid.New(),
		ZoneID:          zoneID,
		Date:            date,
		Year:            date.Year(),
		Month:           int(date.Month()),
		DayOfMonth:      date.Day(),
		SuggestedPrice:  &price,
		PrevailingPrice: nil,
		Source:          models.PriceSourceScraped,
		Mode:            models.PriceModeCron,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.store.InsertPriceRecord(ctx, rec)
	if errors.Is(err, models.ErrDuplicatePrice) {
		// Another run inserted the row after our lookup
		existing, err = s.store.GetPriceRecord(ctx, zoneID, date)
		if err != nil {
			return fail("look up", err)
		}
		if existing == nil {
			return fail("insert", models.ErrDuplicatePrice)
		}
		if err := s.overwrite(ctx, existing, price, now); err != nil {
			return fail("update", err)
		}
		return metrics.OutcomeUpdated, nil
	}
	if err != nil {
		return fail("insert", err)
	}
	return metrics.OutcomeInserted, nil
}

// overwrite applies the scraped price to an existing record. Upstream revises
// published prices, so the latest scrape always wins.
func (s *IngestService) overwrite(ctx context.Context, existing *models.PriceRecord, price int, now time.Time) error {
	existing.SuggestedPrice = &price
	existing.PrevailingPrice = nil
	existing.UpdatedAt = now
	return s.store.UpdatePriceRecord(ctx, existing)
}
