package services

import (
	"time"

	"github.com/google/uuid"
	"necc_scraper/models"
)

// DeriveStatus maps an ingest result to the audit status. A run with no
// successful rows is a failure even when nothing was reported as failed.
func DeriveStatus(result *models.ScrapeResult) models.RunStatus {
	if !result.Success {
		return models.RunStatusFailure
	}
	if result.ZonesFailed > 0 {
		return models.RunStatusPartial
	}
	return models.RunStatusSuccess
}

// BuildRunLog turns a completed ingest pass into its audit row
func BuildRunLog(id uuid.UUID, result *models.ScrapeResult, year, month int, now time.Time) *models.ScrapeRunLog {
	details := make([]string, len(result.Errors))
	copy(details, result.Errors)

	return &models.ScrapeRunLog{
		ID:              id,
		ScrapeDate:      calendarDate(now),
		TargetYear:      year,
		TargetMonth:     month,
		Status:          DeriveStatus(result),
		ZonesScraped:    result.ZonesScraped,
		ZonesSuccessful: result.ZonesSuccessful,
		ZonesFailed:     result.ZonesFailed,
		PricesInserted:  result.PricesInserted,
		ErrorDetails:    details,
		CreatedAt:       now,
	}
}

// BuildFailureLog is the audit row for a run that died before row processing
func BuildFailureLog(id uuid.UUID, runErr error, year, month int, now time.Time) *models.ScrapeRunLog {
	msg := runErr.Error()
	return &models.ScrapeRunLog{
		ID:           id,
		ScrapeDate:   calendarDate(now),
		TargetYear:   year,
		TargetMonth:  month,
		Status:       models.RunStatusFailure,
		ErrorDetails: []string{msg},
		ErrorMessage: &msg,
		CreatedAt:    now,
	}
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
