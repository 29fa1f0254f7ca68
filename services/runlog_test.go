package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"necc_scraper/models"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name   string
		result models.ScrapeResult
		want   models.RunStatus
	}{
		{"all good", models.ScrapeResult{Success: true, ZonesSuccessful: 3}, models.RunStatusSuccess},
		{"mixed", models.ScrapeResult{Success: true, ZonesSuccessful: 2, ZonesFailed: 1}, models.RunStatusPartial},
		{"nothing landed", models.ScrapeResult{Success: false, ZonesFailed: 4}, models.RunStatusFailure},
		{"nothing parsed", models.ScrapeResult{Success: false}, models.RunStatusFailure},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, DeriveStatus(&c.result))
		})
	}
}

func TestBuildRunLog(t *testing.T) {
	id := uuid.New()
	ist := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 3, 6, 1, 0, 0, 0, ist)
	result := &models.ScrapeResult{
		Success:         true,
		ZonesScraped:    10,
		ZonesSuccessful: 9,
		ZonesFailed:     1,
		PricesInserted:  9,
		Errors:          []string{"Zone not found: Atlantis"},
	}

	run := BuildRunLog(id, result, 2024, 3, now)

	assert.Equal(t, id, run.ID)
	assert.Equal(t, models.RunStatusPartial, run.Status)
	assert.Equal(t, "2024-03-06", run.ScrapeDate.Format(models.DateLayout))
	assert.Equal(t, 2024, run.TargetYear)
	assert.Equal(t, 3, run.TargetMonth)
	assert.Equal(t, 10, run.ZonesScraped)
	assert.Equal(t, run.ZonesScraped, run.ZonesSuccessful+run.ZonesFailed)
	assert.Equal(t, 9, run.PricesInserted)
	assert.Equal(t, []string{"Zone not found: Atlantis"}, run.ErrorDetails)
	assert.Nil(t, run.ErrorMessage)
}

func TestBuildFailureLog(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	run := BuildFailureLog(uuid.New(), errors.New("price table not found in HTML"), 2024, 3, now)

	assert.Equal(t, models.RunStatusFailure, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Equal(t, "price table not found in HTML", *run.ErrorMessage)
	assert.Equal(t, []string{"price table not found in HTML"}, run.ErrorDetails)
	assert.Zero(t, run.ZonesScraped)
	assert.Zero(t, run.ZonesSuccessful)
	assert.Zero(t, run.ZonesFailed)
	assert.Zero(t, run.PricesInserted)
}
