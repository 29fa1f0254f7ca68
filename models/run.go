package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailure RunStatus = "failure"
)

// ScrapeRunLog is the audit row written once per invocation
type ScrapeRunLog struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ScrapeDate      time.Time `json:"scrape_date" db:"scrape_date"`
	TargetYear      int       `json:"target_year" db:"target_year"`
	TargetMonth     int       `json:"target_month" db:"target_month"`
	Status          RunStatus `json:"status" db:"status"`
	ZonesScraped    int       `json:"zones_scraped" db:"zones_scraped"`
	ZonesSuccessful int       `json:"zones_successful" db:"zones_successful"`
	ZonesFailed     int       `json:"zones_failed" db:"zones_failed"`
	PricesInserted  int       `json:"prices_inserted" db:"prices_inserted"`
	ErrorDetails    []string  `json:"error_details" db:"error_details"`
	ErrorMessage    *string   `json:"error_message" db:"error_message"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// ScrapeResult summarises one pass of the ingestion engine
type ScrapeResult struct {
	Success         bool     `json:"success"`
	ZonesScraped    int      `json:"zonesScraped"`
	ZonesSuccessful int      `json:"zonesSuccessful"`
	ZonesFailed     int      `json:"zonesFailed"`
	PricesInserted  int      `json:"pricesInserted"`
	Errors          []string `json:"errors"`
}
