package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	PriceSourceScraped = "scraped"
	PriceModeCron      = "CRON"

	// DateLayout is the calendar date format used on the wire and in logs
	DateLayout = "2006-01-02"
)

// ErrDuplicatePrice is returned by stores when an insert hits an existing
// (zone_id, date) row
var ErrDuplicatePrice = errors.New("price record already exists")

// PriceRecord is one zone's egg price for one calendar day.
// (ZoneID, Date) is unique.
type PriceRecord struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ZoneID          uuid.UUID `json:"zone_id" db:"zone_id"`
	Date            time.Time `json:"date" db:"date"`
	Year            int       `json:"year" db:"year"`
	Month           int       `json:"month" db:"month"`
	DayOfMonth      int       `json:"day_of_month" db:"day_of_month"`
	SuggestedPrice  *int      `json:"suggested_price" db:"suggested_price"`
	PrevailingPrice *int      `json:"prevailing_price" db:"prevailing_price"`
	Source          string    `json:"source" db:"source"`
	Mode            string    `json:"mode" db:"mode"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ScrapedPrice is a single zone/day/rate triple pulled out of the price table
type ScrapedPrice struct {
	ZoneLabel       string `json:"zone"`
	Date            string `json:"date"` // YYYY-MM-DD
	SuggestedPrice  int    `json:"suggestedPrice"`
	PrevailingPrice *int   `json:"prevailingPrice"`
}
