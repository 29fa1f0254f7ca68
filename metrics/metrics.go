package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// Business metrics for the price scraper
	ScrapeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "necc_scrape_runs_total",
			Help: "Total number of scrape runs by final status",
		},
		[]string{"status"},
	)

	ScrapeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "necc_scrape_duration_seconds",
			Help:    "Wall time of a full fetch, parse and ingest run",
			Buckets: prometheus.DefBuckets,
		},
	)

	PriceRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "necc_price_rows_total",
			Help: "Parsed price rows by ingestion outcome",
		},
		[]string{"outcome"},
	)
)

const (
	OutcomeInserted     = "inserted"
	OutcomeUpdated      = "updated"
	OutcomeZoneNotFound = "zone_not_found"
	OutcomeWriteFailed  = "write_failed"
)
