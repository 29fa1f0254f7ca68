package httputil

import (
	"net/http"
	"time"

	"necc_scraper/config"
)

type Clients struct {
	Scraping *http.Client // upstream NECC page
	API      *http.Client // Supabase REST
}

func NewClients(src *config.SourceConfig) *Clients {
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	scraping := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
