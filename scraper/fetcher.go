package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"necc_scraper/config"
)

// StatusError is returned when the upstream page answers with a non-2xx code
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch NECC page: %d %s", e.StatusCode, e.Status)
}

// Fetcher downloads the NECC monthly price page
type Fetcher struct {
	src    config.SourceConfig
	client *http.Client
}

func NewFetcher(src config.SourceConfig, client *http.Client) *Fetcher {
	return &Fetcher{src: src, client: client}
}

// PageURL builds the upstream URL for a month
func (f *Fetcher) PageURL(year, month int) (string, error) {
	u, err := url.Parse(f.src.URL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	q := u.Query()
	q.Set("month", strconv.Itoa(month))
	q.Set("year", strconv.Itoa(year))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch returns the raw HTML for (year, month). There is no retry here;
// any non-2xx answer aborts the invocation.
func (f *Fetcher) Fetch(ctx context.Context, year, month int) (string, error) {
	pageURL, err := f.PageURL(year, month)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.src.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
