package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/owlfest/aggregator/internal/resilience"
)

// HTTPPagedConfig configures an HTTPPagedAdapter.
type HTTPPagedConfig struct {
	// Name identifies the adapter (becomes the document's Source field).
	Name string

	// BaseURL is the portal's listing endpoint, e.g.
	// "https://api.example.com/v2/events".
	BaseURL string

	// PageSize is the number of records requested per page.
	PageSize int

	// RecordsPath is the JSON key under which the page's record array lives
	// (e.g. "events", "_embedded.events"). Empty means the response body is
	// itself a JSON array.
	RecordsPath string

	// UserAgent set on every request. Defaults to a descriptive bot UA,
	// following the teacher's scraper convention of identifying the bot.
	UserAgent string

	// RequestDelay is the minimum interval between outbound requests,
	// enforced by a resilience.RateLimiter. Default: 1s.
	RequestDelay time.Duration

	// Timeout is the per-request HTTP timeout. Default: 10s.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts on transient failures.
	// Default: 3.
	MaxRetries int

	// ExtraParams are added to every page request's query string (e.g. an
	// API key).
	ExtraParams map[string]string
}

// HTTPPagedAdapter is a generic linear offset/size paging adapter over a
// JSON endpoint, grounded on the teacher's rate-limited, retrying
// BaseScraper.MakeRequest but generalized from HTML scraping to JSON paging.
// Fetch stops when an empty page arrives, the cap is hit, or a fatal error
// follows partial data.
type HTTPPagedAdapter struct {
	cfg         HTTPPagedConfig
	httpClient  *http.Client
	rateLimiter *resilience.RateLimiter
}

// NewHTTPPagedAdapter constructs an HTTPPagedAdapter with defaults applied.
func NewHTTPPagedAdapter(cfg HTTPPagedConfig) *HTTPPagedAdapter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "OwlfestBot/1.0 (+https://owlfest.example/bot)"
	}
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &HTTPPagedAdapter{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: resilience.NewRateLimiter(cfg.RequestDelay),
	}
}

// Name implements Adapter.
func (a *HTTPPagedAdapter) Name() string { return a.cfg.Name }

// Fetch implements Adapter.
func (a *HTTPPagedAdapter) Fetch(ctx context.Context, cap int) ([]RawRecord, error) {
	var all []RawRecord
	offset := 0

	for {
		if cap > 0 && len(all) >= cap {
			break
		}

		page, err := a.fetchPage(ctx, offset, a.cfg.PageSize)
		if err != nil {
			// Partial data already collected is returned alongside the error
			// (§4.1 "fatal error after partial data").
			return all, fmt.Errorf("%s: fetch page at offset %d: %w", a.cfg.Name, offset, err)
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		offset += a.cfg.PageSize
	}

	if cap > 0 && len(all) > cap {
		all = all[:cap]
	}
	return all, nil
}

func (a *HTTPPagedAdapter) fetchPage(ctx context.Context, offset, size int) ([]RawRecord, error) {
	u, err := url.Parse(a.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("size", strconv.Itoa(size))
	for k, v := range a.cfg.ExtraParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var page []RawRecord
	err = resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: a.cfg.MaxRetries}, func() error {
		page, err = a.doRequest(ctx, u.String())
		return err
	})
	return page, err
}

func (a *HTTPPagedAdapter) doRequest(ctx context.Context, reqURL string) ([]RawRecord, error) {
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyNetErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, classifyHTTPStatus(resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, classifyHTTPStatus(resp.StatusCode)
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return extractRecords(body, a.cfg.RecordsPath), nil
}

// extractRecords walks body (a decoded JSON value) to the array at path
// (dot-separated, e.g. "_embedded.events"), returning each element as a
// RawRecord. An empty path expects body itself to be the array.
func extractRecords(body any, path string) []RawRecord {
	cur := body
	if path != "" {
		for _, key := range splitPath(path) {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[key]
		}
	}

	arr, ok := cur.([]any)
	if !ok {
		return nil
	}

	records := make([]RawRecord, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			records = append(records, RawRecord(m))
		}
	}
	return records
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}
