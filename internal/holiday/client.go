// Package holiday answers "is today a holiday" for the pricing engine. The
// remote calendar API is best-effort: any failure degrades to a static
// fallback table, and a miss there means "not a holiday" with a warning. The
// package never surfaces an error to its callers.
package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"medbook/internal/civil"
)

// Result is the outcome of a holiday check. Warning is set when the lookup
// degraded to fallback data; it must never abort a saga.
type Result struct {
	IsHoliday bool   `json:"is_holiday"`
	Name      string `json:"name,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// Holiday is one calendar entry as returned by a Fetcher.
type Holiday struct {
	Date string
	Name string
}

// Fetcher retrieves the holiday calendar for a year.
type Fetcher interface {
	FetchYear(ctx context.Context, year int) ([]Holiday, error)
}

// Known public holidays used when the remote API is unreachable.
var fallbackHolidays = map[string]string{
	"2024-01-26": "Republic Day",
	"2024-03-29": "Good Friday",
	"2024-08-15": "Independence Day",
	"2024-10-02": "Gandhi Jayanti",
	"2024-10-31": "Diwali",
	"2024-11-01": "Diwali",
	"2025-01-26": "Republic Day",
	"2025-03-29": "Holi",
	"2025-08-15": "Independence Day",
	"2025-10-02": "Gandhi Jayanti",
	"2025-10-20": "Diwali",
	"2025-10-21": "Diwali",
	"2026-01-26": "Republic Day",
	"2026-08-15": "Independence Day",
	"2026-10-02": "Gandhi Jayanti",
	"2026-11-08": "Diwali",
	"2026-11-09": "Diwali",
}

const (
	warnUsedFallback = "holiday API unavailable, used fallback data"
	warnNoFallback   = "holiday API unavailable, no holiday found in fallback data"
)

// Client checks whether today (in the civil zone) is a holiday.
type Client struct {
	fetcher  Fetcher
	fallback map[string]string
	logger   *slog.Logger
	now      func() time.Time
}

// NewClient constructs a holiday client. A nil fetcher skips the remote
// lookup entirely and goes straight to the fallback table.
func NewClient(fetcher Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		fetcher:  fetcher,
		fallback: fallbackHolidays,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock. Test support.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// CheckToday reports whether today is a holiday in the civil zone. It never
// returns an error: remote failures fold into the fallback/warning path.
func (c *Client) CheckToday(ctx context.Context) Result {
	now := c.now()
	today := civil.Date(now)

	if c.fetcher != nil {
		holidays, err := c.fetcher.FetchYear(ctx, now.In(civil.Zone).Year())
		if err == nil {
			for _, h := range holidays {
				if h.Date == today {
					return Result{IsHoliday: true, Name: h.Name}
				}
			}
			return Result{}
		}
		c.logger.Warn("holiday API failed, using fallback data", "error", err)
	}

	if name, ok := c.fallback[today]; ok {
		return Result{IsHoliday: true, Name: name, Warning: warnUsedFallback}
	}
	return Result{Warning: warnNoFallback}
}

// APIFetcher fetches the holiday calendar from a Calendarific-style HTTP API.
type APIFetcher struct {
	baseURL string
	apiKey  string
	country string
	client  *http.Client
}

// NewAPIFetcher constructs a fetcher against the given API endpoint. The
// timeout bounds the whole request; a hang must never stall a saga.
func NewAPIFetcher(baseURL, apiKey, country string, timeout time.Duration) *APIFetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &APIFetcher{
		baseURL: baseURL,
		apiKey:  apiKey,
		country: country,
		client:  &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Response struct {
		Holidays []struct {
			Name string `json:"name"`
			Date struct {
				ISO string `json:"iso"`
			} `json:"date"`
		} `json:"holidays"`
	} `json:"response"`
}

// FetchYear retrieves all holidays for a year.
func (f *APIFetcher) FetchYear(ctx context.Context, year int) ([]Holiday, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("holiday api url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", f.apiKey)
	q.Set("country", f.country)
	q.Set("year", fmt.Sprintf("%d", year))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday api status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode holiday response: %w", err)
	}

	out := make([]Holiday, 0, len(body.Response.Holidays))
	for _, h := range body.Response.Holidays {
		out = append(out, Holiday{Date: h.Date.ISO, Name: h.Name})
	}
	return out, nil
}
