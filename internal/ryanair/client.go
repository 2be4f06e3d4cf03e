// Package ryanair fetches one-way fares from the Ryanair booking availability API.
package ryanair

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/rewired-gh/farewatch/internal/source"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the public site root. The availability API lives under it.
const DefaultBaseURL = "https://www.ryanair.com"

const (
	availabilityPath = "/api/booking/v4/en-gb/availability"
	warmUpPath       = "/gb/en"
	defaultCurrency  = "EUR"
	maxBodyBytes     = 8 << 20
)

// Client provides access to the availability API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  func() string

	mu     sync.Mutex
	warmed string // key of the route the current session was opened for
	ua     string
}

// NewClient creates a new client with its own cookie jar so the warm-up
// request's session cookies are sent with the availability request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: source.RandomUserAgent,
	}
}

// Name implements source.Adapter.
func (c *Client) Name() string {
	return "ryanair"
}

// Fetch implements source.Adapter.
func (c *Client) Fetch(ctx context.Context, route models.Route) (models.Quote, error) {
	ua := c.session(ctx, route)

	q := url.Values{}
	q.Set("Origin", route.Origin)
	q.Set("Destination", route.Destination)
	q.Set("DateOut", route.Date)
	q.Set("FlexDaysOut", "0")
	q.Set("ADT", "1")
	q.Set("CHD", "0")
	q.Set("INF", "0")
	q.Set("TEEN", "0")
	q.Set("RoundTrip", "false")
	q.Set("ToUs", "AGREED")

	body, err := c.get(ctx, c.baseURL+availabilityPath+"?"+q.Encode(), ua)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to fetch availability for %s: %w", route.Label, err)
	}
	logger.Debug("Availability response for %s: %d bytes", route.Label, len(body))

	return parseAvailability(body, route.Date)
}

// session opens a browser-like session once per route and returns its
// User-Agent. Retries for the same route reuse the session.
func (c *Client) session(ctx context.Context, route models.Route) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warmed == route.Key() {
		return c.ua
	}
	c.ua = c.userAgent()
	c.warmUp(ctx, c.ua)
	c.warmed = route.Key()
	return c.ua
}

// warmUp loads the site root to pick up session cookies. Failures are ignored.
func (c *Client) warmUp(ctx context.Context, ua string) {
	if _, err := c.get(ctx, c.baseURL+warmUpPath, ua); err != nil {
		logger.Debug("Warm-up request failed: %v", err)
	}
}

func (c *Client) get(ctx context.Context, rawURL, ua string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.baseURL+warmUpPath)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// parseAvailability walks trips[].dates[] for the first dateOut on the travel
// date whose first flight carries a regular fare.
func parseAvailability(body []byte, date string) (models.Quote, error) {
	if !gjson.ValidBytes(body) {
		return models.Quote{}, fmt.Errorf("malformed availability response")
	}
	doc := gjson.ParseBytes(body)

	currency := doc.Get("currency").Str
	if currency == "" {
		currency = defaultCurrency
	}

	for _, trip := range doc.Get("trips").Array() {
		for _, d := range trip.Get("dates").Array() {
			if !strings.HasPrefix(d.Get("dateOut").Str, date) {
				continue
			}
			fare := d.Get("flights.0.regularFare.fares.0.amount")
			if !fare.Exists() {
				continue
			}
			amount, err := decimal.NewFromString(fare.String())
			if err != nil {
				return models.Quote{}, fmt.Errorf("invalid fare amount %q: %w", fare.Raw, err)
			}
			return models.NewQuote(amount, strings.ToUpper(currency)), nil
		}
	}
	return models.NotFoundQuote(), nil
}
