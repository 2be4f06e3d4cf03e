// Package serpapi fetches flight listings from the SerpApi Google Flights engine.
package serpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/rewired-gh/farewatch/internal/source"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the public SerpApi endpoint.
const DefaultBaseURL = "https://serpapi.com"

const (
	searchPath   = "/search.json"
	noResultsMsg = "hasn't returned any results"
	maxBodyBytes = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	APIKey   string
	Currency string
	DumpDir  string // raw responses are written here when set
	Timeout  time.Duration
}

// Client provides access to the search API.
type Client struct {
	opts       Options
	httpClient *http.Client
}

// NewClient creates a new client. An empty API key is accepted here and
// reported by Fetch as source.ErrNoConfiguration.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Currency == "" {
		opts.Currency = "EUR"
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// Name implements source.Adapter.
func (c *Client) Name() string {
	return "serpapi"
}

// Fetch implements source.Adapter.
func (c *Client) Fetch(ctx context.Context, route models.Route) (models.Quote, error) {
	if c.opts.APIKey == "" {
		return models.Quote{}, fmt.Errorf("serpapi api key is empty: %w", source.ErrNoConfiguration)
	}

	q := url.Values{}
	q.Set("engine", "google_flights")
	q.Set("departure_id", route.Origin)
	q.Set("arrival_id", route.Destination)
	q.Set("outbound_date", route.Date)
	q.Set("type", "2") // one way
	q.Set("currency", c.opts.Currency)
	q.Set("hl", "en")
	q.Set("api_key", c.opts.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+searchPath+"?"+q.Encode(), nil)
	if err != nil {
		return models.Quote{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", source.RandomUserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to search flights for %s: %w", route.Label, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to read search response: %w", err)
	}
	c.dump(route, body)

	quote, err := parseSearch(body, c.opts.Currency)
	if err != nil {
		return models.Quote{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if quote.Kind == models.QuoteNotFound {
			return quote, nil
		}
		return models.Quote{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return quote, nil
}

// dump writes the raw response for later inspection. Failures only log.
func (c *Client) dump(route models.Route, body []byte) {
	if c.opts.DumpDir == "" {
		return
	}
	if err := os.MkdirAll(c.opts.DumpDir, 0o755); err != nil {
		logger.Warn("Failed to create dump directory: %v", err)
		return
	}
	name := fmt.Sprintf("serpapi-%s-%s.json", safeName(route.Label), uuid.New().String())
	path := filepath.Join(c.opts.DumpDir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		logger.Warn("Failed to write response dump: %v", err)
		return
	}
	logger.Debug("Response for %s dumped to %s", route.Label, path)
}

// parseSearch extracts the first best flight, falling back to the first other flight.
func parseSearch(body []byte, currency string) (models.Quote, error) {
	if !gjson.ValidBytes(body) {
		return models.Quote{}, fmt.Errorf("malformed search response")
	}
	doc := gjson.ParseBytes(body)

	if msg := doc.Get("error"); msg.Exists() {
		if strings.Contains(msg.String(), noResultsMsg) {
			return models.NotFoundQuote(), nil
		}
		return models.Quote{}, fmt.Errorf("search error: %s", msg.String())
	}

	offer := doc.Get("best_flights.0")
	if !offer.Exists() {
		offer = doc.Get("other_flights.0")
	}
	if !offer.Exists() {
		return models.NotFoundQuote(), nil
	}

	price := offer.Get("price")
	if !price.Exists() {
		return models.NotFoundQuote(), nil
	}
	amount, err := decimal.NewFromString(price.String())
	if err != nil {
		return models.Quote{}, fmt.Errorf("invalid price %q: %w", price.Raw, err)
	}

	quote := models.NewQuote(amount, strings.ToUpper(currency))
	quote.Airline = offer.Get("flights.0.airline").String()
	if n := offer.Get("flights.#").Int(); n > 0 {
		quote.Stops = int(n) - 1
		quote.HasStops = true
	}
	return quote, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
