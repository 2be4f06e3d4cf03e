// Package collector runs one collection cycle: fetch every route in order,
// persist each observation, then render charts and send at most one
// notification summarizing the price changes.
//
// The cycle is strictly sequential. A route's fetch and append finish before
// the next route is fetched, and consecutive fetches are separated by a random
// pacing delay. Per-route failures are logged and never stop the cycle.
package collector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rewired-gh/farewatch/internal/chart"
	"github.com/rewired-gh/farewatch/internal/history"
	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/metrics"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/rewired-gh/farewatch/internal/monitor"
	"github.com/rewired-gh/farewatch/internal/pricing"
	"github.com/rewired-gh/farewatch/internal/report"
	"github.com/rewired-gh/farewatch/internal/retry"
	"github.com/rewired-gh/farewatch/internal/source"
	"github.com/shopspring/decimal"
)

// Config holds the cycle parameters.
type Config struct {
	Routes     []models.Route
	Retry      retry.Policy
	PaceMin    time.Duration
	PaceMax    time.Duration
	Adjustment *decimal.Decimal // applied to successful quotes when set
	Baseline   monitor.Baseline
}

// ChartRenderer draws one route's history.
type ChartRenderer interface {
	Render(route models.Route, records []models.Record) (string, error)
	Path(route models.Route) string
}

// Deps are the collaborators of a Collector.
type Deps struct {
	Source     source.Adapter
	Normalizer *pricing.Normalizer
	Detector   *monitor.Detector
	Store      history.Store
	Charts     ChartRenderer
	Dispatcher *report.Dispatcher
	Metrics    *metrics.Registry
}

// Summary describes a finished cycle.
type Summary struct {
	Started        time.Time
	Duration       time.Duration
	Results        []models.RouteResult
	Counts         map[models.Status]int
	Alerts         int
	AppendFailures int
	ChartsRendered int
	Notified       bool
}

// Collector runs collection cycles.
type Collector struct {
	cfg  Config
	deps Deps

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// New creates a Collector. Nil Detector, Dispatcher and Metrics get defaults.
func New(cfg Config, deps Deps) *Collector {
	if deps.Detector == nil {
		deps.Detector = monitor.New(decimal.Zero)
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = report.NewDispatcher()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if cfg.Baseline == "" {
		cfg.Baseline = monitor.BaselineLastNumeric
	}
	if cfg.PaceMax < cfg.PaceMin {
		cfg.PaceMax = cfg.PaceMin
	}
	return &Collector{
		cfg:   cfg,
		deps:  deps,
		now:   time.Now,
		sleep: retry.Sleep,
		rand:  rand.Float64,
	}
}

// Run executes one cycle. It returns an error only when ctx ends before the
// cycle completes; the summary then covers the routes processed so far.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	started := c.now()
	summary := &Summary{
		Started: started,
		Counts:  make(map[models.Status]int),
	}
	logger.Info("Collecting prices at %s for %d routes", started.Format(models.TimestampLayout), len(c.cfg.Routes))

	index := c.loadBaseline(ctx)

	for i, route := range c.cfg.Routes {
		result, err := c.collectRoute(ctx, started, route, index, summary)
		if err != nil {
			return c.finish(summary), err
		}
		summary.Results = append(summary.Results, result)

		if i < len(c.cfg.Routes)-1 {
			if err := c.pace(ctx); err != nil {
				return c.finish(summary), fmt.Errorf("cycle interrupted: %w", err)
			}
		}
	}

	attachments := c.renderCharts(ctx, summary)
	c.notify(ctx, summary, attachments)

	c.finish(summary)
	c.deps.Metrics.LastSuccess.Set(float64(c.now().Unix()))
	logger.Info("Price collection completed in %v (%d alerts)", summary.Duration, summary.Alerts)
	return summary, nil
}

func (c *Collector) finish(s *Summary) *Summary {
	s.Duration = c.now().Sub(s.Started)
	c.deps.Metrics.CycleSeconds.Set(s.Duration.Seconds())
	return s
}

// loadBaseline snapshots the previous prices before any fetch. A read failure
// leaves the baseline empty so no alert fires this cycle.
func (c *Collector) loadBaseline(ctx context.Context) monitor.Index {
	latest, err := c.deps.Store.LastByRoute(ctx, c.cfg.Baseline.NumericOnly())
	if err != nil {
		logger.Error("Failed to load last prices: %v", err)
		return monitor.Index{}
	}
	idx := monitor.NewIndex(latest)
	logger.Debug("Loaded %d baseline prices (%s)", len(idx), c.cfg.Baseline)
	return idx
}

func (c *Collector) collectRoute(ctx context.Context, started time.Time, route models.Route, index monitor.Index, s *Summary) (models.RouteResult, error) {
	price, err := c.fetchPrice(ctx, route)
	if err != nil {
		return models.RouteResult{}, err
	}

	s.Counts[price.Status]++
	c.deps.Metrics.Quotes.WithLabelValues(route.Label, string(price.Status)).Inc()
	logger.Info("%s on %s: %s", route.Label, route.Date, price.Display())

	if err := c.deps.Store.Append(ctx, models.NewRecord(started, route, price)); err != nil {
		s.AppendFailures++
		c.deps.Metrics.AppendFailures.Inc()
		logger.Error("Failed to record price for %s: %v", route.Label, err)
	}

	previous := index.Previous(route.Label)
	worthy := c.deps.Detector.IsAlertWorthy(previous, price)
	if worthy {
		s.Alerts++
		c.deps.Metrics.Alerts.Inc()
		logger.Info("Price change for %s: %s (was %s)", route.Label, price.ComparisonDisplay(), previous.ComparisonDisplay())
	}

	return models.RouteResult{
		Route:       route,
		Price:       price,
		Previous:    previous,
		AlertWorthy: worthy,
	}, nil
}

// fetchPrice always yields a price unless ctx ended.
func (c *Collector) fetchPrice(ctx context.Context, route models.Route) (models.Price, error) {
	name := c.deps.Source.Name()
	policy := c.cfg.Retry
	policy.OnRetry = func(attempt int, err error) {
		logger.Warn("Fetch for %s failed (attempt %d/%d): %v", route.Label, attempt, policy.MaxAttempts, err)
	}

	quote, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (models.Quote, error) {
		c.deps.Metrics.FetchAttempts.WithLabelValues(name).Inc()
		logger.Debug("Requesting %s from %s (attempt %d)", route.Label, name, attempt)
		q, err := c.deps.Source.Fetch(ctx, route)
		if errors.Is(err, source.ErrNoConfiguration) {
			return q, retry.Permanent(err)
		}
		return q, err
	})

	switch {
	case err == nil:
		return c.deps.Normalizer.Normalize(quote, c.cfg.Adjustment), nil
	case ctx.Err() != nil:
		return models.Price{}, ctx.Err()
	case errors.Is(err, source.ErrNoConfiguration):
		logger.Warn("Source %s is not configured: %v", name, err)
		return models.Price{Status: models.StatusNoData, Details: err.Error()}, nil
	default:
		logger.Error("Fetch for %s failed: %v", route.Label, err)
		return c.deps.Normalizer.Normalize(models.SourceErrorQuote(err.Error()), nil), nil
	}
}

// pace sleeps a uniform random duration in [PaceMin, PaceMax].
func (c *Collector) pace(ctx context.Context) error {
	d := c.cfg.PaceMin
	if spread := c.cfg.PaceMax - c.cfg.PaceMin; spread > 0 {
		d += time.Duration(c.rand() * float64(spread))
	}
	if d <= 0 {
		return ctx.Err()
	}
	logger.Debug("Waiting %v before next route", d.Round(time.Millisecond))
	return c.sleep(ctx, d)
}

// renderCharts draws every route with numeric history and returns the chart
// files that exist afterwards, in route order.
func (c *Collector) renderCharts(ctx context.Context, s *Summary) []string {
	if c.deps.Charts == nil {
		return nil
	}
	var attachments []string
	for _, route := range c.cfg.Routes {
		records, err := c.deps.Store.RouteHistory(ctx, route.Label)
		if err != nil {
			logger.Error("Failed to load history for %s: %v", route.Label, err)
		} else if path, err := c.deps.Charts.Render(route, records); errors.Is(err, chart.ErrNoData) {
			logger.Warn("No valid price data for %s", route.Label)
		} else if err != nil {
			logger.Error("Failed to render chart for %s: %v", route.Label, err)
		} else {
			s.ChartsRendered++
			c.deps.Metrics.ChartsRendered.Inc()
			logger.Info("Chart saved: %s", path)
		}

		path := c.deps.Charts.Path(route)
		if _, err := os.Stat(path); err == nil {
			attachments = append(attachments, path)
		}
	}
	return attachments
}

func (c *Collector) notify(ctx context.Context, s *Summary, attachments []string) {
	n, ok := report.Compose(s.Results, attachments)
	if !ok {
		logger.Info("No price changes, notification not sent")
		return
	}
	if c.deps.Dispatcher.Len() == 0 {
		logger.Warn("Price changes detected but no notification channel is configured")
		return
	}
	for _, d := range c.deps.Dispatcher.Dispatch(ctx, n) {
		c.deps.Metrics.NotificationResult(d.Channel, d.Err)
		if d.Err == nil {
			s.Notified = true
		}
	}
}
