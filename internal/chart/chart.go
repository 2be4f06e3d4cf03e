// Package chart renders a per-route price history as a PNG line chart.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rewired-gh/farewatch/internal/models"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when a route has no numeric observation to plot.
var ErrNoData = errors.New("no numeric price data")

var (
	rawColor      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	adjustedColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// Renderer writes charts into Dir, one file per route, overwritten each run.
type Renderer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// NewRenderer creates a renderer with a 10x6 inch canvas.
func NewRenderer(dir string) *Renderer {
	return &Renderer{Dir: dir, Width: 10 * vg.Inch, Height: 6 * vg.Inch}
}

// Path returns the chart file path for a route.
func (r *Renderer) Path(route models.Route) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(route.Label)
	return filepath.Join(r.Dir, fmt.Sprintf("%s_%s.png", name, route.Date))
}

// tickTime maps an axis value back to local wall-clock time, the zone the
// history timestamps are written in.
func tickTime(t float64) time.Time {
	return time.Unix(int64(t), 0)
}

// Render plots the ok observations in records for route and returns the file path.
func (r *Renderer) Render(route models.Route, records []models.Record) (string, error) {
	var raw, adjusted plotter.XYs
	currency := ""
	for _, rec := range records {
		if !rec.Price.OK() {
			continue
		}
		x := float64(rec.Timestamp.Unix())
		raw = append(raw, plotter.XY{X: x, Y: rec.Price.Amount.InexactFloat64()})
		if rec.Price.Adjusted.Valid {
			adjusted = append(adjusted, plotter.XY{X: x, Y: rec.Price.Adjusted.Decimal.InexactFloat64()})
		}
		currency = rec.Price.Currency
	}
	if len(raw) == 0 {
		return "", ErrNoData
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Price Changes for %s (%s)", route.Label, route.Date)
	p.X.Label.Text = "Timestamp"
	p.Y.Label.Text = fmt.Sprintf("Price (%s)", currency)
	p.X.Tick.Marker = plot.TimeTicks{
		Format: "2006-01-02\n15:04",
		Time:   tickTime,
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	if err := addSeries(p, route.Label, raw, rawColor); err != nil {
		return "", err
	}
	if len(adjusted) > 0 {
		if err := addSeries(p, route.Label+" (adjusted)", adjusted, adjustedColor); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}
	path := r.Path(route)
	if err := p.Save(r.Width, r.Height, path); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}
	return path, nil
}

func addSeries(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("failed to build series %s: %w", name, err)
	}
	line.Color = c
	points.Color = c
	p.Add(line, points)
	p.Legend.Add(name, line, points)
	return nil
}
