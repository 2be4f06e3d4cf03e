// Package models defines the core domain entities for farewatch.
// These models represent tracked routes, raw quotes from a price source,
// normalized prices, and persisted history records.
//
// Terminology:
//   - Route: an (origin, destination, travel date) triple with a display label.
//   - Quote: the raw outcome of one price source call.
//   - Price: a quote normalized into the reference currency, or a status tag.
//   - Record: one persisted observation of a route at a cycle timestamp.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the ISO date format used for travel dates.
const DateLayout = "2006-01-02"

// Route is a tracked flight, immutable for the process lifetime.
// Label is the key every downstream component uses for lookup and display.
type Route struct {
	Origin      string `mapstructure:"origin" json:"origin"`
	Destination string `mapstructure:"destination" json:"destination"`
	Date        string `mapstructure:"date" json:"date"` // YYYY-MM-DD
	Label       string `mapstructure:"label" json:"label"`
}

// Key returns the (origin, destination, date) identity of the route.
func (r Route) Key() string {
	return r.Origin + "-" + r.Destination + "@" + r.Date
}

// String implements fmt.Stringer.
func (r Route) String() string {
	return fmt.Sprintf("%s (%s→%s on %s)", r.Label, r.Origin, r.Destination, r.Date)
}

// Validate checks that all route fields are valid.
func (r *Route) Validate() error {
	if !isIATA(r.Origin) {
		return fmt.Errorf("origin %q must be a 3-letter airport code", r.Origin)
	}
	if !isIATA(r.Destination) {
		return fmt.Errorf("destination %q must be a 3-letter airport code", r.Destination)
	}
	if r.Origin == r.Destination {
		return errors.New("origin and destination must differ")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("date %q must be YYYY-MM-DD", r.Date)
	}
	if r.Label == "" {
		return errors.New("label must not be empty")
	}
	return nil
}

func isIATA(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
