// Package monitor decides whether a newly observed price is worth an alert.
//
// The baseline for each route is the single most recent persisted record,
// looked up by route label. Which record counts as "most recent" depends on
// the Baseline policy:
//
//	last_numeric  most recent record whose status is ok (default)
//	last_record   most recent record whatever its status
//
// With last_record a failed observation leaves no numeric baseline, so the
// next successful price after a failure never alerts.
package monitor

import (
	"fmt"

	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/shopspring/decimal"
)

// Baseline selects which persisted record serves as the previous price.
type Baseline string

const (
	BaselineLastNumeric Baseline = "last_numeric"
	BaselineLastRecord  Baseline = "last_record"
)

// ParseBaseline validates a configured baseline policy name.
func ParseBaseline(s string) (Baseline, error) {
	switch Baseline(s) {
	case BaselineLastNumeric, BaselineLastRecord:
		return Baseline(s), nil
	case "":
		return BaselineLastNumeric, nil
	}
	return "", fmt.Errorf("invalid baseline policy %q: must be %s or %s", s, BaselineLastNumeric, BaselineLastRecord)
}

// NumericOnly reports whether the history lookup should skip non-ok records.
func (b Baseline) NumericOnly() bool {
	return b != BaselineLastRecord
}

// Index maps a route label to its previous price. It is built once per cycle
// and never updated during the cycle.
type Index map[string]models.Price

// NewIndex builds an Index from the latest record per label.
func NewIndex(latest map[string]models.Record) Index {
	idx := make(Index, len(latest))
	for label, rec := range latest {
		idx[label] = rec.Price
	}
	return idx
}

// Previous returns the baseline price for a label, or nil if there is none.
func (idx Index) Previous(label string) *models.Price {
	p, ok := idx[label]
	if !ok {
		return nil
	}
	return &p
}

// Detector evaluates alert-worthiness of a price against its baseline.
type Detector struct {
	// MinChange is the smallest absolute change that alerts. Zero means any
	// non-zero change.
	MinChange decimal.Decimal
}

// New creates a Detector. A negative minChange is treated as zero.
func New(minChange decimal.Decimal) *Detector {
	if minChange.IsNegative() {
		minChange = decimal.Zero
	}
	return &Detector{MinChange: minChange}
}

// IsAlertWorthy reports whether current differs from previous enough to alert.
// Both prices must be ok; comparison uses the adjusted price when present.
func (d *Detector) IsAlertWorthy(previous *models.Price, current models.Price) bool {
	if previous == nil {
		return false
	}
	cur, ok := current.Comparison()
	if !ok {
		return false
	}
	prev, ok := previous.Comparison()
	if !ok {
		return false
	}
	if cur.Equal(prev) {
		return false
	}
	if d.MinChange.IsPositive() && cur.Sub(prev).Abs().LessThan(d.MinChange) {
		return false
	}
	return true
}
