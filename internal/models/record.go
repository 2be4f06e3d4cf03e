package models

import (
	"errors"
	"time"
)

// TimestampLayout is the wall-clock layout persisted for record timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one persisted observation. Records are append-only.
type Record struct {
	Timestamp time.Time // cycle start time
	Label     string
	Date      string
	Price     Price
}

// NewRecord builds a record for a route observed at cycle time ts.
func NewRecord(ts time.Time, route Route, price Price) Record {
	return Record{
		Timestamp: ts.Truncate(time.Second),
		Label:     route.Label,
		Date:      route.Date,
		Price:     price,
	}
}

// Validate checks that all record fields are valid.
func (r *Record) Validate() error {
	if r.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if r.Label == "" {
		return errors.New("label must not be empty")
	}
	if r.Date == "" {
		return errors.New("date must not be empty")
	}
	return r.Price.Validate()
}

// RouteResult is the per-route outcome of one collection cycle.
type RouteResult struct {
	Route       Route
	Price       Price
	Previous    *Price // baseline, nil when the route has no prior record
	AlertWorthy bool
}
