// Package history persists price observations and answers baseline queries.
//
// Two backends are provided: an append-only CSV file (the default, readable
// by spreadsheet tools and accepting older 4-column files) and a SQL table on
// SQLite or PostgreSQL.
package history

import (
	"context"
	"fmt"

	"github.com/rewired-gh/farewatch/internal/models"
)

// Store is the persistence contract used by the collection cycle.
type Store interface {
	// Append persists one record. Records are never updated or deleted.
	Append(ctx context.Context, rec models.Record) error
	// LastByRoute returns the most recent record per label. With numericOnly,
	// records whose status is not ok are ignored.
	LastByRoute(ctx context.Context, numericOnly bool) (map[string]models.Record, error)
	// RouteHistory returns all records for a label in append order.
	RouteHistory(ctx context.Context, label string) ([]models.Record, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Path     string // CSV file path
	DSN      string // SQL data source name
	Currency string // reference currency assumed for bare CSV amounts
}

// Open creates the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendCSV:
		return NewCSVStore(opts.Path, opts.Currency), nil
	case BackendSQLite, BackendPostgres:
		s, err := NewSQLStore(ctx, opts.Backend, opts.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", opts.Backend)
	}
}

// latest reduces records in append order to the last one per label.
func latest(records []models.Record, numericOnly bool) map[string]models.Record {
	out := make(map[string]models.Record)
	for _, rec := range records {
		if numericOnly && !rec.Price.OK() {
			continue
		}
		out[rec.Label] = rec
	}
	return out
}
