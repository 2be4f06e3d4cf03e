package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLStore keeps records in a price_history table on SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// NewSQLStore opens the database and creates the schema if absent.
func NewSQLStore(ctx context.Context, backend, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s backend requires a dsn", backend)
	}
	driver := "sqlite"
	if backend == BackendPostgres {
		driver = "postgres"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s database: %w", backend, err)
	}
	if driver == "sqlite" {
		// a single connection keeps pragmas and in-memory databases consistent
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: backend, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close implements Store.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS price_history (
	id          TEXT PRIMARY KEY,
	observed_at TEXT NOT NULL,
	seq         BIGINT NOT NULL,
	label       TEXT NOT NULL,
	travel_date TEXT NOT NULL,
	status      TEXT NOT NULL,
	amount      TEXT,
	currency    TEXT,
	adjusted    TEXT,
	details     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_price_history_label_seq ON price_history (label, seq);
`
	if s.dialect == BackendSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != BackendPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, rec models.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	var amount, currency, adjusted sql.NullString
	if rec.Price.OK() {
		amount = sql.NullString{String: rec.Price.Amount.String(), Valid: true}
		currency = sql.NullString{String: rec.Price.Currency, Valid: true}
		if rec.Price.Adjusted.Valid {
			adjusted = sql.NullString{String: rec.Price.Adjusted.Decimal.String(), Valid: true}
		}
	}

	query := s.rebind(`
INSERT INTO price_history (id, observed_at, seq, label, travel_date, status, amount, currency, adjusted, details)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		rec.Timestamp.UTC().Format(time.RFC3339),
		s.now().UnixNano(),
		rec.Label,
		rec.Date,
		string(rec.Price.Status),
		amount,
		currency,
		adjusted,
		rec.Price.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

const selectColumns = `SELECT observed_at, label, travel_date, status, amount, currency, adjusted, details FROM price_history`

// LastByRoute implements Store. Rows are scanned in append order so a
// malformed newest row falls back to the route's previous valid row.
func (s *SQLStore) LastByRoute(ctx context.Context, numericOnly bool) (map[string]models.Record, error) {
	records, err := s.query(ctx, selectColumns+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return latest(records, numericOnly), nil
}

// RouteHistory implements Store.
func (s *SQLStore) RouteHistory(ctx context.Context, label string) ([]models.Record, error) {
	return s.query(ctx, s.rebind(selectColumns+` WHERE label = ? ORDER BY seq`), label)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	skipped := 0
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			logger.Debug("Skipping history row: %v", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	if skipped > 0 {
		logger.Warn("Skipped %d malformed rows in price_history", skipped)
	}
	return records, nil
}

// scanRecord decodes the current row. Any error marks the row as malformed.
func scanRecord(rows *sql.Rows) (models.Record, error) {
	var (
		observedAt, status         string
		details                    sql.NullString
		amount, currency, adjusted sql.NullString
		rec                        models.Record
	)
	if err := rows.Scan(&observedAt, &rec.Label, &rec.Date, &status, &amount, &currency, &adjusted, &details); err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, observedAt)
	if err != nil {
		return rec, fmt.Errorf("bad observed_at %q: %w", observedAt, err)
	}
	rec.Timestamp = ts.Local()

	st, ok := models.ParseStatus(status)
	if !ok {
		return rec, fmt.Errorf("unknown status %q", status)
	}
	rec.Price = models.Price{Status: st, Details: details.String}
	if st == models.StatusOK {
		if rec.Price.Amount, err = decimal.NewFromString(amount.String); err != nil {
			return rec, fmt.Errorf("bad amount %q: %w", amount.String, err)
		}
		rec.Price.Currency = currency.String
		if adjusted.Valid {
			adj, err := decimal.NewFromString(adjusted.String)
			if err != nil {
				return rec, fmt.Errorf("bad adjusted amount %q: %w", adjusted.String, err)
			}
			rec.Price.Adjusted = decimal.NewNullDecimal(adj)
		}
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}
