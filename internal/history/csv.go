package history

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/shopspring/decimal"
)

var csvHeader = []string{"Timestamp", "Flight", "Date", "Price", "Adjusted_Price", "Details"}

// legacy files carry only the first four columns
const legacyColumns = 4

// maxLineBytes bounds one history row; longer lines are skipped as malformed.
const maxLineBytes = 1 << 20

// CSVStore appends records to a CSV file. Every Append opens, writes one row
// and closes the file, so a crash mid-cycle loses at most the row in flight.
type CSVStore struct {
	path     string
	currency string
	mu       sync.Mutex
}

// NewCSVStore creates a store at path. The file and its directory are created
// on first append.
func NewCSVStore(path, currency string) *CSVStore {
	if currency == "" {
		currency = "EUR"
	}
	return &CSVStore{path: path, currency: strings.ToUpper(currency)}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Append implements Store.
func (s *CSVStore) Append(ctx context.Context, rec models.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat history file: %w", err)
	}

	// terminate a partial trailing line so it cannot swallow this row
	if size := info.Size(); size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return fmt.Errorf("failed to read history file: %w", err)
		}
		if last[0] != '\n' {
			if _, err := f.Write([]byte{'\n'}); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := w.Write(encodeRow(rec)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush record: %w", err)
	}
	return f.Close()
}

// LastByRoute implements Store.
func (s *CSVStore) LastByRoute(ctx context.Context, numericOnly bool) (map[string]models.Record, error) {
	records, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	return latest(records, numericOnly), nil
}

// RouteHistory implements Store.
func (s *CSVStore) RouteHistory(ctx context.Context, label string) ([]models.Record, error) {
	records, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Record
	for _, rec := range records {
		if rec.Label == label {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close implements Store. The CSV store holds no open handles.
func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) readAll(ctx context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	records, skipped, err := s.decode(ctx, f)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Warn("Skipped %d malformed rows in %s", skipped, s.path)
	}
	return records, nil
}

// decode parses rows one line at a time so that a malformed row, including a
// partial trailing line or one longer than maxLineBytes, only costs that row.
func (s *CSVStore) decode(ctx context.Context, r io.Reader) ([]models.Record, int, error) {
	br := bufio.NewReader(r)

	var records []models.Record
	skipped := 0
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		raw, tooLong, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read history file: %w", err)
		}
		if tooLong {
			logger.Debug("Skipping history row longer than %d bytes", maxLineBytes)
			first = false
			skipped++
			continue
		}
		line := strings.TrimRight(raw, "\r")
		if first {
			first = false
			if strings.HasPrefix(line, csvHeader[0]+",") {
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := s.decodeLine(line)
		if err != nil {
			logger.Debug("Skipping history row %q: %v", line, err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// readLine returns the next line without its terminator. A line over
// maxLineBytes is consumed in full but only reported as too long.
func readLine(br *bufio.Reader) (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		fragment, isPrefix, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong) {
				return string(buf), tooLong, nil
			}
			return "", false, err
		}
		if !tooLong {
			if len(buf)+len(fragment) > maxLineBytes {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, fragment...)
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

func (s *CSVStore) decodeLine(line string) (models.Record, error) {
	fields, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return models.Record{}, err
	}
	if len(fields) != legacyColumns && len(fields) != len(csvHeader) {
		return models.Record{}, fmt.Errorf("expected %d or %d columns, got %d", legacyColumns, len(csvHeader), len(fields))
	}

	ts, err := time.ParseInLocation(models.TimestampLayout, fields[0], time.Local)
	if err != nil {
		return models.Record{}, fmt.Errorf("bad timestamp: %w", err)
	}
	rec := models.Record{Timestamp: ts, Label: fields[1], Date: fields[2]}

	price, err := s.decodePrice(fields[3])
	if err != nil {
		return models.Record{}, err
	}
	if len(fields) == len(csvHeader) {
		if adj := strings.TrimSpace(fields[4]); adj != "" && price.OK() {
			amount, _, err := models.ParseMoney(adj)
			if err != nil {
				return models.Record{}, fmt.Errorf("bad adjusted price: %w", err)
			}
			price.Adjusted = decimal.NewNullDecimal(amount)
		}
		price.Details = fields[5]
	}
	rec.Price = price

	if err := rec.Validate(); err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

func (s *CSVStore) decodePrice(cell string) (models.Price, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return models.Price{Status: models.StatusNoData}, nil
	}
	if st, ok := models.ParseStatus(cell); ok && st != models.StatusOK {
		return models.Price{Status: st}, nil
	}
	amount, currency, err := models.ParseMoney(cell)
	if err != nil {
		return models.Price{}, err
	}
	if currency == "" {
		currency = s.currency
	}
	return models.Price{Status: models.StatusOK, Amount: amount, Currency: currency}, nil
}

func encodeRow(rec models.Record) []string {
	p := rec.Price
	price := string(p.Status)
	adjusted := ""
	if p.OK() {
		price = models.FormatMoney(p.Amount, p.Currency)
		if p.Adjusted.Valid {
			adjusted = models.FormatMoney(p.Adjusted.Decimal, p.Currency)
		}
	}
	return []string{
		rec.Timestamp.Format(models.TimestampLayout),
		rec.Label,
		rec.Date,
		price,
		adjusted,
		strings.NewReplacer("\r", " ", "\n", " ").Replace(p.Details),
	}
}
