package monitor

import (
	"testing"
	"time"

	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/shopspring/decimal"
)

func okPrice(amount string) models.Price {
	return models.Price{Status: models.StatusOK, Amount: decimal.RequireFromString(amount), Currency: "EUR"}
}

func adjustedPrice(amount, adjusted string) models.Price {
	p := okPrice(amount)
	p.Adjusted = decimal.NewNullDecimal(decimal.RequireFromString(adjusted))
	return p
}

func ptr(p models.Price) *models.Price {
	return &p
}

func TestIsAlertWorthy(t *testing.T) {
	d := New(decimal.Zero)

	tests := []struct {
		name     string
		previous *models.Price
		current  models.Price
		want     bool
	}{
		{"first observation", nil, okPrice("100"), false},
		{"price drop", ptr(okPrice("100")), okPrice("95"), true},
		{"price rise", ptr(okPrice("95")), okPrice("100"), true},
		{"unchanged", ptr(okPrice("100")), okPrice("100.00"), false},
		{"current not found", ptr(okPrice("100")), models.Price{Status: models.StatusNotFound}, false},
		{"current source error", ptr(okPrice("100")), models.Price{Status: models.StatusSourceError}, false},
		{"previous not found", ptr(models.Price{Status: models.StatusNotFound}), okPrice("100"), false},
		{"previous no data", ptr(models.Price{Status: models.StatusNoData}), okPrice("100"), false},
		{"adjusted compared when present", ptr(adjustedPrice("100", "88")), adjustedPrice("100.50", "88"), false},
		{"adjusted differs", ptr(adjustedPrice("100", "88")), adjustedPrice("102", "89"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.IsAlertWorthy(tt.previous, tt.current); got != tt.want {
				t.Errorf("IsAlertWorthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAlertWorthyMinChange(t *testing.T) {
	d := New(decimal.NewFromInt(5))

	if d.IsAlertWorthy(ptr(okPrice("100")), okPrice("97")) {
		t.Error("Expected change of 3 below threshold 5 to be suppressed")
	}
	if !d.IsAlertWorthy(ptr(okPrice("100")), okPrice("95")) {
		t.Error("Expected change of exactly 5 to alert")
	}
	if !d.IsAlertWorthy(ptr(okPrice("100")), okPrice("110")) {
		t.Error("Expected change of 10 to alert")
	}
}

func TestNewClampsNegativeMinChange(t *testing.T) {
	d := New(decimal.NewFromInt(-3))
	if !d.MinChange.IsZero() {
		t.Errorf("Expected MinChange 0, got %s", d.MinChange)
	}
}

func TestIndex(t *testing.T) {
	now := time.Now()
	latest := map[string]models.Record{
		"A-B": {Timestamp: now, Label: "A-B", Date: "2025-07-17", Price: okPrice("100")},
	}
	idx := NewIndex(latest)

	prev := idx.Previous("A-B")
	if prev == nil || !prev.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("Expected previous price 100, got %v", prev)
	}
	if idx.Previous("C-D") != nil {
		t.Error("Expected no baseline for unknown label")
	}

	// mutating the returned pointer must not change the index
	prev.Amount = decimal.NewFromInt(1)
	if !idx["A-B"].Amount.Equal(decimal.NewFromInt(100)) {
		t.Error("Expected index entry to be unchanged")
	}
}

func TestParseBaseline(t *testing.T) {
	tests := []struct {
		in          string
		want        Baseline
		numericOnly bool
		wantErr     bool
	}{
		{"", BaselineLastNumeric, true, false},
		{"last_numeric", BaselineLastNumeric, true, false},
		{"last_record", BaselineLastRecord, false, false},
		{"latest", "", false, true},
	}
	for _, tt := range tests {
		got, err := ParseBaseline(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBaseline(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if got != tt.want || got.NumericOnly() != tt.numericOnly {
			t.Errorf("ParseBaseline(%q) = %q (numericOnly=%v), want %q (%v)", tt.in, got, got.NumericOnly(), tt.want, tt.numericOnly)
		}
	}
}
