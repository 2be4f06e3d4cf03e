package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status tags a normalized price observation. Only StatusOK carries a numeric payload.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNotFound    Status = "not_found"
	StatusSourceError Status = "source_error"
	StatusNoData      Status = "no_data"
)

// sentinel strings found in older history files
var legacyStatus = map[string]Status{
	"No price found": StatusNotFound,
	"API error":      StatusSourceError,
}

// ParseStatus maps a persisted tag (or legacy sentinel) back to a Status.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	switch Status(s) {
	case StatusOK, StatusNotFound, StatusSourceError, StatusNoData:
		return Status(s), true
	}
	if st, ok := legacyStatus[s]; ok {
		return st, true
	}
	return "", false
}

// Price is the canonical output of normalization.
// Amount and Currency are meaningful only when Status is StatusOK.
type Price struct {
	Status   Status
	Amount   decimal.Decimal
	Currency string
	Adjusted decimal.NullDecimal
	Details  string
}

// OK reports whether the price carries a numeric amount.
func (p Price) OK() bool {
	return p.Status == StatusOK
}

// Comparison returns the value used for change detection: the adjusted price
// when present, else the converted amount. The bool is false for non-ok prices.
func (p Price) Comparison() (decimal.Decimal, bool) {
	if !p.OK() {
		return decimal.Zero, false
	}
	if p.Adjusted.Valid {
		return p.Adjusted.Decimal, true
	}
	return p.Amount, true
}

// Display renders the raw price, or the status tag for non-ok prices.
func (p Price) Display() string {
	if !p.OK() {
		return string(p.Status)
	}
	return FormatMoney(p.Amount, p.Currency)
}

// ComparisonDisplay renders the comparison price, or the status tag.
func (p Price) ComparisonDisplay() string {
	v, ok := p.Comparison()
	if !ok {
		return string(p.Status)
	}
	return FormatMoney(v, p.Currency)
}

// Validate checks that the price payload matches its status.
func (p *Price) Validate() error {
	switch p.Status {
	case StatusOK:
		if !p.Amount.IsPositive() {
			return errors.New("ok price must have a positive amount")
		}
		if p.Currency == "" {
			return errors.New("ok price must have a currency")
		}
	case StatusNotFound, StatusSourceError, StatusNoData:
		if p.Adjusted.Valid {
			return errors.New("non-ok price must not carry an adjusted amount")
		}
	default:
		return fmt.Errorf("unknown status %q", p.Status)
	}
	return nil
}

var currencySymbols = map[string]string{
	"EUR": "€",
	"GBP": "£",
	"USD": "$",
	"PLN": "zł",
}

// FormatMoney renders an amount with its currency symbol and two decimals, e.g. "€95.00".
func FormatMoney(amount decimal.Decimal, currency string) string {
	currency = strings.ToUpper(currency)
	if sym, ok := currencySymbols[currency]; ok {
		return sym + amount.StringFixed(2)
	}
	if currency == "" {
		return amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}

// ParseMoney is the inverse of FormatMoney. It also accepts bare numbers, in which
// case the returned currency is empty.
func ParseMoney(s string) (decimal.Decimal, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, "", errors.New("empty amount")
	}
	currency := ""
	for code, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			currency = code
			s = strings.TrimPrefix(s, sym)
			break
		}
		if strings.HasPrefix(s, code+" ") {
			currency = code
			s = strings.TrimPrefix(s, code+" ")
			break
		}
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, currency, nil
}
