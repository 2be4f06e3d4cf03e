// Package pricing converts raw source quotes into normalized prices in a single
// reference currency.
//
// Conversion uses static configured rates; a currency without a rate yields a
// source_error price rather than a guess. When an adjustment factor is active,
// the adjusted price is the unrounded converted amount times the factor,
// truncated to whole currency units.
package pricing

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/shopspring/decimal"
)

// minorUnits is the number of decimal places kept for reference-currency amounts.
const minorUnits = 2

// Normalizer maps Quote values to Price values. It is safe for concurrent use
// once constructed.
type Normalizer struct {
	Reference string                     // reference currency code, e.g. EUR
	Rates     map[string]decimal.Decimal // currency code -> reference units per unit
}

// New creates a Normalizer. Rate keys are upper-cased.
func New(reference string, rates map[string]decimal.Decimal) *Normalizer {
	r := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		r[strings.ToUpper(code)] = rate
	}
	return &Normalizer{Reference: strings.ToUpper(reference), Rates: r}
}

// Normalize converts q into the reference currency and applies the optional
// adjustment factor. It never fails; every failure is expressed as a status.
func (n *Normalizer) Normalize(q models.Quote, adjustment *decimal.Decimal) models.Price {
	switch q.Kind {
	case models.QuoteSourceError:
		return models.Price{Status: models.StatusSourceError, Details: q.Message}
	case models.QuoteNotFound:
		return models.Price{Status: models.StatusNotFound}
	}

	if !q.Amount.IsPositive() {
		return models.Price{Status: models.StatusNotFound}
	}

	exact, err := n.convert(q.Amount, q.Currency)
	if err != nil {
		return models.Price{Status: models.StatusSourceError, Details: err.Error()}
	}
	amount := exact.Round(minorUnits)
	if !amount.IsPositive() {
		return models.Price{Status: models.StatusNotFound}
	}

	p := models.Price{
		Status:   models.StatusOK,
		Amount:   amount,
		Currency: n.Reference,
		Details:  details(q),
	}
	if adjustment != nil && adjustment.IsPositive() {
		p.Adjusted = decimal.NewNullDecimal(exact.Mul(*adjustment).Floor())
	}
	return p
}

// convert returns the unrounded amount in the reference currency.
func (n *Normalizer) convert(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == n.Reference {
		return amount, nil
	}
	rate, ok := n.Rates[currency]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("no conversion rate for %s", currency)
	}
	return amount.Mul(rate), nil
}

func details(q models.Quote) string {
	var parts []string
	if q.Airline != "" {
		parts = append(parts, "Airline: "+q.Airline)
	}
	if q.HasStops {
		parts = append(parts, fmt.Sprintf("Stops: %d", q.Stops))
	}
	return strings.Join(parts, ", ")
}
