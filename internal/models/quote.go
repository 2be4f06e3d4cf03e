package models

import "github.com/shopspring/decimal"

// QuoteKind is the closed set of outcomes of one price source call.
type QuoteKind int

const (
	// QuoteSuccess carries an amount and currency.
	QuoteSuccess QuoteKind = iota
	// QuoteNotFound means the source answered but had no matching fare.
	QuoteNotFound
	// QuoteSourceError means the source could not be queried or parsed.
	QuoteSourceError
)

func (k QuoteKind) String() string {
	switch k {
	case QuoteSuccess:
		return "success"
	case QuoteNotFound:
		return "not_found"
	case QuoteSourceError:
		return "source_error"
	default:
		return "unknown"
	}
}

// Quote is the raw result of one adapter call. It is consumed immediately by the
// normalizer and never persisted.
type Quote struct {
	Kind     QuoteKind
	Amount   decimal.Decimal
	Currency string
	Airline  string
	Stops    int
	HasStops bool
	Message  string
}

// NewQuote builds a successful quote.
func NewQuote(amount decimal.Decimal, currency string) Quote {
	return Quote{Kind: QuoteSuccess, Amount: amount, Currency: currency}
}

// NotFoundQuote builds a quote for a source that had no fare.
func NotFoundQuote() Quote {
	return Quote{Kind: QuoteNotFound}
}

// SourceErrorQuote builds a quote for a failed fetch.
func SourceErrorQuote(msg string) Quote {
	return Quote{Kind: QuoteSourceError, Message: msg}
}
