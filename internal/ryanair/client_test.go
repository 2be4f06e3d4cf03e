package ryanair

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/shopspring/decimal"
)

var testRoute = models.Route{Origin: "DUB", Destination: "LUZ", Date: "2025-07-17", Label: "Dublin-Lublin"}

const availabilityBody = `{
  "currency": "PLN",
  "trips": [
    {
      "origin": "DUB",
      "destination": "LUZ",
      "dates": [
        {"dateOut": "2025-07-16T00:00:00.000", "flights": [{"regularFare": {"fares": [{"amount": 10.0}]}}]},
        {"dateOut": "2025-07-17T00:00:00.000", "flights": [{"regularFare": {"fares": [{"amount": 433.33, "type": "ADT"}]}}]}
      ]
    }
  ]
}`

func newTestServer(t *testing.T, status int, body string, cookieSeen *bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gb/en", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(availabilityPath, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("Origin") != "DUB" || query.Get("Destination") != "LUZ" || query.Get("DateOut") != "2025-07-17" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		if query.Get("ToUs") != "AGREED" || query.Get("ADT") != "1" || query.Get("RoundTrip") != "false" {
			t.Errorf("Missing fixed parameters: %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected User-Agent header")
		}
		if cookieSeen != nil {
			if c, err := r.Cookie("session"); err == nil && c.Value == "abc" {
				*cookieSeen = true
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	var cookieSeen bool
	server := newTestServer(t, http.StatusOK, availabilityBody, &cookieSeen)
	client := NewClient(server.URL, 5*time.Second)

	quote, err := client.Fetch(context.Background(), testRoute)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if quote.Kind != models.QuoteSuccess {
		t.Fatalf("Expected success quote, got %v", quote.Kind)
	}
	if !quote.Amount.Equal(decimal.RequireFromString("433.33")) {
		t.Errorf("Expected amount 433.33, got %s", quote.Amount)
	}
	if quote.Currency != "PLN" {
		t.Errorf("Expected currency PLN, got %s", quote.Currency)
	}
	if !cookieSeen {
		t.Error("Expected warm-up session cookie on availability request")
	}
}

func TestFetchServerError(t *testing.T) {
	server := newTestServer(t, http.StatusForbidden, `{"message":"blocked"}`, nil)
	client := NewClient(server.URL, 5*time.Second)

	if _, err := client.Fetch(context.Background(), testRoute); err == nil {
		t.Fatal("Expected error for non-2xx response")
	}
}

func TestParseAvailability(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantKind   models.QuoteKind
		wantAmount string
		wantCur    string
		wantErr    bool
	}{
		{
			name:       "default currency",
			body:       `{"trips":[{"dates":[{"dateOut":"2025-07-17T00:00:00","flights":[{"regularFare":{"fares":[{"amount":29.99}]}}]}]}]}`,
			wantKind:   models.QuoteSuccess,
			wantAmount: "29.99",
			wantCur:    "EUR",
		},
		{
			name:     "no flights on date",
			body:     `{"currency":"EUR","trips":[{"dates":[{"dateOut":"2025-07-17T00:00:00","flights":[]}]}]}`,
			wantKind: models.QuoteNotFound,
		},
		{
			name:     "sold out without regular fare",
			body:     `{"currency":"EUR","trips":[{"dates":[{"dateOut":"2025-07-17T00:00:00","flights":[{"faresLeft":0}]}]}]}`,
			wantKind: models.QuoteNotFound,
		},
		{
			name:     "other dates only",
			body:     `{"currency":"EUR","trips":[{"dates":[{"dateOut":"2025-07-18T00:00:00","flights":[{"regularFare":{"fares":[{"amount":5}]}}]}]}]}`,
			wantKind: models.QuoteNotFound,
		},
		{
			name:     "empty trips",
			body:     `{"currency":"EUR","trips":[]}`,
			wantKind: models.QuoteNotFound,
		},
		{
			name:    "malformed json",
			body:    `{"trips": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := parseAvailability([]byte(tt.body), "2025-07-17")
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAvailability() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if quote.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", quote.Kind, tt.wantKind)
			}
			if tt.wantAmount != "" && !quote.Amount.Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Errorf("Amount = %s, want %s", quote.Amount, tt.wantAmount)
			}
			if tt.wantCur != "" && quote.Currency != tt.wantCur {
				t.Errorf("Currency = %s, want %s", quote.Currency, tt.wantCur)
			}
		})
	}
}

func TestName(t *testing.T) {
	if name := NewClient("", time.Second).Name(); !strings.EqualFold(name, "ryanair") {
		t.Errorf("Expected name ryanair, got %s", name)
	}
}

func TestFetchWarmsUpOncePerRoute(t *testing.T) {
	warmUps := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/gb/en", func(w http.ResponseWriter, r *http.Request) {
		warmUps++
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(availabilityPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	ctx := context.Background()

	// repeated attempts for one route share the session
	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(ctx, testRoute); err == nil {
			t.Fatal("Expected error for 503 response")
		}
	}
	if warmUps != 1 {
		t.Errorf("Expected 1 warm-up for repeated attempts, got %d", warmUps)
	}

	other := models.Route{Origin: "LUZ", Destination: "DUB", Date: "2025-08-10", Label: "Lublin-Dublin"}
	_, _ = client.Fetch(ctx, other)
	if warmUps != 2 {
		t.Errorf("Expected a new warm-up for the next route, got %d", warmUps)
	}
}
