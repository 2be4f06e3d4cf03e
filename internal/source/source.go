// Package source defines the contract shared by price source adapters.
package source

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/rewired-gh/farewatch/internal/models"
)

// ErrNoConfiguration means the adapter lacks a credential it needs. Callers
// must not retry it.
var ErrNoConfiguration = errors.New("source not configured")

// Adapter fetches one quote for a route. A returned error is a transient
// source failure unless it wraps ErrNoConfiguration.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, route models.Route) (models.Quote, error)
}

// UserAgents is the rotation used by adapters that mimic a browser.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// RandomUserAgent picks one entry of UserAgents.
func RandomUserAgent() string {
	return UserAgents[rand.IntN(len(UserAgents))]
}
