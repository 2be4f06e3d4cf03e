package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/farewatch/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
routes:
  - origin: DUB
    destination: STN
    date: "2025-09-01"
    label: Dublin-London
  - origin: STN
    destination: DUB
    date: "2025-09-08"
    label: London-Dublin

source:
  adapter: serpapi
  timeout: 15s
  max_attempts: 2
  pace_min: 1s
  pace_max: 2s

sources:
  serpapi:
    api_key: "test_key"
    adjustment_factor: 0.9

pricing:
  reference_currency: EUR
  rates:
    PLN: 0.23
    GBP: 1.17

history:
  backend: sqlite
  path: ./data/prices.csv
  dsn: ./data/prices.db

email:
  enabled: true
  from: alerts@example.com
  to:
    - me@example.com

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

logging:
  level: debug
  format: json
`)

	// Test Load
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if len(cfg.Routes) != 2 || cfg.Routes[0].Label != "Dublin-London" {
		t.Errorf("Unexpected routes: %+v", cfg.Routes)
	}
	if cfg.Source.Adapter != AdapterSerpAPI || cfg.Source.Timeout != 15*time.Second {
		t.Errorf("Unexpected source config: %+v", cfg.Source)
	}
	if cfg.Source.RetryDelay != 5*time.Second {
		t.Errorf("Expected default retry delay 5s, got %v", cfg.Source.RetryDelay)
	}
	if cfg.Email.SMTPPort != 587 || cfg.Email.SMTPHost != "smtp.gmail.com" {
		t.Errorf("Expected SMTP defaults, got %s:%d", cfg.Email.SMTPHost, cfg.Email.SMTPPort)
	}
	if cfg.File != path {
		t.Errorf("Expected File %s, got %s", path, cfg.File)
	}

	rates := cfg.Rates()
	if rate, ok := rates["GBP"]; !ok || rate.String() != "1.17" {
		t.Errorf("Expected GBP rate 1.17, got %v", rates)
	}
	if adj := cfg.Adjustment(); adj == nil || adj.String() != "0.9" {
		t.Errorf("Expected adjustment 0.9, got %v", adj)
	}
	policy := cfg.RetryPolicy()
	if policy.MaxAttempts != 2 || policy.Delay != 5*time.Second {
		t.Errorf("Unexpected retry policy: %+v", policy)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.File != "" {
		t.Errorf("Expected no config file, got %s", cfg.File)
	}
	if len(cfg.Routes) != 3 {
		t.Fatalf("Expected 3 default routes, got %d", len(cfg.Routes))
	}
	want := models.Route{Origin: "RZE", Destination: "DUB", Date: "2025-08-13", Label: "Rzeszow-Dublin"}
	if cfg.Routes[2] != want {
		t.Errorf("Unexpected default route %+v", cfg.Routes[2])
	}
	if cfg.Source.Adapter != AdapterRyanair || cfg.Adjustment() != nil {
		t.Error("Expected the ryanair adapter without adjustment by default")
	}
	if rate := cfg.Rates()["PLN"]; rate.String() != "0.23" {
		t.Errorf("Expected default PLN rate 0.23, got %s", rate)
	}
	if cfg.Source.PaceMin != 5*time.Second || cfg.Source.PaceMax != 10*time.Second {
		t.Errorf("Unexpected pacing defaults %v..%v", cfg.Source.PaceMin, cfg.Source.PaceMax)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("FAREWATCH_EMAIL_PASSWORD", "from-env")
	t.Setenv("FAREWATCH_SOURCES_SERPAPI_API_KEY", "env-key")
	t.Setenv("FAREWATCH_EMAIL_TO", "a@example.com,b@example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Email.Password != "from-env" {
		t.Errorf("Expected password from environment, got %q", cfg.Email.Password)
	}
	if cfg.Sources.SerpAPI.APIKey != "env-key" {
		t.Errorf("Expected api key from environment, got %q", cfg.Sources.SerpAPI.APIKey)
	}
	if len(cfg.Email.To) != 2 {
		t.Errorf("Expected 2 recipients from environment, got %v", cfg.Email.To)
	}
}

func TestLoadExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := writeConfig(t, "history:\n  path: ~/farewatch/prices.csv\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(home, "farewatch", "prices.csv"); cfg.History.Path != want {
		t.Errorf("Expected %s, got %s", want, cfg.History.Path)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Email.From = "alerts@example.com"
	cfg.Email.To = []string{"me@example.com"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	return cfg
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no routes", func(c *Config) { c.Routes = nil }},
		{"invalid route", func(c *Config) { c.Routes[0].Origin = "Dublin" }},
		{"duplicate label", func(c *Config) { c.Routes[1].Label = c.Routes[0].Label }},
		{"duplicate route", func(c *Config) {
			c.Routes[1] = c.Routes[0]
			c.Routes[1].Label = "other"
		}},
		{"unknown adapter", func(c *Config) { c.Source.Adapter = "skyscanner" }},
		{"zero attempts", func(c *Config) { c.Source.MaxAttempts = 0 }},
		{"pace max below min", func(c *Config) { c.Source.PaceMax = time.Second }},
		{"adjustment too large", func(c *Config) { c.Sources.SerpAPI.AdjustmentFactor = 2.5 }},
		{"bad reference currency", func(c *Config) { c.Pricing.ReferenceCurrency = "EURO" }},
		{"negative rate", func(c *Config) { c.Pricing.Rates["PLN"] = -1 }},
		{"negative min change", func(c *Config) { c.Monitor.MinChange = -1 }},
		{"bad baseline", func(c *Config) { c.Monitor.Baseline = "first" }},
		{"unknown backend", func(c *Config) { c.History.Backend = "mongo" }},
		{"sqlite without dsn", func(c *Config) { c.History.Backend = "sqlite" }},
		{"missing email sender", func(c *Config) { c.Email.From = "" }},
		{"missing email recipients", func(c *Config) { c.Email.To = nil }},
		{"missing telegram token when enabled", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.ChatID = "1"
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}
}

func TestValidateEmailDisabled(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Email.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected email fields to be optional when disabled, got %v", err)
	}
}
