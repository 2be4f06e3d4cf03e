package mailer

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/farewatch/internal/report"
)

func testConfig() Config {
	return Config{
		Host:     "smtp.example.com",
		Username: "alerts@example.com",
		Password: "secret",
		From:     "alerts@example.com",
		To:       []string{"me@example.com"},
	}
}

func TestNewDefaults(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.cfg.Port != 587 || m.cfg.Timeout != 30*time.Second {
		t.Errorf("Expected port 587 and 30s timeout, got %d and %v", m.cfg.Port, m.cfg.Timeout)
	}
	if m.Name() != "email" {
		t.Errorf("Expected name email, got %s", m.Name())
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing host", func(c *Config) { c.Host = "" }},
		{"missing sender", func(c *Config) { c.From = "" }},
		{"missing recipients", func(c *Config) { c.To = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestBuildMessageSkipsMissingAttachments(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "A-B_2025-07-17.png")
	if err := os.WriteFile(existing, []byte("\x89PNG"), 0o644); err != nil {
		t.Fatalf("Failed to write attachment: %v", err)
	}

	m, _ := New(testConfig())
	msg, err := m.buildMessage(report.Notification{
		Subject:     report.Subject,
		Body:        "Flight price changes:\n\n",
		Attachments: []string{existing, filepath.Join(dir, "missing.png")},
	})
	if err != nil {
		t.Fatalf("buildMessage failed: %v", err)
	}
	if got := len(msg.GetAttachments()); got != 1 {
		t.Errorf("Expected 1 attachment, got %d", got)
	}
}

func TestBuildMessageInvalidAddress(t *testing.T) {
	cfg := testConfig()
	cfg.To = []string{"not an address"}
	m, _ := New(cfg)
	if _, err := m.buildMessage(report.Notification{Subject: "s"}); err == nil {
		t.Error("Expected error for invalid recipient")
	}
}

func TestNotifyUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := testConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.Timeout = 2 * time.Second
	m, _ := New(cfg)

	if err := m.Notify(context.Background(), report.Notification{Subject: "s", Body: "b"}); err == nil {
		t.Error("Expected error when the server is unreachable")
	}
}
