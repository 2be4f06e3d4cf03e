package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rewired-gh/farewatch/internal/report"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"A-B on 2025-07-17: €95.00 (was €100.00)", `A\-B on 2025\-07\-17: €95\.00 \(was €100\.00\)`},
		{"plain", "plain"},
		{"a_b*c!", `a\_b\*c\!`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMessage(t *testing.T) {
	msg := formatMessage(report.Notification{Subject: "Flight price change alert", Body: "Flight price changes:\n\nA-B on 2025-07-17: €95.00 (was €100.00)\n"})
	if !strings.Contains(msg, "*Flight price change alert*") {
		t.Errorf("Expected bold subject, got %q", msg)
	}
	if strings.HasSuffix(msg, "\n") {
		t.Error("Expected trailing newlines to be trimmed")
	}
}

// fakeBotAPI records the Bot API methods called on it.
type fakeBotAPI struct {
	mu        sync.Mutex
	methods   []string
	failFirst map[string]bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]

		f.mu.Lock()
		f.methods = append(f.methods, method)
		fail := f.failFirst[method]
		delete(f.failFirst, method)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch method {
		case "getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"farewatch","username":"farewatch_bot"}}`))
		case "sendMessage", "sendPhoto":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			t.Errorf("Unexpected method %s", method)
		}
	}
}

func (f *fakeBotAPI) calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.methods {
		if m == method {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, fake *fakeBotAPI) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BotToken:       "123:abc",
		ChatID:         "42",
		MaxRetries:     2,
		RetryDelayBase: 1,
		APIEndpoint:    server.URL + "/bot%s/%s",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNotify(t *testing.T) {
	fake := &fakeBotAPI{failFirst: map[string]bool{"sendMessage": true}}
	client := newTestClient(t, fake)

	chart := filepath.Join(t.TempDir(), "A-B_2025-07-17.png")
	if err := os.WriteFile(chart, []byte("\x89PNG"), 0o644); err != nil {
		t.Fatalf("Failed to write chart: %v", err)
	}

	err := client.Notify(context.Background(), report.Notification{
		Subject:     report.Subject,
		Body:        "Flight price changes:\n\nA-B on 2025-07-17: €95.00 (was €100.00)\n",
		Attachments: []string{chart, "/nonexistent/chart.png"},
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if got := fake.calls("sendMessage"); got != 2 {
		t.Errorf("Expected sendMessage to be retried once, got %d calls", got)
	}
	if got := fake.calls("sendPhoto"); got != 1 {
		t.Errorf("Expected 1 photo, got %d", got)
	}
	if client.Name() != "telegram" {
		t.Errorf("Expected name telegram, got %s", client.Name())
	}
}

func TestNewClientInvalidChatID(t *testing.T) {
	if _, err := NewClient(Config{BotToken: "t", ChatID: "not-a-number"}); err == nil {
		t.Error("Expected error for invalid chat ID")
	}
}
