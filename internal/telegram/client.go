// Package telegram delivers notifications through the Telegram Bot API.
// The alert text is sent as a MarkdownV2 message, followed by one photo per
// chart attachment.
//
// HTTP calls go through a retrying transport, so transient network failures
// and 5xx or 429 responses are retried before a send is reported as failed.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/report"
)

// Config holds bot settings.
type Config struct {
	BotToken       string
	ChatID         string
	MaxRetries     int
	RetryDelayBase time.Duration
	APIEndpoint    string // format string with token and method verbs; empty uses the public API
}

// Client handles Telegram notifications
type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewClient creates a new Telegram client. It calls getMe to validate the token.
func NewClient(cfg Config) (*Client, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryDelayBase
	retryClient.RetryWaitMax = cfg.RetryDelayBase * time.Duration(cfg.MaxRetries+1)
	retryClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warn("Retrying Telegram %s (attempt %d)", filepath.Base(req.URL.Path), attempt+1)
		}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, cfg.APIEndpoint, retryClient.StandardClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return &Client{bot: bot, chatID: chatID}, nil
}

// Name implements report.Notifier.
func (c *Client) Name() string {
	return "telegram"
}

// Notify implements report.Notifier. Photo failures are logged and do not
// fail the notification once the text was delivered.
func (c *Client) Notify(ctx context.Context, n report.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(c.chatID, formatMessage(n))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	for _, path := range n.Attachments {
		if ctx.Err() != nil {
			break
		}
		if _, err := os.Stat(path); err != nil {
			logger.Debug("Chart not found, skipping: %s", path)
			continue
		}
		photo := tgbotapi.NewPhoto(c.chatID, tgbotapi.FilePath(path))
		photo.Caption = filepath.Base(path)
		if _, err := c.bot.Send(photo); err != nil {
			logger.Warn("Failed to send chart %s: %v", path, err)
		}
	}
	return nil
}

// formatMessage renders the notification as MarkdownV2 with a bold subject.
func formatMessage(n report.Notification) string {
	return fmt.Sprintf("✈️ *%s*\n\n%s", escapeMarkdownV2(n.Subject), escapeMarkdownV2(strings.TrimRight(n.Body, "\n")))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
