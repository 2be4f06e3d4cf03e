// Package mailer delivers notifications by SMTP submission with STARTTLS.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/report"
	"github.com/wneessen/go-mail"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

// Mailer implements report.Notifier over SMTP.
type Mailer struct {
	cfg Config
}

// New creates a Mailer. Connections are opened per notification.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("sender and at least one recipient are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Mailer{cfg: cfg}, nil
}

// Name implements report.Notifier.
func (m *Mailer) Name() string {
	return "email"
}

// Notify implements report.Notifier.
func (m *Mailer) Notify(ctx context.Context, n report.Notification) error {
	msg, err := m.buildMessage(n)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// buildMessage assembles the message. Attachments that do not exist are skipped.
func (m *Mailer) buildMessage(n report.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)

	for _, path := range n.Attachments {
		if _, err := os.Stat(path); err != nil {
			logger.Info("Attachment not found, skipping: %s", path)
			continue
		}
		msg.AttachFile(path)
		logger.Debug("Attached %s", path)
	}
	return msg, nil
}
