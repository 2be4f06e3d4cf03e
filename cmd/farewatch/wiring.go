package main

import (
	"github.com/rewired-gh/farewatch/internal/config"
	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/mailer"
	"github.com/rewired-gh/farewatch/internal/report"
	"github.com/rewired-gh/farewatch/internal/ryanair"
	"github.com/rewired-gh/farewatch/internal/serpapi"
	"github.com/rewired-gh/farewatch/internal/source"
	"github.com/rewired-gh/farewatch/internal/telegram"
)

func newSource(cfg *config.Config) source.Adapter {
	if cfg.Source.Adapter == config.AdapterSerpAPI {
		return serpapi.NewClient(serpapi.Options{
			BaseURL:  cfg.Sources.SerpAPI.BaseURL,
			APIKey:   cfg.Sources.SerpAPI.APIKey,
			Currency: cfg.Sources.SerpAPI.Currency,
			DumpDir:  cfg.Sources.SerpAPI.DumpDir,
			Timeout:  cfg.Source.Timeout,
		})
	}
	return ryanair.NewClient(cfg.Sources.Ryanair.BaseURL, cfg.Source.Timeout)
}

// newDispatcher builds every enabled channel. A channel that fails to
// initialize is logged and left out.
func newDispatcher(cfg *config.Config) *report.Dispatcher {
	var notifiers []report.Notifier

	if cfg.Email.Enabled {
		m, err := mailer.New(mailer.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Timeout:  cfg.Email.Timeout,
		})
		if err != nil {
			logger.Error("Failed to initialize email notifier: %v", err)
		} else {
			notifiers = append(notifiers, m)
		}
	} else {
		logger.Debug("Email notifications disabled")
	}

	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(telegram.Config{
			BotToken:       cfg.Telegram.BotToken,
			ChatID:         cfg.Telegram.ChatID,
			MaxRetries:     cfg.Telegram.MaxRetries,
			RetryDelayBase: cfg.Telegram.RetryDelay,
		})
		if err != nil {
			logger.Error("Failed to initialize Telegram client: %v", err)
		} else {
			notifiers = append(notifiers, tg)
			logger.Info("Telegram client initialized successfully")
		}
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	return report.NewDispatcher(notifiers...)
}
