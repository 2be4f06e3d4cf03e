package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/farewatch/internal/chart"
	"github.com/rewired-gh/farewatch/internal/collector"
	"github.com/rewired-gh/farewatch/internal/config"
	"github.com/rewired-gh/farewatch/internal/history"
	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/metrics"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/rewired-gh/farewatch/internal/monitor"
	"github.com/rewired-gh/farewatch/internal/pricing"
	"github.com/rewired-gh/farewatch/internal/runlock"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd runs one collection cycle when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "farewatch",
	Short: "Track flight prices and alert on changes.",
	Long: `farewatch queries a flight price source for every configured route, appends
the observations to a history file, renders a price chart per route and sends
one alert summarizing the routes whose price changed since the last run.

Run it from cron; every invocation performs exactly one cycle.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCycle(cmd.Context())
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "config file (a missing file means defaults and environment)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override logging.level: debug, info, warn, error")
	rootCmd.AddCommand(lastCmd, plotCmd)
}

// setup loads and validates configuration and initializes logging.
func setup() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		return nil, err
	}
	if cfg.File != "" {
		logger.Info("Configuration loaded from %s", cfg.File)
	} else {
		logger.Info("No config file at %s, using defaults and environment", cfgFile)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	store, err := history.Open(ctx, cfg.HistoryOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return store, nil
}

func runCycle(ctx context.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	lock, err := runlock.Acquire(cfg.History.Path)
	if errors.Is(err, runlock.ErrLocked) {
		logger.Warn("Another run is in progress, exiting: %v", err)
		return nil
	}
	if err != nil {
		logger.Error("Failed to acquire run lock, continuing without it: %v", err)
	} else {
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Error("Failed to release lock: %v", err)
			}
		}()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close history store: %v", err)
		}
	}()

	reg := metrics.NewRegistry()
	baseline, _ := monitor.ParseBaseline(cfg.Monitor.Baseline)

	c := collector.New(collector.Config{
		Routes:     cfg.Routes,
		Retry:      cfg.RetryPolicy(),
		PaceMin:    cfg.Source.PaceMin,
		PaceMax:    cfg.Source.PaceMax,
		Adjustment: cfg.Adjustment(),
		Baseline:   baseline,
	}, collector.Deps{
		Source:     newSource(cfg),
		Normalizer: pricing.New(cfg.Pricing.ReferenceCurrency, cfg.Rates()),
		Detector:   monitor.New(cfg.MinChange()),
		Store:      store,
		Charts:     chart.NewRenderer(cfg.Charts.Dir),
		Dispatcher: newDispatcher(cfg),
		Metrics:    reg,
	})

	summary, err := c.Run(ctx)
	if err != nil {
		logger.Warn("Cycle stopped early after %d routes: %v", len(summary.Results), err)
	} else {
		logger.Info("Cycle summary: %d ok, %d not found, %d source errors, %d no data, %d alerts, %d charts, notified=%v",
			summary.Counts[models.StatusOK], summary.Counts[models.StatusNotFound],
			summary.Counts[models.StatusSourceError], summary.Counts[models.StatusNoData],
			summary.Alerts, summary.ChartsRendered, summary.Notified)
	}

	if err := reg.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Error("%v", err)
	}
	return nil
}
