package main

import (
	"errors"

	"github.com/rewired-gh/farewatch/internal/chart"
	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/spf13/cobra"
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Re-render price charts from history without fetching",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		renderer := chart.NewRenderer(cfg.Charts.Dir)
		for _, route := range cfg.Routes {
			records, err := store.RouteHistory(cmd.Context(), route.Label)
			if err != nil {
				logger.Error("Failed to load history for %s: %v", route.Label, err)
				continue
			}
			path, err := renderer.Render(route, records)
			switch {
			case errors.Is(err, chart.ErrNoData):
				logger.Warn("No valid price data for %s", route.Label)
			case err != nil:
				logger.Error("Failed to render chart for %s: %v", route.Label, err)
			default:
				logger.Info("Chart saved: %s", path)
			}
		}
		return nil
	},
}
