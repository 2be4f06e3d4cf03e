package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rewired-gh/farewatch/internal/logger"
	"github.com/rewired-gh/farewatch/internal/models"
	"github.com/spf13/cobra"
)

var lastNumeric bool

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Print the last recorded price per route",
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

		latest, err := store.LastByRoute(cmd.Context(), lastNumeric)
		if err != nil {
			logger.Error("Failed to load last prices: %v", err)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROUTE\tDATE\tPRICE\tADJUSTED\tOBSERVED")
		for _, route := range cfg.Routes {
			rec, ok := latest[route.Label]
			if !ok {
				fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", route.Label, route.Date)
				continue
			}
			adjusted := "-"
			if rec.Price.Adjusted.Valid {
				adjusted = rec.Price.ComparisonDisplay()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", route.Label, route.Date, rec.Price.Display(), adjusted,
				rec.Timestamp.Format(models.TimestampLayout))
		}
		return w.Flush()
	},
}

func init() {
	lastCmd.Flags().BoolVar(&lastNumeric, "numeric", false, "skip observations without a price")
}
