package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onevoice/ivr/backend/internal/service/analytics"
	"github.com/onevoice/ivr/backend/internal/service/outcome"
	sqlitestore "github.com/onevoice/ivr/backend/internal/storage/analytics"
)

func newStatsCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the daily call aggregate from the call log",
		Example: `  onevoice stats
  onevoice stats --date 2026-10-18`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Analytics.DBPath == "" || cfg.Analytics.DBPath == ":memory:" {
				return fmt.Errorf("ANALYTICS_DB_PATH must point at a call log database")
			}

			store, err := sqlitestore.NewSQLiteStore(cfg.Analytics.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open call log: %w", err)
			}
			sink := analytics.NewSink(store, 1)
			defer sink.Close()
			tracker := outcome.NewTracker(sink, nil)

			day := tracker.Today()
			if date != "" {
				day, err = time.ParseInLocation(outcome.DateLayout, date, day.Location())
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
				}
			}

			aggregate, err := tracker.ComputeDailyAggregate(cmd.Context(), day)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(aggregate)
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to aggregate (YYYY-MM-DD), defaults to today")
	return cmd
}
