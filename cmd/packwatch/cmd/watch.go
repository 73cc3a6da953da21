package cmd

import (
	"context"
	"log/slog"
	"packwatch/internal/components/chrono"
	"packwatch/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var watchNow bool

func init() {
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run a refresh pass immediately instead of waiting for the first tick.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically refreshes every subscriber and delivers the changes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		providers, err := telemetry.Setup(ctx, "packwatch", cfg.Telemetry)
		if err != nil {
			return err
		}
		defer providers.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx, tel)

		spec, err := cfg.CronSpec()
		if err != nil {
			return err
		}

		w, closeStore, err := newWatcher(ctx, cfg, tel)
		if err != nil {
			return err
		}
		defer closeStore()

		notifier, closeNotifier, err := newNotifier(cfg, tel)
		if err != nil {
			return err
		}
		defer closeNotifier()

		pass := func() {
			result, err := w.RefreshAll(ctx, notifier)
			if err != nil {
				slog.WarnContext(ctx, "refresh pass interrupted", "pass", result.ID, "err", err)
				return
			}
			slog.InfoContext(
				ctx, "refresh pass done",
				"pass", result.ID,
				"subscribers", result.Subscribers,
				"notified", result.Notified,
				"failed", result.Failed,
			)
		}

		cron := chrono.NewStandardCron(tel)
		if watchNow {
			err = cron.CronNow(spec, pass)
		} else {
			err = cron.Cron(spec, pass)
		}
		if err != nil {
			cron.Stop()
			return err
		}
		slog.InfoContext(ctx, "watching the catalog", "schedule", spec, "catalog", cfg.Catalog.Url)

		<-ctx.Done()
		slog.Info("shutting down, waiting for the running pass")
		<-cron.Stop().Done()
		return nil
	},
}
