package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Housekeeping jobs",
	Long:  `Purge expired password reset tokens and delete accounts that stayed inactive past the retention window.`,
}

var clearResetsCmd = &cobra.Command{
	Use:   "clear-resets",
	Short: "Delete expired password reset tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(ctx context.Context, app *application) error {
			_, err := app.Ledger.PurgeExpired(ctx)
			return err
		})
	},
}

var clearInactiveUsersCmd = &cobra.Command{
	Use:   "clear-inactive-users",
	Short: "Delete accounts inactive for longer than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(ctx context.Context, app *application) error {
			_, err := app.Users.PurgeStaleInactive(ctx)
			return err
		})
	},
}

var maintenanceInterval time.Duration

var runMaintenanceCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every housekeeping job on a ticker until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(ctx context.Context, app *application) error {
			interval := maintenanceInterval
			if interval <= 0 {
				interval = app.Config.Maintenance.Interval
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app.Logger.Info("maintenance worker started", "interval", interval)
			runMaintenance(ctx, app)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					app.Logger.Info("maintenance worker stopped")
					return nil
				case <-ticker.C:
					runMaintenance(ctx, app)
				}
			}
		})
	},
}

// runMaintenance logs failures and keeps going so one bad pass does not stop the worker.
func runMaintenance(ctx context.Context, app *application) {
	if _, err := app.Ledger.PurgeExpired(ctx); err != nil {
		app.Logger.Error("reset token purge failed", "error", err)
	}
	if n, err := app.Users.PurgeStaleInactive(ctx); err != nil {
		app.Logger.Error("inactive account purge failed", "error", err)
	} else {
		app.Logger.Info("inactive accounts purged", "count", n)
	}
}

func withApplication(fn func(ctx context.Context, app *application) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	app, err := newApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(context.Background(), app)
}

func init() {
	runMaintenanceCmd.Flags().DurationVar(&maintenanceInterval, "interval", 0, "time between passes (overrides config)")

	maintenanceCmd.AddCommand(clearResetsCmd)
	maintenanceCmd.AddCommand(clearInactiveUsersCmd)
	maintenanceCmd.AddCommand(runMaintenanceCmd)
}
