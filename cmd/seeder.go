package cmd

import (
	"context"
	"errors"
	"time"

	userPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/user/postgres"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, permissions and the initial administrator",
	Long: `Seed the closed permission set, the admin and user roles, and an administrator account
built from the admin section of the config. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		app, err := newApplication(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := context.Background()
		if err := userPostgres.SeedAccessControl(ctx, app.Gorm); err != nil {
			return err
		}
		app.Logger.Info("seeded roles and permissions")

		if cfg.Admin.Password == "" {
			return errors.New("admin.password is empty; refusing to seed an administrator without one")
		}
		hash, err := app.Hasher.Hash(cfg.Admin.Password)
		if err != nil {
			return err
		}

		created, err := userPostgres.SeedAdmin(ctx, app.Gorm, userPostgres.AdminSeed{
			Email:        cfg.Admin.Email,
			Username:     cfg.Admin.Username,
			PasswordHash: hash,
		}, time.Now())
		if err != nil {
			return err
		}
		if created {
			app.Logger.Info("seeded administrator", "email", cfg.Admin.Email)
		} else {
			app.Logger.Info("administrator already exists", "email", cfg.Admin.Email)
		}
		return nil
	},
}
