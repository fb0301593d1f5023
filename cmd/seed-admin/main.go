// Command seed-admin creates or promotes the admin and moderator accounts
// named by ADMIN_* and MODERATOR_* and exits. Running it twice is harmless.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/config"
	"github.com/sakif/codeshare/internal/logger"
	"github.com/sakif/codeshare/internal/server"
	"github.com/sakif/codeshare/internal/service"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	lg := logger.New(cfg.Env, cfg.LogLevel)

	if err := run(cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("seeding failed")
	}
}

func run(cfg *config.Config, lg zerolog.Logger) error {
	accounts := server.StaffAccounts(cfg.Seed)
	if len(accounts) == 0 {
		return errors.New("set ADMIN_EMAIL and/or MODERATOR_EMAIL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := server.OpenStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
	}
	defer store.Close()

	seeder := service.NewSeeder(store, auth.NewPasswordService(), lg)
	if err := server.SeedStaff(ctx, seeder, accounts, lg); err != nil {
		return err
	}
	lg.Info().Int("accounts", len(accounts)).Msg("done")
	return nil
}
