package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	"github.com/zatekoja/hospital-appointments/migrations"
	"github.com/zatekoja/hospital-appointments/pkg/config"
	"github.com/zatekoja/hospital-appointments/pkg/secrets"
)

func main() {
	if _, err := secrets.ApplyFromEnv(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault credentials: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("migrate", cfg.App.Env)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := pgClient.Migrate(ctx, migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Strs("applied", applied).Msg("Migration failed")
	}
	if len(applied) == 0 {
		log.Info().Msg("Schema already up to date")
		return
	}
	log.Info().Strs("applied", applied).Msg("Migrations applied")
}
