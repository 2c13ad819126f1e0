package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/adapters/database"
	"github.com/zatekoja/hospital-appointments/internal/adapters/search"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	"github.com/zatekoja/hospital-appointments/pkg/config"
	"github.com/zatekoja/hospital-appointments/pkg/secrets"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	if _, err := secrets.ApplyFromEnv(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault credentials: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("doctor-indexer", cfg.App.Env)

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("Invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.DoctorsCollection).Msg("Deleting search collection before reindex")
		if err := tsClient.DropSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	doctorRepo := database.NewDoctorAdapter(pgClient)
	scheduleRepo := database.NewScheduleAdapter(pgClient)
	indexer := services.NewDoctorIndexer(doctorRepo, scheduleRepo, search.NewTypesenseAdapter(tsClient))

	start := time.Now()
	indexed, err := indexer.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("indexed %d doctors before failing: %w", indexed, err)
	}

	log.Info().Int("indexed", indexed).Dur("duration", time.Since(start)).Msg("Indexed doctors")
	return nil
}
