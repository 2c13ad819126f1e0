package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/adapters/database"
	"github.com/zatekoja/hospital-appointments/internal/adapters/search"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	"github.com/zatekoja/hospital-appointments/pkg/config"
	"github.com/zatekoja/hospital-appointments/pkg/secrets"
)

func main() {
	var doctorID string
	var reindex bool

	flag.StringVar(&doctorID, "doctor", "", "Single doctor ID to recompute")
	flag.BoolVar(&reindex, "reindex", true, "Push refreshed ratings to the search index when configured")
	flag.Parse()

	// Load config
	if _, err := secrets.ApplyFromEnv(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault credentials: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("rating-recompute", cfg.App.Env)

	// Setup DB
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	// Setup repos
	doctorRepo := database.NewDoctorAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)
	scheduleRepo := database.NewScheduleAdapter(pgClient)

	var searchRepo repositories.DoctorSearchRepository
	if reindex && cfg.Typesense.URL != "" {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; ratings will not be reindexed")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	aggregator := services.NewRatingAggregator(doctorRepo, reviewRepo, services.NewDoctorIndexer(doctorRepo, scheduleRepo, searchRepo))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if doctorID != "" {
		summary, err := aggregator.RecomputeDoctor(ctx, doctorID)
		if err != nil {
			log.Fatal().Err(err).Str("doctor_id", doctorID).Msg("Failed to recompute rating")
		}
		log.Info().
			Str("doctor_id", doctorID).
			Float64("average", summary.Average).
			Int("count", summary.Count).
			Msg("Recomputed rating")
		return
	}

	log.Info().Msg("Recomputing ratings for all doctors...")
	summary, err := aggregator.RecomputeAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Recompute failed")
	}
	if summary != nil {
		log.Info().
			Dur("duration", summary.Duration).
			Int("processed", summary.Processed).
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Strs("failed_ids", summary.FailedIDs).
			Msg("Recompute complete")
		if summary.Failed > 0 {
			os.Exit(1)
		}
	}
}
