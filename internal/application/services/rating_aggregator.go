package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
)

// RecomputeSummary reports the outcome of a bulk rating sweep
type RecomputeSummary struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	FailedIDs []string      `json:"failed_ids,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// RatingAggregator derives a doctor's average rating from the reviews of
// their appointments.
type RatingAggregator struct {
	doctors repositories.DoctorRepository
	reviews repositories.ReviewRepository
	indexer *DoctorIndexer
}

// NewRatingAggregator creates a new rating aggregator. indexer may be nil.
func NewRatingAggregator(
	doctors repositories.DoctorRepository,
	reviews repositories.ReviewRepository,
	indexer *DoctorIndexer,
) *RatingAggregator {
	return &RatingAggregator{doctors: doctors, reviews: reviews, indexer: indexer}
}

// RecomputeDoctor recalculates and stores the doctor's average rating and
// review count. Search reindexing is best effort.
func (a *RatingAggregator) RecomputeDoctor(ctx context.Context, doctorID string) (entities.RatingSummary, error) {
	ratings, err := a.reviews.RatingsByDoctor(ctx, doctorID)
	if err != nil {
		return entities.RatingSummary{}, fmt.Errorf("failed to load ratings for doctor %s: %w", doctorID, err)
	}

	summary := entities.RatingSummary{
		DoctorID: doctorID,
		Average:  entities.AverageRating(ratings),
		Count:    len(ratings),
	}
	if err := a.doctors.UpdateRating(ctx, summary); err != nil {
		return entities.RatingSummary{}, err
	}

	if a.indexer.Enabled() {
		if err := a.indexer.IndexByID(ctx, doctorID); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("doctor_id", doctorID).Msg("failed to reindex doctor after rating change")
		}
	}

	return summary, nil
}

// RecomputeAll sweeps every doctor. A failure on one doctor does not stop the sweep.
func (a *RatingAggregator) RecomputeAll(ctx context.Context) (*RecomputeSummary, error) {
	start := time.Now()
	ids, err := a.doctors.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	logger := observability.LoggerFromContext(ctx)
	summary := &RecomputeSummary{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		summary.Processed++
		if _, err := a.RecomputeDoctor(ctx, id); err != nil {
			logger.Error().Err(err).Str("doctor_id", id).Msg("rating recompute failed")
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, id)
			continue
		}
		summary.Succeeded++
	}
	summary.Duration = time.Since(start)

	logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("rating recompute finished")

	return summary, nil
}
