package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
)

// DoctorIndexer keeps the doctor search index in step with Postgres
type DoctorIndexer struct {
	doctors   repositories.DoctorRepository
	schedules repositories.ScheduleRepository
	search    repositories.DoctorSearchRepository
}

// NewDoctorIndexer creates a new indexer. search may be nil, in which case
// indexing is a no-op.
func NewDoctorIndexer(
	doctors repositories.DoctorRepository,
	schedules repositories.ScheduleRepository,
	search repositories.DoctorSearchRepository,
) *DoctorIndexer {
	return &DoctorIndexer{doctors: doctors, schedules: schedules, search: search}
}

// Enabled reports whether a search index is configured
func (i *DoctorIndexer) Enabled() bool {
	return i != nil && i.search != nil
}

// IndexDoctor writes the doctor and the hospitals it is scheduled at to the index
func (i *DoctorIndexer) IndexDoctor(ctx context.Context, doctor *entities.Doctor) error {
	if !i.Enabled() {
		return nil
	}

	schedules, err := i.schedules.ListByDoctor(ctx, doctor.ID)
	if err != nil {
		return fmt.Errorf("failed to load schedules for doctor %s: %w", doctor.ID, err)
	}
	hospitalIDs := make([]string, 0, len(schedules))
	for _, schedule := range schedules {
		hospitalIDs = append(hospitalIDs, schedule.HospitalID)
	}

	if err := i.search.Index(ctx, doctor, hospitalIDs); err != nil {
		return fmt.Errorf("failed to index doctor %s: %w", doctor.ID, err)
	}
	return nil
}

// IndexByID loads the doctor and indexes it
func (i *DoctorIndexer) IndexByID(ctx context.Context, doctorID string) error {
	if !i.Enabled() {
		return nil
	}
	doctor, err := i.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return err
	}
	return i.IndexDoctor(ctx, doctor)
}

// Reindex rebuilds the index entry of every doctor and returns how many
// were written. Individual failures are logged and skipped.
func (i *DoctorIndexer) Reindex(ctx context.Context) (int, error) {
	if !i.Enabled() {
		return 0, nil
	}

	ids, err := i.doctors.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list doctors: %w", err)
	}

	logger := observability.LoggerFromContext(ctx)
	indexed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := i.IndexByID(ctx, id); err != nil {
			logger.Warn().Err(err).Str("doctor_id", id).Msg("failed to index doctor")
			continue
		}
		indexed++
	}
	return indexed, nil
}
