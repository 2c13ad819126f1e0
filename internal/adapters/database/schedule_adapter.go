package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

var scheduleColumns = []interface{}{
	"id", "doctor_id", "hospital_id", "start_time", "end_time", "weekdays", "created_at", "updated_at",
}

// ScheduleAdapter implements the ScheduleRepository interface
type ScheduleAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewScheduleAdapter creates a new schedule adapter
func NewScheduleAdapter(client *postgres.Client) repositories.ScheduleRepository {
	return &ScheduleAdapter{
		client: client,
		db:     newDialect(client.DB()),
	}
}

// Upsert creates or replaces the schedule of a (doctor, hospital) pair. The
// stored id and created_at are written back onto schedule.
func (a *ScheduleAdapter) Upsert(ctx context.Context, schedule *entities.DoctorHospitalSchedule) error {
	query, args, err := a.db.Insert("doctor_hospital_schedules").
		Rows(goqu.Record{
			"id":          schedule.ID,
			"doctor_id":   schedule.DoctorID,
			"hospital_id": schedule.HospitalID,
			"start_time":  schedule.StartTime,
			"end_time":    schedule.EndTime,
			"weekdays":    pq.Array(schedule.Weekdays.Int64s()),
			"created_at":  schedule.CreatedAt,
			"updated_at":  schedule.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("doctor_id, hospital_id", goqu.Record{
			"start_time": goqu.L("EXCLUDED.start_time"),
			"end_time":   goqu.L("EXCLUDED.end_time"),
			"weekdays":   goqu.L("EXCLUDED.weekdays"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		})).
		Returning("id", "created_at").
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&schedule.ID, &schedule.CreatedAt)
	if err != nil {
		return mapWriteError(err, "failed to save schedule", nil)
	}
	return nil
}

// GetByDoctorAndHospital returns the schedule of a pair
func (a *ScheduleAdapter) GetByDoctorAndHospital(ctx context.Context, doctorID, hospitalID string) (*entities.DoctorHospitalSchedule, error) {
	query, args, err := a.db.Select(scheduleColumns...).From("doctor_hospital_schedules").
		Where(goqu.Ex{"doctor_id": doctorID, "hospital_id": hospitalID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	schedule, err := scanSchedule(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor %s has no schedule at hospital %s", doctorID, hospitalID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get schedule", err)
	}
	return schedule, nil
}

// ListByDoctor returns every schedule held by a doctor
func (a *ScheduleAdapter) ListByDoctor(ctx context.Context, doctorID string) ([]*entities.DoctorHospitalSchedule, error) {
	query, args, err := a.db.Select(scheduleColumns...).From("doctor_hospital_schedules").
		Where(goqu.Ex{"doctor_id": doctorID}).
		Order(goqu.I("hospital_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list schedules", err)
	}
	defer rows.Close()

	schedules := []*entities.DoctorHospitalSchedule{}
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan schedule", err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate schedules", err)
	}
	return schedules, nil
}

func scanSchedule(row rowScanner) (*entities.DoctorHospitalSchedule, error) {
	schedule := &entities.DoctorHospitalSchedule{}
	var weekdays []int64
	err := row.Scan(
		&schedule.ID,
		&schedule.DoctorID,
		&schedule.HospitalID,
		&schedule.StartTime,
		&schedule.EndTime,
		pq.Array(&weekdays),
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	schedule.Weekdays = entities.WeekdaysFromInt64s(weekdays)
	return schedule, nil
}
