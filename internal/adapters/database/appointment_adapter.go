package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

var appointmentColumns = []interface{}{
	"id", "date", "time_slot", "status", "user_id", "doctor_id", "hospital_id",
	"cancel_reason", "created_at", "updated_at", "completed_at", "cancelled_at",
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     newDialect(client.DB()),
	}
}

// Create creates a new appointment. The partial unique index on live slots
// turns a lost booking race into a slot_taken conflict.
func (a *AppointmentAdapter) Create(ctx context.Context, appointment *entities.Appointment) error {
	query, args, err := a.db.Insert("appointments").Rows(goqu.Record{
		"id":            appointment.ID,
		"date":          appointment.Date,
		"time_slot":     appointment.TimeSlot,
		"status":        appointment.Status,
		"user_id":       appointment.UserID,
		"doctor_id":     appointment.DoctorID,
		"hospital_id":   appointment.HospitalID,
		"cancel_reason": appointment.CancelReason,
		"created_at":    appointment.CreatedAt,
		"updated_at":    appointment.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return mapWriteError(err, "failed to create appointment",
			apperrors.NewConflictError("the requested slot is already booked").WithCode(apperrors.CodeSlotTaken))
	}
	return nil
}

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).From("appointments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}
	return appointment, nil
}

// UpdateStatus persists a transition only while the row is still in expected status
func (a *AppointmentAdapter) UpdateStatus(ctx context.Context, appointment *entities.Appointment, expected entities.AppointmentStatus) error {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"status":        appointment.Status,
			"cancel_reason": appointment.CancelReason,
			"completed_at":  nullableTime(appointment.CompletedAt),
			"cancelled_at":  nullableTime(appointment.CancelledAt),
			"updated_at":    appointment.UpdatedAt,
		}).
		Where(goqu.Ex{"id": appointment.ID, "status": expected}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		if _, err := a.GetByID(ctx, appointment.ID); err != nil {
			return err
		}
		return apperrors.NewConflictError(fmt.Sprintf("appointment %s is no longer %s", appointment.ID, expected)).
			WithCode(apperrors.CodeInvalidTransition)
	}
	return nil
}

// ListBookedSlots returns the slots held by non-cancelled appointments on date
func (a *AppointmentAdapter) ListBookedSlots(ctx context.Context, doctorID, hospitalID string, date entities.Date) ([]entities.TimeOfDay, error) {
	query, args, err := a.db.Select("time_slot").From("appointments").
		Where(
			goqu.Ex{"doctor_id": doctorID, "hospital_id": hospitalID, "date": date},
			goqu.I("status").Neq(entities.AppointmentStatusCancelled),
		).
		Order(goqu.I("time_slot").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list booked slots", err)
	}
	defer rows.Close()

	slots := []entities.TimeOfDay{}
	for rows.Next() {
		var slot entities.TimeOfDay
		if err := rows.Scan(&slot); err != nil {
			return nil, apperrors.NewInternalError("failed to scan booked slot", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate booked slots", err)
	}
	return slots, nil
}

// FindUserAt returns the user's live appointment at date and slot, or nil
func (a *AppointmentAdapter) FindUserAt(ctx context.Context, userID string, date entities.Date, slot entities.TimeOfDay) (*entities.Appointment, error) {
	query, args, err := a.db.Select(appointmentColumns...).From("appointments").
		Where(
			goqu.Ex{"user_id": userID, "date": date, "time_slot": slot},
			goqu.I("status").Neq(entities.AppointmentStatusCancelled),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find user appointment", err)
	}
	return appointment, nil
}

// List retrieves appointments with filters, most recent slot first
func (a *AppointmentAdapter) List(ctx context.Context, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	ds := a.db.Select(appointmentColumns...).From("appointments")
	if filter.UserID != "" {
		ds = ds.Where(goqu.Ex{"user_id": filter.UserID})
	}
	if filter.DoctorID != "" {
		ds = ds.Where(goqu.Ex{"doctor_id": filter.DoctorID})
	}
	if filter.HospitalID != "" {
		ds = ds.Where(goqu.Ex{"hospital_id": filter.HospitalID})
	}
	if filter.Status != "" {
		ds = ds.Where(goqu.Ex{"status": filter.Status})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.I("date").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.I("date").Lte(*filter.To))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := ds.Order(goqu.I("date").Desc(), goqu.I("time_slot").Desc()).
		Limit(limit).Offset(offset).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	appointments := []*entities.Appointment{}
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate appointments", err)
	}
	return appointments, nil
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var completedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&appointment.ID,
		&appointment.Date,
		&appointment.TimeSlot,
		&appointment.Status,
		&appointment.UserID,
		&appointment.DoctorID,
		&appointment.HospitalID,
		&appointment.CancelReason,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		appointment.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		appointment.CancelledAt = &cancelledAt.Time
	}
	return appointment, nil
}
