package repositories

import (
	"context"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations
type AppointmentRepository interface {
	// Create creates a new appointment. A second non-cancelled appointment for
	// the same doctor, hospital, date and slot fails with a Conflict.
	Create(ctx context.Context, appointment *entities.Appointment) error

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// UpdateStatus persists a status transition. The write only applies while
	// the stored row is still in the expected status.
	UpdateStatus(ctx context.Context, appointment *entities.Appointment, expected entities.AppointmentStatus) error

	// ListBookedSlots returns the slots of non-cancelled appointments on a date
	ListBookedSlots(ctx context.Context, doctorID, hospitalID string, date entities.Date) ([]entities.TimeOfDay, error)

	// FindUserAt returns the user's non-cancelled appointment at date and slot, if any
	FindUserAt(ctx context.Context, userID string, date entities.Date, slot entities.TimeOfDay) (*entities.Appointment, error)

	// List retrieves appointments with filters
	List(ctx context.Context, filter AppointmentFilter) ([]*entities.Appointment, error)
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	UserID     string
	DoctorID   string
	HospitalID string
	Status     entities.AppointmentStatus
	From       *entities.Date
	To         *entities.Date
	Limit      int
	Offset     int
}
