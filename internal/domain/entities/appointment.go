package entities

import (
	"errors"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// ErrInvalidTransition is returned when a status change is not allowed
var ErrInvalidTransition = errors.New("invalid appointment status transition")

// Valid reports whether s is a known status
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Only scheduled appointments move, and only into a terminal state.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s != AppointmentStatusScheduled {
		return false
	}
	return next == AppointmentStatusCompleted || next == AppointmentStatusCancelled
}

// Appointment is a booked slot with one doctor at one hospital
type Appointment struct {
	ID           string            `json:"id" db:"id"`
	Date         Date              `json:"date" db:"date"`
	TimeSlot     TimeOfDay         `json:"time_slot" db:"time_slot"`
	Status       AppointmentStatus `json:"status" db:"status"`
	UserID       string            `json:"user_id" db:"user_id"`
	DoctorID     string            `json:"doctor_id" db:"doctor_id"`
	HospitalID   string            `json:"hospital_id" db:"hospital_id"`
	CancelReason string            `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// StartsAt returns the instant the appointment's slot begins
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.TimeSlot, loc)
}

// Occupies reports whether the appointment holds the given slot
func (a *Appointment) Occupies(date Date, slot TimeOfDay) bool {
	return a.Status != AppointmentStatusCancelled && a.Date.Equal(date) && a.TimeSlot == slot
}

// Transition moves the appointment to next, stamping the matching timestamp
func (a *Appointment) Transition(next AppointmentStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	a.Status = next
	a.UpdatedAt = at
	switch next {
	case AppointmentStatusCompleted:
		a.CompletedAt = &at
	case AppointmentStatusCancelled:
		a.CancelledAt = &at
	}
	return nil
}

// AppointmentView is an appointment joined with the names of its doctor and hospital
type AppointmentView struct {
	*Appointment
	DoctorName   string `json:"doctor_name,omitempty"`
	HospitalName string `json:"hospital_name,omitempty"`
}
