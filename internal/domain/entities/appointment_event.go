package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEventType represents the kind of appointment lifecycle event
type AppointmentEventType string

const (
	AppointmentEventBooked    AppointmentEventType = "appointment.booked"
	AppointmentEventCancelled AppointmentEventType = "appointment.cancelled"
	AppointmentEventCompleted AppointmentEventType = "appointment.completed"
	AppointmentEventReviewed  AppointmentEventType = "appointment.reviewed"
)

// AppointmentEvent is published whenever an appointment changes state or is reviewed
type AppointmentEvent struct {
	ID            string               `json:"id"`
	Type          AppointmentEventType `json:"type"`
	AppointmentID string               `json:"appointment_id"`
	DoctorID      string               `json:"doctor_id"`
	HospitalID    string               `json:"hospital_id"`
	UserID        string               `json:"user_id"`
	Date          Date                 `json:"date"`
	TimeSlot      TimeOfDay            `json:"time_slot"`
	Status        AppointmentStatus    `json:"status"`
	Rating        int                  `json:"rating,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewAppointmentEvent builds an event describing the appointment's current state
func NewAppointmentEvent(eventType AppointmentEventType, appointment *Appointment) *AppointmentEvent {
	return &AppointmentEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		AppointmentID: appointment.ID,
		DoctorID:      appointment.DoctorID,
		HospitalID:    appointment.HospitalID,
		UserID:        appointment.UserID,
		Date:          appointment.Date,
		TimeSlot:      appointment.TimeSlot,
		Status:        appointment.Status,
		Timestamp:     time.Now().UTC(),
	}
}
