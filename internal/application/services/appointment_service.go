package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

// BookingRequest is a request to book one slot. UserID is only honoured when
// a super admin books on behalf of a patient.
type BookingRequest struct {
	HospitalID string `json:"hospital_id"`
	DoctorID   string `json:"doctor_id"`
	Date       string `json:"date"`
	TimeSlot   string `json:"time_slot"`
	UserID     string `json:"user_id,omitempty"`
}

// AppointmentServiceOptions holds booking policy and collaborators that may be absent
type AppointmentServiceOptions struct {
	PreventUserOverlap bool
	EventBus           providers.EventBus
	Now                Clock
	Metrics            *observability.Metrics
}

// AppointmentService handles appointment booking logic
type AppointmentService struct {
	repo               repositories.AppointmentRepository
	slots              *SlotService
	eventBus           providers.EventBus
	preventUserOverlap bool
	now                Clock
	metrics            *observability.Metrics
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(
	repo repositories.AppointmentRepository,
	slots *SlotService,
	opts AppointmentServiceOptions,
) *AppointmentService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AppointmentService{
		repo:               repo,
		slots:              slots,
		eventBus:           opts.EventBus,
		preventUserOverlap: opts.PreventUserOverlap,
		now:                opts.Now,
		metrics:            opts.Metrics,
	}
}

// Book validates a slot request against the schedule and existing bookings
// and stores a scheduled appointment.
func (s *AppointmentService) Book(ctx context.Context, principal *entities.Principal, req BookingRequest) (*entities.Appointment, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	userID, err := bookingUser(principal, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.HospitalID) == "" || strings.TrimSpace(req.DoctorID) == "" {
		return nil, apperrors.NewValidationError("hospital_id and doctor_id are required")
	}

	date, err := entities.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	slot, err := entities.ParseTimeOfDay(req.TimeSlot)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	now := s.now()
	if !date.At(slot, s.slots.Location()).After(now) {
		return nil, apperrors.NewValidationError("cannot book a slot in the past")
	}

	offered, err := s.slots.OfferedSlots(ctx, req.HospitalID, req.DoctorID, date)
	if err != nil {
		return nil, err
	}
	if !containsSlot(offered, slot) {
		return nil, s.reject(ctx, apperrors.NewConflictError(
			fmt.Sprintf("slot %s on %s is not offered by this doctor at this hospital", slot, date),
		).WithCode(apperrors.CodeSlotNotOffered))
	}

	booked, err := s.repo.ListBookedSlots(ctx, req.DoctorID, req.HospitalID, date)
	if err != nil {
		return nil, err
	}
	if containsSlot(booked, slot) {
		return nil, s.reject(ctx, apperrors.NewConflictError("the requested slot is already booked").
			WithCode(apperrors.CodeSlotTaken))
	}

	if s.preventUserOverlap {
		existing, err := s.repo.FindUserAt(ctx, userID, date, slot)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, s.reject(ctx, apperrors.NewConflictError("you already have an appointment at this time").
				WithCode(apperrors.CodeUserDoubleBooked))
		}
	}

	appointment := &entities.Appointment{
		ID:         uuid.New().String(),
		Date:       date,
		TimeSlot:   slot,
		Status:     entities.AppointmentStatusScheduled,
		UserID:     userID,
		DoctorID:   req.DoctorID,
		HospitalID: req.HospitalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, appointment); err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.CodeSlotTaken {
			return nil, s.reject(ctx, appErr)
		}
		return nil, err
	}

	observability.RecordBooking(ctx, s.metrics, "")
	s.slots.InvalidateSlots(ctx, appointment.DoctorID, appointment.HospitalID, appointment.Date)
	publishAppointmentEvent(ctx, s.eventBus, entities.NewAppointmentEvent(entities.AppointmentEventBooked, appointment))

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appointment.ID).
		Str("doctor_id", appointment.DoctorID).
		Str("hospital_id", appointment.HospitalID).
		Str("date", appointment.Date.String()).
		Str("time_slot", appointment.TimeSlot.String()).
		Msg("appointment booked")

	return appointment, nil
}

// Get returns an appointment visible to the principal
func (s *AppointmentService) Get(ctx context.Context, principal *entities.Principal, id string) (*entities.Appointment, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsParticipant(appointment) {
		return nil, apperrors.NewForbiddenError("you cannot view this appointment")
	}
	return appointment, nil
}

// List returns appointments scoped to what the principal may see. Patients
// see their own, doctors theirs, hospital admins their hospital's.
func (s *AppointmentService) List(ctx context.Context, principal *entities.Principal, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	switch principal.Role {
	case entities.RoleSuperAdmin:
	case entities.RoleHospitalAdmin:
		filter.HospitalID = principal.HospitalID
	case entities.RoleDoctor:
		filter.DoctorID = principal.DoctorID
	default:
		filter.UserID = principal.UserID
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", filter.Status))
	}
	return s.repo.List(ctx, filter)
}

// Cancel moves a scheduled appointment to cancelled and frees its slot
func (s *AppointmentService) Cancel(ctx context.Context, principal *entities.Principal, id, reason string) (*entities.Appointment, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsParticipant(appointment) {
		return nil, apperrors.NewForbiddenError("you cannot cancel this appointment")
	}

	if err := s.transition(ctx, appointment, entities.AppointmentStatusCancelled, func(a *entities.Appointment) {
		a.CancelReason = strings.TrimSpace(reason)
	}); err != nil {
		return nil, err
	}

	s.slots.InvalidateSlots(ctx, appointment.DoctorID, appointment.HospitalID, appointment.Date)
	publishAppointmentEvent(ctx, s.eventBus, entities.NewAppointmentEvent(entities.AppointmentEventCancelled, appointment))
	return appointment, nil
}

// Complete marks an appointment as attended once its slot has started
func (s *AppointmentService) Complete(ctx context.Context, principal *entities.Principal, id string) (*entities.Appointment, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsDoctor(appointment.DoctorID) && !principal.AdministersHospital(appointment.HospitalID) {
		return nil, apperrors.NewForbiddenError("only the doctor or the hospital can complete this appointment")
	}

	if !appointment.Status.CanTransitionTo(entities.AppointmentStatusCompleted) {
		return nil, invalidTransition(appointment.Status, entities.AppointmentStatusCompleted)
	}
	if s.now().Before(appointment.StartsAt(s.slots.Location())) {
		return nil, apperrors.NewValidationError("appointment has not started yet").
			WithCode(apperrors.CodeAppointmentNotStarted)
	}

	if err := s.transition(ctx, appointment, entities.AppointmentStatusCompleted, nil); err != nil {
		return nil, err
	}

	publishAppointmentEvent(ctx, s.eventBus, entities.NewAppointmentEvent(entities.AppointmentEventCompleted, appointment))
	return appointment, nil
}

func (s *AppointmentService) transition(ctx context.Context, appointment *entities.Appointment, next entities.AppointmentStatus, mutate func(*entities.Appointment)) error {
	previous := appointment.Status
	if err := appointment.Transition(next, s.now()); err != nil {
		if errors.Is(err, entities.ErrInvalidTransition) {
			return invalidTransition(previous, next)
		}
		return err
	}
	if mutate != nil {
		mutate(appointment)
	}
	return s.repo.UpdateStatus(ctx, appointment, previous)
}

func (s *AppointmentService) reject(ctx context.Context, err *apperrors.AppError) error {
	observability.RecordBooking(ctx, s.metrics, err.Code)
	return err
}

func invalidTransition(from, to entities.AppointmentStatus) error {
	return apperrors.NewValidationError(fmt.Sprintf("cannot move appointment from %s to %s", from, to)).
		WithCode(apperrors.CodeInvalidTransition)
}

func bookingUser(principal *entities.Principal, req BookingRequest) (string, error) {
	switch principal.Role {
	case entities.RolePatient:
		return principal.UserID, nil
	case entities.RoleSuperAdmin:
		if strings.TrimSpace(req.UserID) == "" {
			return "", apperrors.NewValidationError("user_id is required when booking on behalf of a patient")
		}
		return req.UserID, nil
	default:
		return "", apperrors.NewForbiddenError("only patients can book appointments")
	}
}
