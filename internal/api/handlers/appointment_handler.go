package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/hospital-appointments/internal/api/loaders"
	"github.com/zatekoja/hospital-appointments/internal/api/middleware"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
)

// AppointmentService defines the interface for appointment operations
type AppointmentService interface {
	Book(ctx context.Context, principal *entities.Principal, req services.BookingRequest) (*entities.Appointment, error)
	Get(ctx context.Context, principal *entities.Principal, id string) (*entities.Appointment, error)
	List(ctx context.Context, principal *entities.Principal, filter repositories.AppointmentFilter) ([]*entities.Appointment, error)
	Cancel(ctx context.Context, principal *entities.Principal, id, reason string) (*entities.Appointment, error)
	Complete(ctx context.Context, principal *entities.Principal, id string) (*entities.Appointment, error)
}

// SlotService defines the availability lookup
type SlotService interface {
	AvailableSlots(ctx context.Context, hospitalID, doctorID string, date entities.Date) ([]entities.TimeOfDay, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service AppointmentService
	slots   SlotService
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(service AppointmentService, slots SlotService) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		slots:   slots,
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// GetAvailableSlots handles GET /api/hospitals/{hospitalId}/doctors/{doctorId}/slots?date=YYYY-MM-DD
func (h *AppointmentHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	hospitalID := r.PathValue("hospitalId")
	doctorID := r.PathValue("doctorId")

	rawDate := r.URL.Query().Get("date")
	if rawDate == "" {
		respondWithError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	date, err := entities.ParseDate(rawDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := h.slots.AvailableSlots(r.Context(), hospitalID, doctorID, date)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"hospital_id": hospitalID,
		"doctor_id":   doctorID,
		"date":        date,
		"slots":       slots,
	})
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req services.BookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	appointment, err := h.service.Book(r.Context(), middleware.PrincipalFromContext(r.Context()), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, appointment)
}

// ListAppointments handles GET /api/appointments?status=&from=&to=
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	query := r.URL.Query()
	filter := repositories.AppointmentFilter{
		UserID:     query.Get("user_id"),
		DoctorID:   query.Get("doctor_id"),
		HospitalID: query.Get("hospital_id"),
		Status:     entities.AppointmentStatus(query.Get("status")),
		Limit:      limit,
		Offset:     offset,
	}
	for name, dst := range map[string]**entities.Date{"from": &filter.From, "to": &filter.To} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		date, err := entities.ParseDate(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, name+": "+err.Error())
			return
		}
		*dst = &date
	}

	appointments, err := h.service.List(r.Context(), middleware.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"appointments": loaders.AppointmentViews(r.Context(), appointments),
	})
}

// GetAppointment handles GET /api/appointments/{id}
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.service.Get(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	views := loaders.AppointmentViews(r.Context(), []*entities.Appointment{appointment})
	respondWithJSON(w, http.StatusOK, views[0])
}

// CancelAppointment handles POST /api/appointments/{id}/cancel
func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	appointment, err := h.service.Cancel(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"), req.Reason)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}

// CompleteAppointment handles POST /api/appointments/{id}/complete
func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	appointment, err := h.service.Complete(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appointment)
}
