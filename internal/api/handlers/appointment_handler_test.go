package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospital-appointments/internal/api/handlers"
	"github.com/zatekoja/hospital-appointments/internal/api/middleware"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

// MockAppointmentService defines the mock service
type MockAppointmentService struct {
	mock.Mock
}

func (m *MockAppointmentService) Book(ctx context.Context, principal *entities.Principal, req services.BookingRequest) (*entities.Appointment, error) {
	args := m.Called(ctx, principal, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) Get(ctx context.Context, principal *entities.Principal, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) List(ctx context.Context, principal *entities.Principal, filter repositories.AppointmentFilter) ([]*entities.Appointment, error) {
	args := m.Called(ctx, principal, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) Cancel(ctx context.Context, principal *entities.Principal, id, reason string) (*entities.Appointment, error) {
	args := m.Called(ctx, principal, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockAppointmentService) Complete(ctx context.Context, principal *entities.Principal, id string) (*entities.Appointment, error) {
	args := m.Called(ctx, principal, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

// MockSlotService defines the mock availability lookup
type MockSlotService struct {
	mock.Mock
}

func (m *MockSlotService) AvailableSlots(ctx context.Context, hospitalID, doctorID string, date entities.Date) ([]entities.TimeOfDay, error) {
	args := m.Called(ctx, hospitalID, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.TimeOfDay), args.Error(1)
}

var patient = &entities.Principal{UserID: "user-1", Role: entities.RolePatient}

func withPrincipal(req *http.Request, principal *entities.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), principal))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sampleAppointment() *entities.Appointment {
	return &entities.Appointment{
		ID:         "appt-1",
		Date:       entities.NewDate(2030, 1, 7),
		TimeSlot:   entities.MustTimeOfDay("09:20"),
		Status:     entities.AppointmentStatusScheduled,
		UserID:     "user-1",
		DoctorID:   "doc-1",
		HospitalID: "hosp-1",
	}
}

func TestAppointmentHandler_BookAppointment(t *testing.T) {
	t.Run("successfully books appointment", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		payload := map[string]interface{}{
			"hospital_id": "hosp-1",
			"doctor_id":   "doc-1",
			"date":        "2030-01-07",
			"time_slot":   "09:20",
		}
		body, _ := json.Marshal(payload)
		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments", bytes.NewBuffer(body)), patient)
		w := httptest.NewRecorder()

		mockService.On("Book", mock.Anything, patient, services.BookingRequest{
			HospitalID: "hosp-1",
			DoctorID:   "doc-1",
			Date:       "2030-01-07",
			TimeSlot:   "09:20",
		}).Return(sampleAppointment(), nil)

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var got entities.Appointment
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "appt-1", got.ID)
		assert.Equal(t, "09:20", got.TimeSlot.String())
		mockService.AssertExpectations(t)
	})

	t.Run("returns bad request for invalid payload", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := httptest.NewRequest("POST", "/api/appointments", bytes.NewBufferString("invalid-json"))
		w := httptest.NewRecorder()

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Book", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := httptest.NewRequest("POST", "/api/appointments", bytes.NewBufferString(`{"doctor_id":"doc-1","status":"completed"}`))
		w := httptest.NewRecorder()

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps slot conflicts to 409 with code", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments", bytes.NewBufferString(`{"doctor_id":"doc-1"}`)), patient)
		w := httptest.NewRecorder()

		mockService.On("Book", mock.Anything, patient, mock.Anything).
			Return(nil, apperrors.NewConflictError("slot already booked").WithCode(apperrors.CodeSlotTaken))

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperrors.CodeSlotTaken, decodeError(t, w)["code"])
	})

	t.Run("maps forbidden to 403", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := httptest.NewRequest("POST", "/api/appointments", bytes.NewBufferString(`{"doctor_id":"doc-1"}`))
		w := httptest.NewRecorder()

		mockService.On("Book", mock.Anything, (*entities.Principal)(nil), mock.Anything).
			Return(nil, apperrors.NewForbiddenError("only patients can book"))

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, apperrors.CodeForbidden, decodeError(t, w)["code"])
	})

	t.Run("masks unexpected errors", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments", bytes.NewBufferString(`{"doctor_id":"doc-1"}`)), patient)
		w := httptest.NewRecorder()

		mockService.On("Book", mock.Anything, patient, mock.Anything).Return(nil, errors.New("pq: connection refused"))

		handler.BookAppointment(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "internal server error", decodeError(t, w)["error"])
	})
}

func TestAppointmentHandler_GetAvailableSlots(t *testing.T) {
	t.Run("successfully gets slots", func(t *testing.T) {
		slotService := new(MockSlotService)
		handler := handlers.NewAppointmentHandler(new(MockAppointmentService), slotService)

		req := httptest.NewRequest("GET", "/api/hospitals/hosp-1/doctors/doc-1/slots?date=2030-01-07", nil)
		req.SetPathValue("hospitalId", "hosp-1")
		req.SetPathValue("doctorId", "doc-1")
		w := httptest.NewRecorder()

		slotService.On("AvailableSlots", mock.Anything, "hosp-1", "doc-1", entities.NewDate(2030, 1, 7)).
			Return([]entities.TimeOfDay{entities.MustTimeOfDay("09:00"), entities.MustTimeOfDay("09:40")}, nil)

		handler.GetAvailableSlots(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Date  string   `json:"date"`
			Slots []string `json:"slots"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "2030-01-07", body.Date)
		assert.Equal(t, []string{"09:00", "09:40"}, body.Slots)
	})

	t.Run("requires a date", func(t *testing.T) {
		handler := handlers.NewAppointmentHandler(new(MockAppointmentService), new(MockSlotService))
		req := httptest.NewRequest("GET", "/api/hospitals/hosp-1/doctors/doc-1/slots", nil)
		w := httptest.NewRecorder()

		handler.GetAvailableSlots(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		handler := handlers.NewAppointmentHandler(new(MockAppointmentService), new(MockSlotService))
		req := httptest.NewRequest("GET", "/api/hospitals/hosp-1/doctors/doc-1/slots?date=07-01-2030", nil)
		w := httptest.NewRecorder()

		handler.GetAvailableSlots(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns not found for unknown doctor", func(t *testing.T) {
		slotService := new(MockSlotService)
		handler := handlers.NewAppointmentHandler(new(MockAppointmentService), slotService)

		req := httptest.NewRequest("GET", "/api/hospitals/hosp-1/doctors/missing/slots?date=2030-01-07", nil)
		req.SetPathValue("hospitalId", "hosp-1")
		req.SetPathValue("doctorId", "missing")
		w := httptest.NewRecorder()

		slotService.On("AvailableSlots", mock.Anything, "hosp-1", "missing", mock.Anything).
			Return(nil, apperrors.NewNotFoundError("doctor not found"))

		handler.GetAvailableSlots(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAppointmentHandler_ListAppointments(t *testing.T) {
	t.Run("passes filters to the service", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := withPrincipal(httptest.NewRequest("GET", "/api/appointments?status=scheduled&from=2030-01-01&limit=5", nil), patient)
		w := httptest.NewRecorder()

		mockService.On("List", mock.Anything, patient, mock.MatchedBy(func(f repositories.AppointmentFilter) bool {
			return f.Status == entities.AppointmentStatusScheduled &&
				f.From != nil && f.From.String() == "2030-01-01" &&
				f.To == nil && f.Limit == 5
		})).Return([]*entities.Appointment{sampleAppointment()}, nil)

		handler.ListAppointments(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Appointments []map[string]interface{} `json:"appointments"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Appointments, 1)
		assert.Equal(t, "appt-1", body.Appointments[0]["id"])
		mockService.AssertExpectations(t)
	})

	t.Run("rejects bad pagination", func(t *testing.T) {
		handler := handlers.NewAppointmentHandler(new(MockAppointmentService), new(MockSlotService))
		req := httptest.NewRequest("GET", "/api/appointments?limit=-1", nil)
		w := httptest.NewRecorder()

		handler.ListAppointments(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects bad dates", func(t *testing.T) {
		handler := handlers.NewAppointmentHandler(new(MockAppointmentService), new(MockSlotService))
		req := httptest.NewRequest("GET", "/api/appointments?to=tomorrow", nil)
		w := httptest.NewRecorder()

		handler.ListAppointments(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAppointmentHandler_CancelAppointment(t *testing.T) {
	t.Run("cancels with reason", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments/appt-1/cancel", bytes.NewBufferString(`{"reason":"travel"}`)), patient)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		cancelled := sampleAppointment()
		cancelled.Status = entities.AppointmentStatusCancelled
		mockService.On("Cancel", mock.Anything, patient, "appt-1", "travel").Return(cancelled, nil)

		handler.CancelAppointment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("cancels without body", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments/appt-1/cancel", nil), patient)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		mockService.On("Cancel", mock.Anything, patient, "appt-1", "").Return(sampleAppointment(), nil)

		handler.CancelAppointment(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("maps invalid transitions", func(t *testing.T) {
		mockService := new(MockAppointmentService)
		handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments/appt-1/cancel", nil), patient)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		mockService.On("Cancel", mock.Anything, patient, "appt-1", "").
			Return(nil, apperrors.NewValidationError("appointment is already cancelled").WithCode(apperrors.CodeInvalidTransition))

		handler.CancelAppointment(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeInvalidTransition, decodeError(t, w)["code"])
	})
}

func TestAppointmentHandler_CompleteAppointment(t *testing.T) {
	mockService := new(MockAppointmentService)
	handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))
	doctor := &entities.Principal{UserID: "user-doc", Role: entities.RoleDoctor, DoctorID: "doc-1"}

	req := withPrincipal(httptest.NewRequest("POST", "/api/appointments/appt-1/complete", nil), doctor)
	req.SetPathValue("id", "appt-1")
	w := httptest.NewRecorder()

	mockService.On("Complete", mock.Anything, doctor, "appt-1").
		Return(nil, apperrors.NewValidationError("appointment has not started").WithCode(apperrors.CodeAppointmentNotStarted))

	handler.CompleteAppointment(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeAppointmentNotStarted, decodeError(t, w)["code"])
}

func TestAppointmentHandler_GetAppointment(t *testing.T) {
	mockService := new(MockAppointmentService)
	handler := handlers.NewAppointmentHandler(mockService, new(MockSlotService))

	req := withPrincipal(httptest.NewRequest("GET", "/api/appointments/appt-1", nil), patient)
	req.SetPathValue("id", "appt-1")
	w := httptest.NewRecorder()

	mockService.On("Get", mock.Anything, patient, "appt-1").Return(sampleAppointment(), nil)

	handler.GetAppointment(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "appt-1", body["id"])
	assert.Equal(t, "2030-01-07", body["date"])
}
