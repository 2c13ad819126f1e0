package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/hospital-appointments/internal/api/handlers"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Submit(ctx context.Context, principal *entities.Principal, appointmentID string, input services.ReviewInput) (*entities.Review, error) {
	args := m.Called(ctx, principal, appointmentID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Review), args.Error(1)
}

func (m *MockReviewService) AddDoctorReply(ctx context.Context, principal *entities.Principal, reviewID, reply string) (*entities.Review, error) {
	args := m.Called(ctx, principal, reviewID, reply)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Review), args.Error(1)
}

func (m *MockReviewService) AddHospitalReply(ctx context.Context, principal *entities.Principal, reviewID, reply string) (*entities.Review, error) {
	args := m.Called(ctx, principal, reviewID, reply)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Review), args.Error(1)
}

func (m *MockReviewService) ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*entities.Review, error) {
	args := m.Called(ctx, doctorID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Review), args.Error(1)
}

type MockRatingRecomputer struct {
	mock.Mock
}

func (m *MockRatingRecomputer) RecomputeDoctor(ctx context.Context, doctorID string) (entities.RatingSummary, error) {
	args := m.Called(ctx, doctorID)
	return args.Get(0).(entities.RatingSummary), args.Error(1)
}

func (m *MockRatingRecomputer) RecomputeAll(ctx context.Context) (*services.RecomputeSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RecomputeSummary), args.Error(1)
}

func TestReviewHandler_SubmitReview(t *testing.T) {
	t.Run("creates review", func(t *testing.T) {
		reviewService := new(MockReviewService)
		handler := handlers.NewReviewHandler(reviewService, new(MockRatingRecomputer))

		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments/appt-1/review", bytes.NewBufferString(`{"rating":4,"comment":"kind"}`)), patient)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		reviewService.On("Submit", mock.Anything, patient, "appt-1", services.ReviewInput{Rating: 4, Comment: "kind"}).
			Return(&entities.Review{ID: "rev-1", AppointmentID: "appt-1", Rating: 4}, nil)

		handler.SubmitReview(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		reviewService.AssertExpectations(t)
	})

	t.Run("second review conflicts", func(t *testing.T) {
		reviewService := new(MockReviewService)
		handler := handlers.NewReviewHandler(reviewService, new(MockRatingRecomputer))

		req := withPrincipal(httptest.NewRequest("POST", "/api/appointments/appt-1/review", bytes.NewBufferString(`{"rating":5}`)), patient)
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		reviewService.On("Submit", mock.Anything, patient, "appt-1", mock.Anything).
			Return(nil, apperrors.NewConflictError("appointment already reviewed").WithCode(apperrors.CodeReviewExists))

		handler.SubmitReview(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperrors.CodeReviewExists, decodeError(t, w)["code"])
	})

	t.Run("unauthenticated caller gets 401", func(t *testing.T) {
		reviewService := new(MockReviewService)
		handler := handlers.NewReviewHandler(reviewService, new(MockRatingRecomputer))

		req := httptest.NewRequest("POST", "/api/appointments/appt-1/review", bytes.NewBufferString(`{"rating":5}`))
		req.SetPathValue("id", "appt-1")
		w := httptest.NewRecorder()

		reviewService.On("Submit", mock.Anything, (*entities.Principal)(nil), "appt-1", mock.Anything).
			Return(nil, apperrors.NewUnauthorizedError("authentication required").WithCode(apperrors.CodeUnauthenticated))

		handler.SubmitReview(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperrors.CodeUnauthenticated, decodeError(t, w)["code"])
	})
}

func TestReviewHandler_Replies(t *testing.T) {
	doctor := &entities.Principal{UserID: "user-doc", Role: entities.RoleDoctor, DoctorID: "doc-1"}
	admin := &entities.Principal{UserID: "user-admin", Role: entities.RoleHospitalAdmin, HospitalID: "hosp-1"}
	reply := "thank you"

	t.Run("doctor reply", func(t *testing.T) {
		reviewService := new(MockReviewService)
		handler := handlers.NewReviewHandler(reviewService, new(MockRatingRecomputer))

		req := withPrincipal(httptest.NewRequest("POST", "/api/reviews/rev-1/doctor-reply", bytes.NewBufferString(`{"reply":"thank you"}`)), doctor)
		req.SetPathValue("id", "rev-1")
		w := httptest.NewRecorder()

		reviewService.On("AddDoctorReply", mock.Anything, doctor, "rev-1", reply).
			Return(&entities.Review{ID: "rev-1", DoctorReply: &reply}, nil)

		handler.DoctorReply(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"doctor_reply":"thank you"`)
	})

	t.Run("hospital reply forbidden", func(t *testing.T) {
		reviewService := new(MockReviewService)
		handler := handlers.NewReviewHandler(reviewService, new(MockRatingRecomputer))

		req := withPrincipal(httptest.NewRequest("POST", "/api/reviews/rev-1/hospital-reply", bytes.NewBufferString(`{"reply":"thank you"}`)), admin)
		req.SetPathValue("id", "rev-1")
		w := httptest.NewRecorder()

		reviewService.On("AddHospitalReply", mock.Anything, admin, "rev-1", reply).
			Return(nil, apperrors.NewForbiddenError("you cannot reply for this hospital"))

		handler.HospitalReply(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestReviewHandler_ListDoctorReviews(t *testing.T) {
	reviewService := new(MockReviewService)
	handler := handlers.NewReviewHandler(reviewService, new(MockRatingRecomputer))

	req := httptest.NewRequest("GET", "/api/doctors/doc-1/reviews?limit=10&offset=20", nil)
	req.SetPathValue("id", "doc-1")
	w := httptest.NewRecorder()

	reviewService.On("ListByDoctor", mock.Anything, "doc-1", 10, 20).Return([]*entities.Review{{ID: "rev-1"}}, nil)

	handler.ListDoctorReviews(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	reviewService.AssertExpectations(t)
}

func TestReviewHandler_RecomputeRatings(t *testing.T) {
	superAdmin := &entities.Principal{UserID: "root", Role: entities.RoleSuperAdmin}

	t.Run("requires authentication", func(t *testing.T) {
		handler := handlers.NewReviewHandler(new(MockReviewService), new(MockRatingRecomputer))
		w := httptest.NewRecorder()

		handler.RecomputeRatings(w, httptest.NewRequest("POST", "/api/admin/ratings/recompute", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("requires super admin", func(t *testing.T) {
		aggregator := new(MockRatingRecomputer)
		handler := handlers.NewReviewHandler(new(MockReviewService), aggregator)
		w := httptest.NewRecorder()

		handler.RecomputeRatings(w, withPrincipal(httptest.NewRequest("POST", "/api/admin/ratings/recompute", nil), patient))

		assert.Equal(t, http.StatusForbidden, w.Code)
		aggregator.AssertNotCalled(t, "RecomputeAll", mock.Anything)
	})

	t.Run("single doctor", func(t *testing.T) {
		aggregator := new(MockRatingRecomputer)
		handler := handlers.NewReviewHandler(new(MockReviewService), aggregator)
		w := httptest.NewRecorder()

		aggregator.On("RecomputeDoctor", mock.Anything, "doc-1").
			Return(entities.RatingSummary{DoctorID: "doc-1", Average: 3, Count: 2}, nil)

		handler.RecomputeRatings(w, withPrincipal(httptest.NewRequest("POST", "/api/admin/ratings/recompute?doctor_id=doc-1", nil), superAdmin))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":2`)
		aggregator.AssertNotCalled(t, "RecomputeAll", mock.Anything)
	})

	t.Run("full sweep", func(t *testing.T) {
		aggregator := new(MockRatingRecomputer)
		handler := handlers.NewReviewHandler(new(MockReviewService), aggregator)
		w := httptest.NewRecorder()

		aggregator.On("RecomputeAll", mock.Anything).Return(&services.RecomputeSummary{Processed: 3, Succeeded: 3}, nil)

		handler.RecomputeRatings(w, withPrincipal(httptest.NewRequest("POST", "/api/admin/ratings/recompute", nil), superAdmin))

		assert.Equal(t, http.StatusOK, w.Code)
		aggregator.AssertExpectations(t)
	})
}
