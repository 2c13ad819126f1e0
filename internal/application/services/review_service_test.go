package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

type reviewFixture struct {
	reviews      *MockReviewRepository
	appointments *MockAppointmentRepository
	doctors      *MockDoctorRepository
}

func newReviewFixture() *reviewFixture {
	return &reviewFixture{
		reviews:      new(MockReviewRepository),
		appointments: new(MockAppointmentRepository),
		doctors:      new(MockDoctorRepository),
	}
}

func (f *reviewFixture) service() *services.ReviewService {
	aggregator := services.NewRatingAggregator(f.doctors, f.reviews, nil)
	return services.NewReviewService(f.reviews, f.appointments, aggregator, nil, fixedClock(bookingTime))
}

func completedAppointment() *entities.Appointment {
	appointment := scheduledAppointment()
	appointment.Status = entities.AppointmentStatusCompleted
	return appointment
}

func TestReviewService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("stores review and recomputes the doctor rating", func(t *testing.T) {
		f := newReviewFixture()
		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(completedAppointment(), nil)
		f.reviews.On("GetByAppointment", mock.Anything, "appt-1").Return(nil, apperrors.NewNotFoundError("review not found"))
		f.reviews.On("Create", mock.Anything, mock.AnythingOfType("*entities.Review")).Return(nil)
		f.reviews.On("RatingsByDoctor", mock.Anything, "doc-1").Return([]int{4, 2}, nil)
		f.doctors.On("UpdateRating", mock.Anything, entities.RatingSummary{DoctorID: "doc-1", Average: 3.0, Count: 2}).Return(nil)

		review, err := f.service().Submit(ctx, patient, "appt-1", services.ReviewInput{Rating: 2, Comment: " ok "})

		require.NoError(t, err)
		assert.Equal(t, 2, review.Rating)
		assert.Equal(t, "ok", review.Comment)
		assert.Equal(t, "user-1", review.UserID)
		f.reviews.AssertExpectations(t)
		f.doctors.AssertExpectations(t)
	})

	t.Run("second review of the same appointment conflicts", func(t *testing.T) {
		f := newReviewFixture()
		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(completedAppointment(), nil)
		f.reviews.On("GetByAppointment", mock.Anything, "appt-1").Return(&entities.Review{ID: "rev-1", Rating: 4}, nil)

		_, err := f.service().Submit(ctx, patient, "appt-1", services.ReviewInput{Rating: 5})

		assertAppError(t, err, apperrors.ErrorTypeConflict, apperrors.CodeReviewExists)
		f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unique index violation is passed through", func(t *testing.T) {
		f := newReviewFixture()
		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(completedAppointment(), nil)
		f.reviews.On("GetByAppointment", mock.Anything, "appt-1").Return(nil, apperrors.NewNotFoundError("review not found"))
		f.reviews.On("Create", mock.Anything, mock.Anything).
			Return(apperrors.NewConflictError("already reviewed").WithCode(apperrors.CodeReviewExists))

		_, err := f.service().Submit(ctx, patient, "appt-1", services.ReviewInput{Rating: 5})

		assertAppError(t, err, apperrors.ErrorTypeConflict, apperrors.CodeReviewExists)
	})

	t.Run("appointment must be completed", func(t *testing.T) {
		f := newReviewFixture()
		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(scheduledAppointment(), nil)

		_, err := f.service().Submit(ctx, patient, "appt-1", services.ReviewInput{Rating: 5})

		assertAppError(t, err, apperrors.ErrorTypeValidation, apperrors.CodeNotCompleted)
	})

	t.Run("only the owner reviews", func(t *testing.T) {
		f := newReviewFixture()
		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(completedAppointment(), nil)

		_, err := f.service().Submit(ctx, otherUser, "appt-1", services.ReviewInput{Rating: 5})

		assertAppError(t, err, apperrors.ErrorTypeUnauthorized, apperrors.CodeForbidden)
	})

	t.Run("rating must be in range", func(t *testing.T) {
		for _, rating := range []int{0, 6, -1} {
			f := newReviewFixture()
			f.appointments.On("GetByID", mock.Anything, "appt-1").Return(completedAppointment(), nil)

			_, err := f.service().Submit(ctx, patient, "appt-1", services.ReviewInput{Rating: rating})

			assertAppError(t, err, apperrors.ErrorTypeValidation, "")
		}
	})

	t.Run("missing appointment is not found", func(t *testing.T) {
		f := newReviewFixture()
		f.appointments.On("GetByID", mock.Anything, "nope").Return(nil, apperrors.NewNotFoundError("appointment not found"))

		_, err := f.service().Submit(ctx, patient, "nope", services.ReviewInput{Rating: 5})

		assertAppError(t, err, apperrors.ErrorTypeNotFound, "")
	})

	t.Run("rating failure does not fail the review", func(t *testing.T) {
		f := newReviewFixture()
		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(completedAppointment(), nil)
		f.reviews.On("GetByAppointment", mock.Anything, "appt-1").Return(nil, apperrors.NewNotFoundError("review not found"))
		f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.reviews.On("RatingsByDoctor", mock.Anything, "doc-1").Return(nil, errors.New("connection reset"))

		review, err := f.service().Submit(ctx, patient, "appt-1", services.ReviewInput{Rating: 5})

		require.NoError(t, err)
		assert.Equal(t, 5, review.Rating)
		f.doctors.AssertNotCalled(t, "UpdateRating", mock.Anything, mock.Anything)
	})
}

func TestReviewService_Replies(t *testing.T) {
	ctx := context.Background()

	setup := func() *reviewFixture {
		f := newReviewFixture()
		f.reviews.On("GetByID", mock.Anything, "rev-1").
			Return(&entities.Review{ID: "rev-1", AppointmentID: "appt-1", UserID: "user-1", Rating: 4}, nil)
		f.appointments.On("GetByID", mock.Anything, "appt-1").Return(completedAppointment(), nil)
		return f
	}

	t.Run("doctor replies", func(t *testing.T) {
		f := setup()
		f.reviews.On("UpdateReplies", mock.Anything, mock.AnythingOfType("*entities.Review")).Return(nil)

		review, err := f.service().AddDoctorReply(ctx, doctorUser, "rev-1", "Thank you")

		require.NoError(t, err)
		require.NotNil(t, review.DoctorReply)
		assert.Equal(t, "Thank you", *review.DoctorReply)
		assert.NotNil(t, review.DoctorRepliedAt)
		assert.Nil(t, review.HospitalReply)
		assert.Equal(t, 4, review.Rating)
	})

	t.Run("hospital admin replies", func(t *testing.T) {
		f := setup()
		f.reviews.On("UpdateReplies", mock.Anything, mock.Anything).Return(nil)

		review, err := f.service().AddHospitalReply(ctx, hospAdmin, "rev-1", "We are glad")

		require.NoError(t, err)
		require.NotNil(t, review.HospitalReply)
		assert.Equal(t, "We are glad", *review.HospitalReply)
	})

	t.Run("other hospital cannot reply", func(t *testing.T) {
		f := setup()

		_, err := f.service().AddHospitalReply(ctx, otherAdmin, "rev-1", "Hello")

		assertAppError(t, err, apperrors.ErrorTypeUnauthorized, apperrors.CodeForbidden)
		f.reviews.AssertNotCalled(t, "UpdateReplies", mock.Anything, mock.Anything)
	})

	t.Run("patient cannot reply as doctor", func(t *testing.T) {
		f := setup()

		_, err := f.service().AddDoctorReply(ctx, patient, "rev-1", "Hello")

		assertAppError(t, err, apperrors.ErrorTypeUnauthorized, apperrors.CodeForbidden)
	})

	t.Run("empty reply is rejected", func(t *testing.T) {
		f := setup()

		_, err := f.service().AddDoctorReply(ctx, doctorUser, "rev-1", "   ")

		assertAppError(t, err, apperrors.ErrorTypeValidation, "")
	})
}

func TestRatingAggregator(t *testing.T) {
	ctx := context.Background()

	t.Run("no reviews resets the rating", func(t *testing.T) {
		doctors := new(MockDoctorRepository)
		reviews := new(MockReviewRepository)
		reviews.On("RatingsByDoctor", mock.Anything, "doc-1").Return([]int{}, nil)
		doctors.On("UpdateRating", mock.Anything, entities.RatingSummary{DoctorID: "doc-1"}).Return(nil)

		summary, err := services.NewRatingAggregator(doctors, reviews, nil).RecomputeDoctor(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, 0.0, summary.Average)
		assert.Equal(t, 0, summary.Count)
	})

	t.Run("reindexes the doctor when search is configured", func(t *testing.T) {
		doctors := new(MockDoctorRepository)
		reviews := new(MockReviewRepository)
		schedules := new(MockScheduleRepository)
		search := new(MockDoctorSearchRepository)
		doctor := &entities.Doctor{ID: "doc-1", Name: "Dr. Ada", AvgTimePerPatient: 20}

		reviews.On("RatingsByDoctor", mock.Anything, "doc-1").Return([]int{5, 4, 3}, nil)
		doctors.On("UpdateRating", mock.Anything, entities.RatingSummary{DoctorID: "doc-1", Average: 4.0, Count: 3}).Return(nil)
		doctors.On("GetByID", mock.Anything, "doc-1").Return(doctor, nil)
		schedules.On("ListByDoctor", mock.Anything, "doc-1").Return([]*entities.DoctorHospitalSchedule{
			{DoctorID: "doc-1", HospitalID: "hosp-1"},
			{DoctorID: "doc-1", HospitalID: "hosp-2"},
		}, nil)
		search.On("Index", mock.Anything, doctor, []string{"hosp-1", "hosp-2"}).Return(nil)

		indexer := services.NewDoctorIndexer(doctors, schedules, search)
		_, err := services.NewRatingAggregator(doctors, reviews, indexer).RecomputeDoctor(ctx, "doc-1")

		require.NoError(t, err)
		search.AssertExpectations(t)
	})

	t.Run("sweep continues past failures", func(t *testing.T) {
		doctors := new(MockDoctorRepository)
		reviews := new(MockReviewRepository)
		doctors.On("ListIDs", mock.Anything).Return([]string{"doc-1", "doc-2", "doc-3"}, nil)
		reviews.On("RatingsByDoctor", mock.Anything, "doc-1").Return([]int{4, 2}, nil)
		reviews.On("RatingsByDoctor", mock.Anything, "doc-2").Return(nil, errors.New("boom"))
		reviews.On("RatingsByDoctor", mock.Anything, "doc-3").Return([]int{5}, nil)
		doctors.On("UpdateRating", mock.Anything, mock.AnythingOfType("entities.RatingSummary")).Return(nil)

		summary, err := services.NewRatingAggregator(doctors, reviews, nil).RecomputeAll(ctx)

		require.NoError(t, err)
		assert.Equal(t, 3, summary.Processed)
		assert.Equal(t, 2, summary.Succeeded)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, []string{"doc-2"}, summary.FailedIDs)
		doctors.AssertNumberOfCalls(t, "UpdateRating", 2)
	})
}
