package services

import (
	"context"
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

const maxReviewComment = 2000

// ReviewInput is the body of a review submission
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ReviewService handles reviews of completed appointments
type ReviewService struct {
	reviews      repositories.ReviewRepository
	appointments repositories.AppointmentRepository
	aggregator   *RatingAggregator
	eventBus     providers.EventBus
	now          Clock
}

// NewReviewService creates a new review service. eventBus may be nil.
func NewReviewService(
	reviews repositories.ReviewRepository,
	appointments repositories.AppointmentRepository,
	aggregator *RatingAggregator,
	eventBus providers.EventBus,
	now Clock,
) *ReviewService {
	if now == nil {
		now = time.Now
	}
	return &ReviewService{
		reviews:      reviews,
		appointments: appointments,
		aggregator:   aggregator,
		eventBus:     eventBus,
		now:          now,
	}
}

// Submit stores the caller's review of their completed appointment and
// refreshes the doctor's rating.
func (s *ReviewService) Submit(ctx context.Context, principal *entities.Principal, appointmentID string, input ReviewInput) (*entities.Review, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment.UserID != principal.UserID {
		return nil, apperrors.NewForbiddenError("only the patient of this appointment can review it")
	}
	if appointment.Status != entities.AppointmentStatusCompleted {
		return nil, apperrors.NewValidationError("only completed appointments can be reviewed").
			WithCode(apperrors.CodeNotCompleted)
	}
	if !entities.ValidRating(input.Rating) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("rating must be between %d and %d", entities.MinRating, entities.MaxRating))
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > maxReviewComment {
		return nil, apperrors.NewValidationError(fmt.Sprintf("comment must be at most %d characters", maxReviewComment))
	}

	if _, err := s.reviews.GetByAppointment(ctx, appointmentID); err == nil {
		return nil, apperrors.NewConflictError("this appointment has already been reviewed").
			WithCode(apperrors.CodeReviewExists)
	} else if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	now := s.now()
	review := &entities.Review{
		ID:            uuid.New().String(),
		AppointmentID: appointmentID,
		UserID:        principal.UserID,
		Rating:        input.Rating,
		Comment:       comment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	if s.aggregator != nil {
		if _, err := s.aggregator.RecomputeDoctor(ctx, appointment.DoctorID); err != nil {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("doctor_id", appointment.DoctorID).
				Str("review_id", review.ID).
				Msg("failed to update doctor rating after review")
		}
	}

	event := entities.NewAppointmentEvent(entities.AppointmentEventReviewed, appointment)
	event.Rating = review.Rating
	publishAppointmentEvent(ctx, s.eventBus, event)

	return review, nil
}

// AddDoctorReply records the doctor's answer to a review
func (s *ReviewService) AddDoctorReply(ctx context.Context, principal *entities.Principal, reviewID, reply string) (*entities.Review, error) {
	return s.addReply(ctx, principal, reviewID, reply, func(review *entities.Review, appointment *entities.Appointment, text string, at time.Time) error {
		if !principal.IsDoctor(appointment.DoctorID) {
			return apperrors.NewForbiddenError("only the reviewed doctor can reply")
		}
		review.DoctorReply = &text
		review.DoctorRepliedAt = &at
		return nil
	})
}

// AddHospitalReply records the hospital's answer to a review
func (s *ReviewService) AddHospitalReply(ctx context.Context, principal *entities.Principal, reviewID, reply string) (*entities.Review, error) {
	return s.addReply(ctx, principal, reviewID, reply, func(review *entities.Review, appointment *entities.Appointment, text string, at time.Time) error {
		if !principal.AdministersHospital(appointment.HospitalID) {
			return apperrors.NewForbiddenError("only the hospital's admin can reply")
		}
		review.HospitalReply = &text
		review.HospitalRepliedAt = &at
		return nil
	})
}

func (s *ReviewService) addReply(
	ctx context.Context,
	principal *entities.Principal,
	reviewID, reply string,
	apply func(*entities.Review, *entities.Appointment, string, time.Time) error,
) (*entities.Review, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(reply)
	if text == "" {
		return nil, apperrors.NewValidationError("reply must not be empty")
	}
	if len(text) > maxReviewComment {
		return nil, apperrors.NewValidationError(fmt.Sprintf("reply must be at most %d characters", maxReviewComment))
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	appointment, err := s.appointments.GetByID(ctx, review.AppointmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := apply(review, appointment, text, now); err != nil {
		return nil, err
	}
	review.UpdatedAt = now

	if err := s.reviews.UpdateReplies(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

// ListByDoctor returns reviews of the doctor, newest first
func (s *ReviewService) ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*entities.Review, error) {
	return s.reviews.ListByDoctor(ctx, doctorID, limit, offset)
}
