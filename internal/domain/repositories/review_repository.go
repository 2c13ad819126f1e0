package repositories

import (
	"context"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
)

// ReviewRepository defines the interface for review operations.
type ReviewRepository interface {
	// Create stores a review. A second review of the same appointment fails with a Conflict.
	Create(ctx context.Context, review *entities.Review) error

	GetByID(ctx context.Context, id string) (*entities.Review, error)

	// GetByAppointment returns the review of an appointment, NotFound when absent
	GetByAppointment(ctx context.Context, appointmentID string) (*entities.Review, error)

	// UpdateReplies persists the doctor and hospital replies
	UpdateReplies(ctx context.Context, review *entities.Review) error

	// ListByDoctor returns reviews of appointments with the doctor, newest first
	ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*entities.Review, error)

	// RatingsByDoctor returns every rating given to the doctor
	RatingsByDoctor(ctx context.Context, doctorID string) ([]int, error)
}
