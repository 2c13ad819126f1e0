package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

var reviewColumns = []interface{}{
	goqu.I("reviews.id"),
	goqu.I("reviews.appointment_id"),
	goqu.I("reviews.user_id"),
	goqu.I("reviews.rating"),
	goqu.I("reviews.comment"),
	goqu.I("reviews.doctor_reply"),
	goqu.I("reviews.hospital_reply"),
	goqu.I("reviews.doctor_replied_at"),
	goqu.I("reviews.hospital_replied_at"),
	goqu.I("reviews.created_at"),
	goqu.I("reviews.updated_at"),
}

// ReviewAdapter implements the ReviewRepository interface. Reads go through
// sqlx so rows map onto entities.Review by db tag.
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
	dbx    *sqlx.DB
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     newDialect(client.DB()),
		dbx:    client.DBx(),
	}
}

// Create stores a review
func (a *ReviewAdapter) Create(ctx context.Context, review *entities.Review) error {
	query, args, err := a.db.Insert("reviews").Rows(goqu.Record{
		"id":             review.ID,
		"appointment_id": review.AppointmentID,
		"user_id":        review.UserID,
		"rating":         review.Rating,
		"comment":        review.Comment,
		"created_at":     review.CreatedAt,
		"updated_at":     review.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return mapWriteError(err, "failed to create review",
			apperrors.NewConflictError("appointment has already been reviewed").WithCode(apperrors.CodeReviewExists))
	}
	return nil
}

// GetByID retrieves a review by ID
func (a *ReviewAdapter) GetByID(ctx context.Context, id string) (*entities.Review, error) {
	query, args, err := a.db.Select(reviewColumns...).From("reviews").
		Where(goqu.I("reviews.id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.getOne(ctx, query, args, fmt.Sprintf("review with id %s not found", id))
}

// GetByAppointment returns the review of an appointment
func (a *ReviewAdapter) GetByAppointment(ctx context.Context, appointmentID string) (*entities.Review, error) {
	query, args, err := a.db.Select(reviewColumns...).From("reviews").
		Where(goqu.I("reviews.appointment_id").Eq(appointmentID)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.getOne(ctx, query, args, fmt.Sprintf("appointment %s has no review", appointmentID))
}

// UpdateReplies persists the doctor and hospital replies
func (a *ReviewAdapter) UpdateReplies(ctx context.Context, review *entities.Review) error {
	review.UpdatedAt = time.Now()

	query, args, err := a.db.Update("reviews").
		Set(goqu.Record{
			"doctor_reply":        nullableString(review.DoctorReply),
			"hospital_reply":      nullableString(review.HospitalReply),
			"doctor_replied_at":   nullableTime(review.DoctorRepliedAt),
			"hospital_replied_at": nullableTime(review.HospitalRepliedAt),
			"updated_at":          review.UpdatedAt,
		}).
		Where(goqu.Ex{"id": review.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update review", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("review with id %s not found", review.ID))
	}
	return nil
}

// ListByDoctor returns reviews of appointments with the doctor, newest first
func (a *ReviewAdapter) ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*entities.Review, error) {
	l, o := pageBounds(limit, offset)
	query, args, err := a.byDoctor(doctorID).
		Select(reviewColumns...).
		Order(goqu.I("reviews.created_at").Desc()).
		Limit(l).Offset(o).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	reviews := []*entities.Review{}
	if err := a.dbx.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list reviews", err)
	}
	return reviews, nil
}

// RatingsByDoctor returns every rating given to the doctor
func (a *ReviewAdapter) RatingsByDoctor(ctx context.Context, doctorID string) ([]int, error) {
	query, args, err := a.byDoctor(doctorID).
		Select(goqu.I("reviews.rating")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	ratings := []int{}
	if err := a.dbx.SelectContext(ctx, &ratings, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to load ratings", err)
	}
	return ratings, nil
}

func (a *ReviewAdapter) byDoctor(doctorID string) *goqu.SelectDataset {
	return a.db.From("reviews").
		Join(goqu.T("appointments"), goqu.On(goqu.I("appointments.id").Eq(goqu.I("reviews.appointment_id")))).
		Where(goqu.I("appointments.doctor_id").Eq(doctorID))
}

func (a *ReviewAdapter) getOne(ctx context.Context, query string, args []interface{}, notFound string) (*entities.Review, error) {
	review := &entities.Review{}
	err := a.dbx.GetContext(ctx, review, query, args...)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get review", err)
	}
	return review, nil
}
