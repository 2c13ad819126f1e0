package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

var doctorColumns = []interface{}{
	"id", "user_id", "name", "title", "bio", "category_id",
	"avg_time_per_patient", "avg_rating", "review_count", "created_at", "updated_at",
}

// DoctorAdapter implements the DoctorRepository interface
type DoctorAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDoctorAdapter creates a new doctor adapter
func NewDoctorAdapter(client *postgres.Client) repositories.DoctorRepository {
	return &DoctorAdapter{
		client: client,
		db:     newDialect(client.DB()),
	}
}

// Create creates a new doctor
func (a *DoctorAdapter) Create(ctx context.Context, doctor *entities.Doctor) error {
	query, args, err := a.db.Insert("doctors").Rows(goqu.Record{
		"id":                   doctor.ID,
		"user_id":              nullableString(doctor.UserID),
		"name":                 doctor.Name,
		"title":                doctor.Title,
		"bio":                  doctor.Bio,
		"category_id":          doctor.CategoryID,
		"avg_time_per_patient": doctor.AvgTimePerPatient,
		"avg_rating":           doctor.AvgRating,
		"review_count":         doctor.ReviewCount,
		"created_at":           doctor.CreatedAt,
		"updated_at":           doctor.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return mapWriteError(err, "failed to create doctor",
			apperrors.NewConflictError("a doctor is already linked to this user"))
	}
	return nil
}

// GetByID retrieves a doctor by ID
func (a *DoctorAdapter) GetByID(ctx context.Context, id string) (*entities.Doctor, error) {
	query, args, err := a.db.Select(doctorColumns...).From("doctors").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doctor, err := scanDoctor(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}
	return doctor, nil
}

// GetByIDs retrieves multiple doctors by their IDs
func (a *DoctorAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error) {
	if len(ids) == 0 {
		return []*entities.Doctor{}, nil
	}

	query, args, err := a.db.Select(doctorColumns...).From("doctors").
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.queryDoctors(ctx, query, args)
}

// Update updates the profile fields of a doctor. Rating fields are left untouched.
func (a *DoctorAdapter) Update(ctx context.Context, doctor *entities.Doctor) error {
	doctor.UpdatedAt = time.Now()

	query, args, err := a.db.Update("doctors").
		Set(goqu.Record{
			"user_id":              nullableString(doctor.UserID),
			"name":                 doctor.Name,
			"title":                doctor.Title,
			"bio":                  doctor.Bio,
			"category_id":          doctor.CategoryID,
			"avg_time_per_patient": doctor.AvgTimePerPatient,
			"updated_at":           doctor.UpdatedAt,
		}).
		Where(goqu.Ex{"id": doctor.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return a.execSingle(ctx, query, args, doctor.ID, "failed to update doctor")
}

// UpdateRating writes the derived rating aggregate
func (a *DoctorAdapter) UpdateRating(ctx context.Context, summary entities.RatingSummary) error {
	query, args, err := a.db.Update("doctors").
		Set(goqu.Record{
			"avg_rating":   summary.Average,
			"review_count": summary.Count,
			"updated_at":   time.Now(),
		}).
		Where(goqu.Ex{"id": summary.DoctorID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	return a.execSingle(ctx, query, args, summary.DoctorID, "failed to update doctor rating")
}

// List retrieves doctors with filters. Query is matched against name and title.
func (a *DoctorAdapter) List(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	ds := a.db.Select(doctorColumns...).From("doctors")
	if filter.CategoryID != "" {
		ds = ds.Where(goqu.Ex{"category_id": filter.CategoryID})
	}
	if filter.HospitalID != "" {
		ds = ds.Where(goqu.Ex{
			"id": a.db.From("doctor_hospital_schedules").
				Select("doctor_id").
				Where(goqu.Ex{"hospital_id": filter.HospitalID}),
		})
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		ds = ds.Where(goqu.Or(
			goqu.I("name").ILike(pattern),
			goqu.I("title").ILike(pattern),
		))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query, args, err := ds.Order(goqu.I("avg_rating").Desc(), goqu.I("name").Asc()).
		Limit(limit).Offset(offset).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}
	return a.queryDoctors(ctx, query, args)
}

// ListIDs returns every doctor id
func (a *DoctorAdapter) ListIDs(ctx context.Context) ([]string, error) {
	query, args, err := a.db.Select("id").From("doctors").Order(goqu.I("id").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctor ids", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate doctor ids", err)
	}
	return ids, nil
}

func (a *DoctorAdapter) execSingle(ctx context.Context, query string, args []interface{}, id, message string) error {
	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError(err, message, nil)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("doctor with id %s not found", id))
	}
	return nil
}

func (a *DoctorAdapter) queryDoctors(ctx context.Context, query string, args []interface{}) ([]*entities.Doctor, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	defer rows.Close()

	doctors := []*entities.Doctor{}
	for rows.Next() {
		doctor, err := scanDoctor(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor", err)
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate doctors", err)
	}
	return doctors, nil
}

func scanDoctor(row rowScanner) (*entities.Doctor, error) {
	doctor := &entities.Doctor{}
	var userID sql.NullString
	err := row.Scan(
		&doctor.ID,
		&userID,
		&doctor.Name,
		&doctor.Title,
		&doctor.Bio,
		&doctor.CategoryID,
		&doctor.AvgTimePerPatient,
		&doctor.AvgRating,
		&doctor.ReviewCount,
		&doctor.CreatedAt,
		&doctor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		doctor.UserID = &userID.String
	}
	return doctor, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
