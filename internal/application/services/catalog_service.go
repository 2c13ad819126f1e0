package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

// CategoryInput is the body of a category creation
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HospitalInput carries hospital fields. Nil pointers are left unchanged on update.
type HospitalInput struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	City     *string `json:"city"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	IsActive *bool   `json:"is_active"`
}

// DoctorInput carries doctor profile fields. Nil pointers are left unchanged on update.
type DoctorInput struct {
	UserID            *string `json:"user_id"`
	Name              *string `json:"name"`
	Title             *string `json:"title"`
	Bio               *string `json:"bio"`
	CategoryID        *string `json:"category_id"`
	AvgTimePerPatient *int    `json:"avg_time_per_patient"`
}

// ScheduleInput is the weekly window of a doctor at a hospital
type ScheduleInput struct {
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Weekdays  []time.Weekday `json:"weekdays"`
}

// CatalogService manages categories, hospitals, doctors and their schedules
type CatalogService struct {
	categories repositories.CategoryRepository
	hospitals  repositories.HospitalRepository
	doctors    repositories.DoctorRepository
	schedules  repositories.ScheduleRepository
	search     repositories.DoctorSearchRepository
	indexer    *DoctorIndexer
	slots      *SlotService
	now        Clock
}

// NewCatalogService creates a new catalog service. search, indexer and slots may be nil.
func NewCatalogService(
	categories repositories.CategoryRepository,
	hospitals repositories.HospitalRepository,
	doctors repositories.DoctorRepository,
	schedules repositories.ScheduleRepository,
	search repositories.DoctorSearchRepository,
	indexer *DoctorIndexer,
	slots *SlotService,
) *CatalogService {
	return &CatalogService{
		categories: categories,
		hospitals:  hospitals,
		doctors:    doctors,
		schedules:  schedules,
		search:     search,
		indexer:    indexer,
		slots:      slots,
		now:        time.Now,
	}
}

// CreateCategory creates a new specialty category
func (s *CatalogService) CreateCategory(ctx context.Context, principal *entities.Principal, input CategoryInput) (*entities.Category, error) {
	if err := requireSuperAdmin(principal); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}

	now := s.now()
	category := &entities.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// GetCategory returns a category by ID
func (s *CatalogService) GetCategory(ctx context.Context, id string) (*entities.Category, error) {
	return s.categories.GetByID(ctx, id)
}

// ListCategories returns all categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]*entities.Category, error) {
	return s.categories.List(ctx)
}

// CreateHospital creates a new hospital
func (s *CatalogService) CreateHospital(ctx context.Context, principal *entities.Principal, input HospitalInput) (*entities.Hospital, error) {
	if err := requireSuperAdmin(principal); err != nil {
		return nil, err
	}

	now := s.now()
	hospital := &entities.Hospital{
		ID:        uuid.New().String(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyHospitalInput(hospital, input); err != nil {
		return nil, err
	}
	if hospital.Name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}

	if err := s.hospitals.Create(ctx, hospital); err != nil {
		return nil, err
	}
	return hospital, nil
}

// GetHospital returns a hospital by ID
func (s *CatalogService) GetHospital(ctx context.Context, id string) (*entities.Hospital, error) {
	return s.hospitals.GetByID(ctx, id)
}

// ListHospitals returns hospitals matching filter
func (s *CatalogService) ListHospitals(ctx context.Context, filter repositories.HospitalFilter) ([]*entities.Hospital, error) {
	return s.hospitals.List(ctx, filter)
}

// UpdateHospital applies a partial update. Hospital admins may only edit their own hospital.
func (s *CatalogService) UpdateHospital(ctx context.Context, principal *entities.Principal, id string, input HospitalInput) (*entities.Hospital, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.AdministersHospital(id) {
		return nil, apperrors.NewForbiddenError("you cannot manage this hospital")
	}

	hospital, err := s.hospitals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyHospitalInput(hospital, input); err != nil {
		return nil, err
	}
	if hospital.Name == "" {
		return nil, apperrors.NewValidationError("name is required")
	}
	hospital.UpdatedAt = s.now()

	if err := s.hospitals.Update(ctx, hospital); err != nil {
		return nil, err
	}
	return hospital, nil
}

// CreateDoctor creates a new doctor profile
func (s *CatalogService) CreateDoctor(ctx context.Context, principal *entities.Principal, input DoctorInput) (*entities.Doctor, error) {
	if !principal.HasRole(entities.RoleSuperAdmin, entities.RoleHospitalAdmin) {
		return nil, apperrors.NewForbiddenError("only administrators can manage doctors")
	}

	now := s.now()
	doctor := &entities.Doctor{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyDoctorInput(doctor, input)
	if err := s.validateDoctor(ctx, doctor); err != nil {
		return nil, err
	}

	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, err
	}
	s.reindex(ctx, doctor)
	return doctor, nil
}

// UpdateDoctor applies a partial update to a doctor profile
func (s *CatalogService) UpdateDoctor(ctx context.Context, principal *entities.Principal, id string, input DoctorInput) (*entities.Doctor, error) {
	if !principal.HasRole(entities.RoleSuperAdmin, entities.RoleHospitalAdmin) {
		return nil, apperrors.NewForbiddenError("only administrators can manage doctors")
	}

	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	widthBefore := doctor.AvgTimePerPatient

	applyDoctorInput(doctor, input)
	if err := s.validateDoctor(ctx, doctor); err != nil {
		return nil, err
	}
	doctor.UpdatedAt = s.now()

	if err := s.doctors.Update(ctx, doctor); err != nil {
		return nil, err
	}

	if doctor.AvgTimePerPatient != widthBefore && s.slots != nil {
		schedules, err := s.schedules.ListByDoctor(ctx, doctor.ID)
		if err == nil {
			for _, schedule := range schedules {
				s.slots.InvalidatePair(ctx, doctor.ID, schedule.HospitalID)
			}
		}
	}
	s.reindex(ctx, doctor)
	return doctor, nil
}

// GetDoctor returns a doctor by ID
func (s *CatalogService) GetDoctor(ctx context.Context, id string) (*entities.Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// ListDoctors returns doctors matching filter. A text query goes to the search
// index when one is configured and falls back to the database otherwise.
func (s *CatalogService) ListDoctors(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Query == "" || s.search == nil {
		return s.doctors.List(ctx, filter)
	}

	ids, err := s.search.Search(ctx, filter)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("query", filter.Query).Msg("doctor search failed, falling back to database")
		return s.doctors.List(ctx, filter)
	}
	if len(ids) == 0 {
		return []*entities.Doctor{}, nil
	}

	found, err := s.doctors.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entities.Doctor, len(found))
	for _, doctor := range found {
		byID[doctor.ID] = doctor
	}
	ordered := make([]*entities.Doctor, 0, len(ids))
	for _, id := range ids {
		if doctor, ok := byID[id]; ok {
			ordered = append(ordered, doctor)
		}
	}
	return ordered, nil
}

// UpsertSchedule sets the weekly window of a doctor at a hospital
func (s *CatalogService) UpsertSchedule(ctx context.Context, principal *entities.Principal, doctorID, hospitalID string, input ScheduleInput) (*entities.DoctorHospitalSchedule, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.AdministersHospital(hospitalID) {
		return nil, apperrors.NewForbiddenError("you cannot manage schedules at this hospital")
	}

	start, err := entities.ParseTimeOfDay(input.StartTime)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("start_time: %v", err))
	}
	end, err := entities.ParseTimeOfDay(input.EndTime)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("end_time: %v", err))
	}
	if start >= end {
		return nil, apperrors.NewValidationError("start_time must be before end_time")
	}
	weekdays := entities.Weekdays(input.Weekdays)
	if !weekdays.Valid() {
		return nil, apperrors.NewValidationError("weekdays must be a non-empty set of distinct values between 0 and 6")
	}

	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.hospitals.GetByID(ctx, hospitalID); err != nil {
		return nil, err
	}

	now := s.now()
	schedule := &entities.DoctorHospitalSchedule{
		ID:         uuid.New().String(),
		DoctorID:   doctorID,
		HospitalID: hospitalID,
		StartTime:  start,
		EndTime:    end,
		Weekdays:   weekdays,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.schedules.Upsert(ctx, schedule); err != nil {
		return nil, err
	}

	if s.slots != nil {
		s.slots.InvalidatePair(ctx, doctorID, hospitalID)
	}
	s.reindex(ctx, doctor)
	return schedule, nil
}

// ListSchedules returns every schedule of a doctor
func (s *CatalogService) ListSchedules(ctx context.Context, doctorID string) ([]*entities.DoctorHospitalSchedule, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.schedules.ListByDoctor(ctx, doctorID)
}

func (s *CatalogService) validateDoctor(ctx context.Context, doctor *entities.Doctor) error {
	if doctor.Name == "" {
		return apperrors.NewValidationError("name is required")
	}
	if doctor.AvgTimePerPatient <= 0 || doctor.AvgTimePerPatient > entities.MaxAvgTimePerPatient {
		return apperrors.NewValidationError(
			fmt.Sprintf("avg_time_per_patient must be between 1 and %d minutes", entities.MaxAvgTimePerPatient))
	}
	if doctor.CategoryID == "" {
		return apperrors.NewValidationError("category_id is required")
	}
	if _, err := s.categories.GetByID(ctx, doctor.CategoryID); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return apperrors.NewValidationError("category_id does not reference an existing category")
		}
		return err
	}
	return nil
}

func (s *CatalogService) reindex(ctx context.Context, doctor *entities.Doctor) {
	if !s.indexer.Enabled() {
		return
	}
	if err := s.indexer.IndexDoctor(ctx, doctor); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("doctor_id", doctor.ID).Msg("failed to index doctor")
	}
}

func requireSuperAdmin(principal *entities.Principal) error {
	if err := requirePrincipal(principal); err != nil {
		return err
	}
	if !principal.IsSuperAdmin() {
		return apperrors.NewForbiddenError("super admin role required")
	}
	return nil
}

func applyHospitalInput(hospital *entities.Hospital, input HospitalInput) error {
	if input.Name != nil {
		hospital.Name = strings.TrimSpace(*input.Name)
	}
	if input.Address != nil {
		hospital.Address = strings.TrimSpace(*input.Address)
	}
	if input.City != nil {
		hospital.City = strings.TrimSpace(*input.City)
	}
	if input.Phone != nil {
		hospital.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return apperrors.NewValidationError("email is not a valid address")
			}
		}
		hospital.Email = email
	}
	if input.IsActive != nil {
		hospital.IsActive = *input.IsActive
	}
	return nil
}

func applyDoctorInput(doctor *entities.Doctor, input DoctorInput) {
	if input.UserID != nil {
		if userID := strings.TrimSpace(*input.UserID); userID != "" {
			doctor.UserID = &userID
		} else {
			doctor.UserID = nil
		}
	}
	if input.Name != nil {
		doctor.Name = strings.TrimSpace(*input.Name)
	}
	if input.Title != nil {
		doctor.Title = strings.TrimSpace(*input.Title)
	}
	if input.Bio != nil {
		doctor.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.CategoryID != nil {
		doctor.CategoryID = strings.TrimSpace(*input.CategoryID)
	}
	if input.AvgTimePerPatient != nil {
		doctor.AvgTimePerPatient = *input.AvgTimePerPatient
	}
}
