package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zatekoja/hospital-appointments/internal/api/middleware"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
)

// CatalogService defines the catalog operations used by the API
type CatalogService interface {
	CreateCategory(ctx context.Context, principal *entities.Principal, input services.CategoryInput) (*entities.Category, error)
	GetCategory(ctx context.Context, id string) (*entities.Category, error)
	ListCategories(ctx context.Context) ([]*entities.Category, error)

	CreateHospital(ctx context.Context, principal *entities.Principal, input services.HospitalInput) (*entities.Hospital, error)
	GetHospital(ctx context.Context, id string) (*entities.Hospital, error)
	ListHospitals(ctx context.Context, filter repositories.HospitalFilter) ([]*entities.Hospital, error)
	UpdateHospital(ctx context.Context, principal *entities.Principal, id string, input services.HospitalInput) (*entities.Hospital, error)

	CreateDoctor(ctx context.Context, principal *entities.Principal, input services.DoctorInput) (*entities.Doctor, error)
	GetDoctor(ctx context.Context, id string) (*entities.Doctor, error)
	ListDoctors(ctx context.Context, filter repositories.DoctorFilter) ([]*entities.Doctor, error)
	UpdateDoctor(ctx context.Context, principal *entities.Principal, id string, input services.DoctorInput) (*entities.Doctor, error)

	UpsertSchedule(ctx context.Context, principal *entities.Principal, doctorID, hospitalID string, input services.ScheduleInput) (*entities.DoctorHospitalSchedule, error)
	ListSchedules(ctx context.Context, doctorID string) ([]*entities.DoctorHospitalSchedule, error)
}

// CatalogHandler handles category, hospital, doctor and schedule requests
type CatalogHandler struct {
	service CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(service CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// GetCategory handles GET /api/categories/{id}
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.GetCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, category)
}

// CreateCategory handles POST /api/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input services.CategoryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	category, err := h.service.CreateCategory(r.Context(), middleware.PrincipalFromContext(r.Context()), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, category)
}

// ListHospitals handles GET /api/hospitals
func (h *CatalogHandler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	filter := repositories.HospitalFilter{
		City:   r.URL.Query().Get("city"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		filter.IsActive = &active
	}

	hospitals, err := h.service.ListHospitals(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"hospitals": hospitals})
}

// GetHospital handles GET /api/hospitals/{id}
func (h *CatalogHandler) GetHospital(w http.ResponseWriter, r *http.Request) {
	hospital, err := h.service.GetHospital(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hospital)
}

// CreateHospital handles POST /api/hospitals
func (h *CatalogHandler) CreateHospital(w http.ResponseWriter, r *http.Request) {
	var input services.HospitalInput
	if !decodeJSON(w, r, &input) {
		return
	}
	hospital, err := h.service.CreateHospital(r.Context(), middleware.PrincipalFromContext(r.Context()), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, hospital)
}

// UpdateHospital handles PATCH /api/hospitals/{id}
func (h *CatalogHandler) UpdateHospital(w http.ResponseWriter, r *http.Request) {
	var input services.HospitalInput
	if !decodeJSON(w, r, &input) {
		return
	}
	hospital, err := h.service.UpdateHospital(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hospital)
}

// ListDoctors handles GET /api/doctors?category_id=&hospital_id=&q=
func (h *CatalogHandler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	query := r.URL.Query()
	doctors, err := h.service.ListDoctors(r.Context(), repositories.DoctorFilter{
		CategoryID: query.Get("category_id"),
		HospitalID: query.Get("hospital_id"),
		Query:      query.Get("q"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"doctors": doctors})
}

// GetDoctor handles GET /api/doctors/{id}
func (h *CatalogHandler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doctor, err := h.service.GetDoctor(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doctor)
}

// CreateDoctor handles POST /api/doctors
func (h *CatalogHandler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var input services.DoctorInput
	if !decodeJSON(w, r, &input) {
		return
	}
	doctor, err := h.service.CreateDoctor(r.Context(), middleware.PrincipalFromContext(r.Context()), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, doctor)
}

// UpdateDoctor handles PATCH /api/doctors/{id}
func (h *CatalogHandler) UpdateDoctor(w http.ResponseWriter, r *http.Request) {
	var input services.DoctorInput
	if !decodeJSON(w, r, &input) {
		return
	}
	doctor, err := h.service.UpdateDoctor(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doctor)
}

// ListSchedules handles GET /api/doctors/{id}/schedules
func (h *CatalogHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.ListSchedules(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

// UpsertSchedule handles PUT /api/doctors/{id}/schedules/{hospitalId}
func (h *CatalogHandler) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	var input services.ScheduleInput
	if !decodeJSON(w, r, &input) {
		return
	}
	schedule, err := h.service.UpsertSchedule(
		r.Context(),
		middleware.PrincipalFromContext(r.Context()),
		r.PathValue("id"),
		r.PathValue("hospitalId"),
		input,
	)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, schedule)
}
