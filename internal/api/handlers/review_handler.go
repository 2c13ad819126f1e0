package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/hospital-appointments/internal/api/middleware"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

// ReviewService defines the review operations used by the API
type ReviewService interface {
	Submit(ctx context.Context, principal *entities.Principal, appointmentID string, input services.ReviewInput) (*entities.Review, error)
	AddDoctorReply(ctx context.Context, principal *entities.Principal, reviewID, reply string) (*entities.Review, error)
	AddHospitalReply(ctx context.Context, principal *entities.Principal, reviewID, reply string) (*entities.Review, error)
	ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*entities.Review, error)
}

// RatingRecomputer runs the maintenance rating sweep
type RatingRecomputer interface {
	RecomputeDoctor(ctx context.Context, doctorID string) (entities.RatingSummary, error)
	RecomputeAll(ctx context.Context) (*services.RecomputeSummary, error)
}

// ReviewHandler handles review and rating requests
type ReviewHandler struct {
	service    ReviewService
	aggregator RatingRecomputer
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service ReviewService, aggregator RatingRecomputer) *ReviewHandler {
	return &ReviewHandler{service: service, aggregator: aggregator}
}

type replyRequest struct {
	Reply string `json:"reply"`
}

// SubmitReview handles POST /api/appointments/{id}/review
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var input services.ReviewInput
	if !decodeJSON(w, r, &input) {
		return
	}
	review, err := h.service.Submit(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, review)
}

// DoctorReply handles POST /api/reviews/{id}/doctor-reply
func (h *ReviewHandler) DoctorReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := h.service.AddDoctorReply(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"), req.Reply)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, review)
}

// HospitalReply handles POST /api/reviews/{id}/hospital-reply
func (h *ReviewHandler) HospitalReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := h.service.AddHospitalReply(r.Context(), middleware.PrincipalFromContext(r.Context()), r.PathValue("id"), req.Reply)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, review)
}

// ListDoctorReviews handles GET /api/doctors/{id}/reviews
func (h *ReviewHandler) ListDoctorReviews(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	reviews, err := h.service.ListByDoctor(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

// RecomputeRatings handles POST /api/admin/ratings/recompute[?doctor_id=]
func (h *ReviewHandler) RecomputeRatings(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		respondWithAppError(w, r, apperrors.NewUnauthorizedError("authentication required").WithCode(apperrors.CodeUnauthenticated))
		return
	}
	if !principal.IsSuperAdmin() {
		respondWithAppError(w, r, apperrors.NewForbiddenError("super admin role required"))
		return
	}

	if doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id")); doctorID != "" {
		summary, err := h.aggregator.RecomputeDoctor(r.Context(), doctorID)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := h.aggregator.RecomputeAll(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}
