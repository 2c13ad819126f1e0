package routes

import (
	"net/http"

	"github.com/zatekoja/hospital-appointments/internal/api/handlers"
	"github.com/zatekoja/hospital-appointments/internal/api/loaders"
	"github.com/zatekoja/hospital-appointments/internal/api/middleware"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	catalogHandler     *handlers.CatalogHandler
	appointmentHandler *handlers.AppointmentHandler
	reviewHandler      *handlers.ReviewHandler
	sseHandler         *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	tokenParser     middleware.TokenParser
	doctorRepo      repositories.DoctorRepository
	hospitalRepo    repositories.HospitalRepository
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	catalogHandler *handlers.CatalogHandler,
	appointmentHandler *handlers.AppointmentHandler,
	reviewHandler *handlers.ReviewHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	tokenParser middleware.TokenParser,
	doctorRepo repositories.DoctorRepository,
	hospitalRepo repositories.HospitalRepository,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		catalogHandler:     catalogHandler,
		appointmentHandler: appointmentHandler,
		reviewHandler:      reviewHandler,
		sseHandler:         sseHandler,
		cacheMiddleware:    cacheMiddleware,
		tokenParser:        tokenParser,
		doctorRepo:         doctorRepo,
		hospitalRepo:       hospitalRepo,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Category endpoints
	r.mux.HandleFunc("GET /api/categories", r.catalogHandler.ListCategories)
	r.mux.HandleFunc("GET /api/categories/{id}", r.catalogHandler.GetCategory)
	r.mux.HandleFunc("POST /api/categories", r.catalogHandler.CreateCategory)

	// Hospital endpoints
	r.mux.HandleFunc("GET /api/hospitals", r.catalogHandler.ListHospitals)
	r.mux.HandleFunc("GET /api/hospitals/{id}", r.catalogHandler.GetHospital)
	r.mux.HandleFunc("POST /api/hospitals", r.catalogHandler.CreateHospital)
	r.mux.HandleFunc("PATCH /api/hospitals/{id}", r.catalogHandler.UpdateHospital)

	// Doctor endpoints
	r.mux.HandleFunc("GET /api/doctors", r.catalogHandler.ListDoctors)
	r.mux.HandleFunc("GET /api/doctors/{id}", r.catalogHandler.GetDoctor)
	r.mux.HandleFunc("POST /api/doctors", r.catalogHandler.CreateDoctor)
	r.mux.HandleFunc("PATCH /api/doctors/{id}", r.catalogHandler.UpdateDoctor)
	r.mux.HandleFunc("GET /api/doctors/{id}/schedules", r.catalogHandler.ListSchedules)
	r.mux.HandleFunc("PUT /api/doctors/{id}/schedules/{hospitalId}", r.catalogHandler.UpsertSchedule)
	r.mux.HandleFunc("GET /api/doctors/{id}/reviews", r.reviewHandler.ListDoctorReviews)

	// Availability
	r.mux.HandleFunc("GET /api/hospitals/{hospitalId}/doctors/{doctorId}/slots", r.appointmentHandler.GetAvailableSlots)

	// Appointment endpoints
	r.mux.HandleFunc("POST /api/appointments", r.appointmentHandler.BookAppointment)
	r.mux.HandleFunc("GET /api/appointments", r.appointmentHandler.ListAppointments)
	r.mux.HandleFunc("GET /api/appointments/{id}", r.appointmentHandler.GetAppointment)
	r.mux.HandleFunc("POST /api/appointments/{id}/cancel", r.appointmentHandler.CancelAppointment)
	r.mux.HandleFunc("POST /api/appointments/{id}/complete", r.appointmentHandler.CompleteAppointment)

	// Review endpoints
	r.mux.HandleFunc("POST /api/appointments/{id}/review", r.reviewHandler.SubmitReview)
	r.mux.HandleFunc("POST /api/reviews/{id}/doctor-reply", r.reviewHandler.DoctorReply)
	r.mux.HandleFunc("POST /api/reviews/{id}/hospital-reply", r.reviewHandler.HospitalReply)
	r.mux.HandleFunc("POST /api/admin/ratings/recompute", r.reviewHandler.RecomputeRatings)

	// Real-time appointment feed
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/hospitals/{id}/appointments", r.sseHandler.StreamHospitalAppointments)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.InvalidateOnWrite(handler)
		handler = r.cacheMiddleware.Middleware(handler)
	}

	if r.doctorRepo != nil && r.hospitalRepo != nil {
		handler = loaders.Middleware(r.doctorRepo, r.hospitalRepo)(handler)
	}

	handler = middleware.AuthMiddleware(r.tokenParser)(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
