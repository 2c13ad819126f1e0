package repositories

import (
	"context"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
)

// CategoryRepository defines the interface for category data operations
type CategoryRepository interface {
	Create(ctx context.Context, category *entities.Category) error
	GetByID(ctx context.Context, id string) (*entities.Category, error)
	List(ctx context.Context) ([]*entities.Category, error)
}

// HospitalRepository defines the interface for hospital data operations
type HospitalRepository interface {
	// Create creates a new hospital
	Create(ctx context.Context, hospital *entities.Hospital) error

	// GetByID retrieves a hospital by ID
	GetByID(ctx context.Context, id string) (*entities.Hospital, error)

	// GetByIDs retrieves multiple hospitals by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Hospital, error)

	// Update updates a hospital
	Update(ctx context.Context, hospital *entities.Hospital) error

	// List retrieves hospitals with filters
	List(ctx context.Context, filter HospitalFilter) ([]*entities.Hospital, error)
}

// HospitalFilter defines filters for listing hospitals
type HospitalFilter struct {
	City     string
	IsActive *bool
	Limit    int
	Offset   int
}

// DoctorRepository defines the interface for doctor data operations
type DoctorRepository interface {
	// Create creates a new doctor
	Create(ctx context.Context, doctor *entities.Doctor) error

	// GetByID retrieves a doctor by ID
	GetByID(ctx context.Context, id string) (*entities.Doctor, error)

	// GetByIDs retrieves multiple doctors by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Doctor, error)

	// Update updates the editable profile fields of a doctor
	Update(ctx context.Context, doctor *entities.Doctor) error

	// UpdateRating writes the derived rating aggregate
	UpdateRating(ctx context.Context, summary entities.RatingSummary) error

	// List retrieves doctors with filters
	List(ctx context.Context, filter DoctorFilter) ([]*entities.Doctor, error)

	// ListIDs returns every doctor id, used by maintenance sweeps
	ListIDs(ctx context.Context) ([]string, error)
}

// DoctorFilter defines filters for listing doctors. Query matches name and title.
type DoctorFilter struct {
	CategoryID string
	HospitalID string
	Query      string
	Limit      int
	Offset     int
}

// DoctorSearchRepository defines the interface for doctor search operations (e.g. Typesense)
type DoctorSearchRepository interface {
	// Search returns matching doctor ids ordered by relevance
	Search(ctx context.Context, filter DoctorFilter) ([]string, error)

	// Index indexes a doctor together with the hospitals it is scheduled at
	Index(ctx context.Context, doctor *entities.Doctor, hospitalIDs []string) error

	// Delete removes a doctor from the index
	Delete(ctx context.Context, id string) error
}

// ScheduleRepository holds the weekly availability of doctors per hospital
type ScheduleRepository interface {
	// Upsert creates or replaces the schedule of a (doctor, hospital) pair
	Upsert(ctx context.Context, schedule *entities.DoctorHospitalSchedule) error

	// GetByDoctorAndHospital returns the schedule of a pair, NotFound when absent
	GetByDoctorAndHospital(ctx context.Context, doctorID, hospitalID string) (*entities.DoctorHospitalSchedule, error)

	// ListByDoctor returns every schedule held by a doctor
	ListByDoctor(ctx context.Context, doctorID string) ([]*entities.DoctorHospitalSchedule, error)
}
