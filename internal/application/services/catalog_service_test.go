package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospital-appointments/internal/adapters/cache"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

type catalogFixture struct {
	*slotFixture
	categories *MockCategoryRepository
	search     *MockDoctorSearchRepository
}

func newCatalogFixture() *catalogFixture {
	return &catalogFixture{
		slotFixture: newSlotFixture(),
		categories:  new(MockCategoryRepository),
		search:      new(MockDoctorSearchRepository),
	}
}

func (f *catalogFixture) service(slots *services.SlotService) *services.CatalogService {
	indexer := services.NewDoctorIndexer(f.doctors, f.schedules, f.search)
	return services.NewCatalogService(f.categories, f.hospitals, f.doctors, f.schedules, f.search, indexer, slots)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCatalogService_ListDoctors(t *testing.T) {
	ctx := context.Background()
	a := &entities.Doctor{ID: "a", Name: "Dr. A"}
	b := &entities.Doctor{ID: "b", Name: "Dr. B"}
	c := &entities.Doctor{ID: "c", Name: "Dr. C"}

	t.Run("search results keep relevance order", func(t *testing.T) {
		f := newCatalogFixture()
		filter := repositories.DoctorFilter{Query: "cardio"}
		f.search.On("Search", mock.Anything, filter).Return([]string{"c", "a", "gone"}, nil)
		f.doctors.On("GetByIDs", mock.Anything, []string{"c", "a", "gone"}).Return([]*entities.Doctor{a, c}, nil)

		doctors, err := f.service(nil).ListDoctors(ctx, repositories.DoctorFilter{Query: "  cardio "})

		require.NoError(t, err)
		assert.Equal(t, []*entities.Doctor{c, a}, doctors)
	})

	t.Run("search failure falls back to the database", func(t *testing.T) {
		f := newCatalogFixture()
		filter := repositories.DoctorFilter{Query: "cardio", CategoryID: "cat-1"}
		f.search.On("Search", mock.Anything, filter).Return(nil, errors.New("typesense unavailable"))
		f.doctors.On("List", mock.Anything, filter).Return([]*entities.Doctor{b}, nil)

		doctors, err := f.service(nil).ListDoctors(ctx, filter)

		require.NoError(t, err)
		assert.Equal(t, []*entities.Doctor{b}, doctors)
	})

	t.Run("no query reads the database", func(t *testing.T) {
		f := newCatalogFixture()
		filter := repositories.DoctorFilter{HospitalID: "hosp-1"}
		f.doctors.On("List", mock.Anything, filter).Return([]*entities.Doctor{a, b}, nil)

		doctors, err := f.service(nil).ListDoctors(ctx, filter)

		require.NoError(t, err)
		assert.Len(t, doctors, 2)
		f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})
}

func TestCatalogService_UpsertSchedule(t *testing.T) {
	ctx := context.Background()
	valid := services.ScheduleInput{StartTime: "09:00", EndTime: "12:00", Weekdays: []time.Weekday{time.Monday, time.Wednesday}}

	t.Run("stores schedule, drops cached slots and reindexes", func(t *testing.T) {
		f := newCatalogFixture()
		f.schedules.On("Upsert", mock.Anything, mock.AnythingOfType("*entities.DoctorHospitalSchedule")).Return(nil)
		f.schedules.On("ListByDoctor", mock.Anything, "doc-1").
			Return([]*entities.DoctorHospitalSchedule{{DoctorID: "doc-1", HospitalID: "hosp-1"}}, nil)
		f.search.On("Index", mock.Anything, mock.Anything, []string{"hosp-1"}).Return(nil)

		lru, err := cache.NewLRUAdapter(16)
		require.NoError(t, err)
		key := services.SlotCacheKey("doc-1", "hosp-1", monday)
		require.NoError(t, lru.Set(ctx, key, []byte(`["09:00"]`), 60))

		slots := f.slotFixture.service(lru, bookingTime)
		schedule, err := f.service(slots).UpsertSchedule(ctx, hospAdmin, "doc-1", "hosp-1", valid)

		require.NoError(t, err)
		assert.Equal(t, tod("09:00"), schedule.StartTime)
		assert.Equal(t, tod("12:00"), schedule.EndTime)
		exists, _ := lru.Exists(ctx, key)
		assert.False(t, exists)
		f.search.AssertExpectations(t)
	})

	t.Run("window must be ordered", func(t *testing.T) {
		f := newCatalogFixture()
		input := valid
		input.StartTime, input.EndTime = "12:00", "09:00"

		_, err := f.service(nil).UpsertSchedule(ctx, superAdmin, "doc-1", "hosp-1", input)

		assertAppError(t, err, apperrors.ErrorTypeValidation, "")
	})

	t.Run("weekdays must be valid", func(t *testing.T) {
		for _, days := range [][]time.Weekday{nil, {time.Weekday(7)}, {time.Monday, time.Monday}} {
			f := newCatalogFixture()
			input := valid
			input.Weekdays = days

			_, err := f.service(nil).UpsertSchedule(ctx, superAdmin, "doc-1", "hosp-1", input)

			assertAppError(t, err, apperrors.ErrorTypeValidation, "")
		}
	})

	t.Run("admin of another hospital is forbidden", func(t *testing.T) {
		f := newCatalogFixture()

		_, err := f.service(nil).UpsertSchedule(ctx, otherAdmin, "doc-1", "hosp-1", valid)

		assertAppError(t, err, apperrors.ErrorTypeUnauthorized, apperrors.CodeForbidden)
		f.schedules.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestCatalogService_Doctors(t *testing.T) {
	ctx := context.Background()

	t.Run("creates doctor in a known category", func(t *testing.T) {
		f := newCatalogFixture()
		f.categories.On("GetByID", mock.Anything, "cat-1").Return(&entities.Category{ID: "cat-1", Name: "Cardiology"}, nil)
		f.doctors.On("Create", mock.Anything, mock.AnythingOfType("*entities.Doctor")).Return(nil)
		f.schedules.On("ListByDoctor", mock.Anything, mock.Anything).Return([]*entities.DoctorHospitalSchedule{}, nil)
		f.search.On("Index", mock.Anything, mock.Anything, []string{}).Return(nil)

		doctor, err := f.service(nil).CreateDoctor(ctx, hospAdmin, services.DoctorInput{
			Name:              strPtr("Dr. Ada"),
			CategoryID:        strPtr("cat-1"),
			AvgTimePerPatient: intPtr(20),
		})

		require.NoError(t, err)
		assert.NotEmpty(t, doctor.ID)
		assert.Equal(t, 20, doctor.AvgTimePerPatient)
		assert.Zero(t, doctor.AvgRating)
	})

	t.Run("avg time per patient is bounded", func(t *testing.T) {
		for _, minutes := range []int{0, -5, entities.MaxAvgTimePerPatient + 1} {
			f := newCatalogFixture()

			_, err := f.service(nil).CreateDoctor(ctx, superAdmin, services.DoctorInput{
				Name:              strPtr("Dr. Ada"),
				CategoryID:        strPtr("cat-1"),
				AvgTimePerPatient: intPtr(minutes),
			})

			assertAppError(t, err, apperrors.ErrorTypeValidation, "")
		}
	})

	t.Run("patients cannot manage doctors", func(t *testing.T) {
		f := newCatalogFixture()

		_, err := f.service(nil).UpdateDoctor(ctx, patient, "doc-1", services.DoctorInput{Name: strPtr("x")})

		assertAppError(t, err, apperrors.ErrorTypeUnauthorized, apperrors.CodeForbidden)
	})
}

func TestCatalogService_Hospitals(t *testing.T) {
	ctx := context.Background()

	t.Run("only super admin creates", func(t *testing.T) {
		f := newCatalogFixture()

		_, err := f.service(nil).CreateHospital(ctx, hospAdmin, services.HospitalInput{Name: strPtr("General")})

		assertAppError(t, err, apperrors.ErrorTypeUnauthorized, apperrors.CodeForbidden)
	})

	t.Run("admin updates own hospital", func(t *testing.T) {
		f := newCatalogFixture()
		f.hospitals.On("Update", mock.Anything, mock.AnythingOfType("*entities.Hospital")).Return(nil)

		hospital, err := f.service(nil).UpdateHospital(ctx, hospAdmin, "hosp-1", services.HospitalInput{City: strPtr(" Lagos ")})

		require.NoError(t, err)
		assert.Equal(t, "Lagos", hospital.City)
		assert.Equal(t, "General", hospital.Name)
	})

	t.Run("admin cannot update another hospital", func(t *testing.T) {
		f := newCatalogFixture()

		_, err := f.service(nil).UpdateHospital(ctx, otherAdmin, "hosp-1", services.HospitalInput{City: strPtr("Abuja")})

		assertAppError(t, err, apperrors.ErrorTypeUnauthorized, apperrors.CodeForbidden)
	})

	t.Run("invalid email is rejected", func(t *testing.T) {
		f := newCatalogFixture()

		_, err := f.service(nil).CreateHospital(ctx, superAdmin, services.HospitalInput{
			Name:  strPtr("General"),
			Email: strPtr("not-an-email"),
		})

		assertAppError(t, err, apperrors.ErrorTypeValidation, "")
	})
}
