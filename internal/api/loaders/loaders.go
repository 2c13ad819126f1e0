package loaders

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the per-request batched loaders used to attach doctor and
// hospital summaries to appointment views
type Loaders struct {
	DoctorLoader   *dataloader.Loader[string, *entities.Doctor]
	HospitalLoader *dataloader.Loader[string, *entities.Hospital]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(doctorRepo repositories.DoctorRepository, hospitalRepo repositories.HospitalRepository) *Loaders {
	return &Loaders{
		DoctorLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Doctor] {
			results := make([]*dataloader.Result[*entities.Doctor], len(keys))
			doctors, err := doctorRepo.GetByIDs(ctx, keys)

			doctorMap := make(map[string]*entities.Doctor)
			if err == nil {
				for _, d := range doctors {
					doctorMap[d.ID] = d
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.Doctor]{Error: err}
				} else if d, ok := doctorMap[key]; ok {
					results[i] = &dataloader.Result[*entities.Doctor]{Data: d}
				} else {
					results[i] = &dataloader.Result[*entities.Doctor]{Error: fmt.Errorf("doctor %s not found", key)}
				}
			}
			return results
		}, dataloader.WithWait[string, *entities.Doctor](2*time.Millisecond)),
		HospitalLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.Hospital] {
			results := make([]*dataloader.Result[*entities.Hospital], len(keys))
			hospitals, err := hospitalRepo.GetByIDs(ctx, keys)

			hospitalMap := make(map[string]*entities.Hospital)
			if err == nil {
				for _, h := range hospitals {
					hospitalMap[h.ID] = h
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.Hospital]{Error: err}
				} else if h, ok := hospitalMap[key]; ok {
					results[i] = &dataloader.Result[*entities.Hospital]{Data: h}
				} else {
					results[i] = &dataloader.Result[*entities.Hospital]{Error: fmt.Errorf("hospital %s not found", key)}
				}
			}
			return results
		}, dataloader.WithWait[string, *entities.Hospital](2*time.Millisecond)),
	}
}

// For returns the loaders for a given context, or nil when none are attached
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches a fresh set of loaders to every request so cached
// entries never outlive it
func Middleware(doctorRepo repositories.DoctorRepository, hospitalRepo repositories.HospitalRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(doctorRepo, hospitalRepo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AppointmentViews joins appointments with doctor and hospital names. Lookups
// that fail leave the name empty rather than failing the listing.
func AppointmentViews(ctx context.Context, appointments []*entities.Appointment) []*entities.AppointmentView {
	views := make([]*entities.AppointmentView, len(appointments))
	loaders := For(ctx)
	if loaders == nil {
		for i, a := range appointments {
			views[i] = &entities.AppointmentView{Appointment: a}
		}
		return views
	}

	doctorThunks := make([]dataloader.Thunk[*entities.Doctor], len(appointments))
	hospitalThunks := make([]dataloader.Thunk[*entities.Hospital], len(appointments))
	for i, a := range appointments {
		doctorThunks[i] = loaders.DoctorLoader.Load(ctx, a.DoctorID)
		hospitalThunks[i] = loaders.HospitalLoader.Load(ctx, a.HospitalID)
	}

	logger := observability.LoggerFromContext(ctx)
	for i, a := range appointments {
		view := &entities.AppointmentView{Appointment: a}
		if doctor, err := doctorThunks[i](); err == nil {
			view.DoctorName = doctor.Name
		} else {
			logger.Debug().Err(err).Str("doctor_id", a.DoctorID).Msg("doctor lookup failed")
		}
		if hospital, err := hospitalThunks[i](); err == nil {
			view.HospitalName = hospital.Name
		} else {
			logger.Debug().Err(err).Str("hospital_id", a.HospitalID).Msg("hospital lookup failed")
		}
		views[i] = view
	}
	return views
}
