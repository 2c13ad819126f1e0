package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

const slotCacheName = "slots"

// GenerateSlots splits [start, end) into consecutive slots of widthMinutes.
// A trailing partial slot is discarded, so the result holds exactly
// floor((end-start)/width) entries.
func GenerateSlots(start, end entities.TimeOfDay, widthMinutes int) []entities.TimeOfDay {
	if widthMinutes <= 0 || end <= start {
		return []entities.TimeOfDay{}
	}

	slots := make([]entities.TimeOfDay, 0, (end.Minutes()-start.Minutes())/widthMinutes)
	for slot := start; slot.Add(widthMinutes) <= end; slot = slot.Add(widthMinutes) {
		slots = append(slots, slot)
	}
	return slots
}

// SlotCacheKey is the cache key of the free slots of a doctor at a hospital on a date
func SlotCacheKey(doctorID, hospitalID string, date entities.Date) string {
	return fmt.Sprintf("slots:%s:%s:%s", doctorID, hospitalID, date)
}

func slotPairPattern(doctorID, hospitalID string) string {
	return fmt.Sprintf("slots:%s:%s:*", doctorID, hospitalID)
}

// SlotServiceOptions tunes slot caching and time handling
type SlotServiceOptions struct {
	CacheTTLSeconds int
	Location        *time.Location
	Now             Clock
	Metrics         *observability.Metrics
}

// SlotService computes bookable slots from weekly schedules and existing bookings
type SlotService struct {
	doctors      repositories.DoctorRepository
	hospitals    repositories.HospitalRepository
	schedules    repositories.ScheduleRepository
	appointments repositories.AppointmentRepository
	cache        providers.CacheProvider
	ttl          int
	loc          *time.Location
	now          Clock
	metrics      *observability.Metrics

	// generations counts invalidations per doctor/hospital pair so a free
	// list computed before an invalidation is never written back.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewSlotService creates a new slot service. cache may be nil.
func NewSlotService(
	doctors repositories.DoctorRepository,
	hospitals repositories.HospitalRepository,
	schedules repositories.ScheduleRepository,
	appointments repositories.AppointmentRepository,
	cache providers.CacheProvider,
	opts SlotServiceOptions,
) *SlotService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SlotService{
		doctors:      doctors,
		hospitals:    hospitals,
		schedules:    schedules,
		appointments: appointments,
		cache:        cache,
		ttl:          opts.CacheTTLSeconds,
		loc:          opts.Location,
		now:          opts.Now,
		metrics:      opts.Metrics,
		generations:  make(map[string]uint64),
	}
}

// Location returns the time zone slot times are expressed in
func (s *SlotService) Location() *time.Location {
	return s.loc
}

// OfferedSlots returns every slot the doctor's schedule at the hospital
// generates on date, ignoring bookings. Unknown doctor or hospital is NotFound;
// a missing or non-covering schedule yields an empty list.
func (s *SlotService) OfferedSlots(ctx context.Context, hospitalID, doctorID string, date entities.Date) ([]entities.TimeOfDay, error) {
	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.hospitals.GetByID(ctx, hospitalID); err != nil {
		return nil, err
	}

	schedule, err := s.schedules.GetByDoctorAndHospital(ctx, doctorID, hospitalID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return []entities.TimeOfDay{}, nil
		}
		return nil, err
	}
	if !schedule.Covers(date) {
		return []entities.TimeOfDay{}, nil
	}

	return GenerateSlots(schedule.StartTime, schedule.EndTime, doctor.AvgTimePerPatient), nil
}

// AvailableSlots returns the offered slots on date that are neither booked
// nor already started.
func (s *SlotService) AvailableSlots(ctx context.Context, hospitalID, doctorID string, date entities.Date) ([]entities.TimeOfDay, error) {
	free, ok := s.cachedFree(ctx, doctorID, hospitalID, date)
	if !ok {
		generation := s.generation(doctorID, hospitalID)

		offered, err := s.OfferedSlots(ctx, hospitalID, doctorID, date)
		if err != nil {
			return nil, err
		}

		booked := []entities.TimeOfDay{}
		if len(offered) > 0 {
			booked, err = s.appointments.ListBookedSlots(ctx, doctorID, hospitalID, date)
			if err != nil {
				return nil, err
			}
		}

		free = subtractSlots(offered, booked)
		if s.generation(doctorID, hospitalID) == generation {
			s.storeFree(ctx, doctorID, hospitalID, date, free)
		}
	}

	return s.dropStarted(date, free), nil
}

// InvalidateSlots drops the cached free slots of one date
func (s *SlotService) InvalidateSlots(ctx context.Context, doctorID, hospitalID string, date entities.Date) {
	s.bumpGeneration(doctorID, hospitalID)
	if s.cache == nil {
		return
	}
	key := SlotCacheKey(doctorID, hospitalID, date)
	if err := s.cache.Delete(ctx, key); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to invalidate slot cache")
	}
}

// InvalidatePair drops every cached date of a doctor at a hospital
func (s *SlotService) InvalidatePair(ctx context.Context, doctorID, hospitalID string) {
	s.bumpGeneration(doctorID, hospitalID)
	if s.cache == nil {
		return
	}
	pattern := slotPairPattern(doctorID, hospitalID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("pattern", pattern).Msg("failed to invalidate slot cache")
	}
}

func (s *SlotService) generation(doctorID, hospitalID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[doctorID+"|"+hospitalID]
}

func (s *SlotService) bumpGeneration(doctorID, hospitalID string) {
	s.genMu.Lock()
	s.generations[doctorID+"|"+hospitalID]++
	s.genMu.Unlock()
}

func (s *SlotService) cachedFree(ctx context.Context, doctorID, hospitalID string, date entities.Date) ([]entities.TimeOfDay, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}

	data, err := s.cache.Get(ctx, SlotCacheKey(doctorID, hospitalID, date))
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Debug().Err(err).Msg("slot cache read failed")
		}
		observability.RecordCacheMiss(ctx, s.metrics, slotCacheName)
		return nil, false
	}

	var free []entities.TimeOfDay
	if err := json.Unmarshal(data, &free); err != nil {
		observability.RecordCacheMiss(ctx, s.metrics, slotCacheName)
		return nil, false
	}
	observability.RecordCacheHit(ctx, s.metrics, slotCacheName)
	return free, true
}

func (s *SlotService) storeFree(ctx context.Context, doctorID, hospitalID string, date entities.Date, free []entities.TimeOfDay) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	data, err := json.Marshal(free)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, SlotCacheKey(doctorID, hospitalID, date), data, s.ttl); err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("slot cache write failed")
	}
}

func (s *SlotService) dropStarted(date entities.Date, slots []entities.TimeOfDay) []entities.TimeOfDay {
	now := s.now()
	out := make([]entities.TimeOfDay, 0, len(slots))
	for _, slot := range slots {
		if date.At(slot, s.loc).After(now) {
			out = append(out, slot)
		}
	}
	return out
}

func subtractSlots(offered, booked []entities.TimeOfDay) []entities.TimeOfDay {
	taken := make(map[entities.TimeOfDay]struct{}, len(booked))
	for _, slot := range booked {
		taken[slot] = struct{}{}
	}
	free := make([]entities.TimeOfDay, 0, len(offered))
	for _, slot := range offered {
		if _, ok := taken[slot]; !ok {
			free = append(free, slot)
		}
	}
	return free
}

func containsSlot(slots []entities.TimeOfDay, slot entities.TimeOfDay) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
