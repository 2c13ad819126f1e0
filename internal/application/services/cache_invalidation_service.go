package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
)

// CacheInvalidationService drops cached slot lists and HTTP responses when
// appointment events arrive from other instances.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelAppointmentUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to appointment updates: %w", err)
	}

	s.started = true
	go s.processEvents(eventChan)
	log.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service and waits for the loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	if s.started {
		<-s.done
	}
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.AppointmentEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.AppointmentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := log.With().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("doctor_id", event.DoctorID).
		Logger()

	switch event.Type {
	case entities.AppointmentEventBooked, entities.AppointmentEventCancelled:
		key := SlotCacheKey(event.DoctorID, event.HospitalID, event.Date)
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate slot cache")
		}
	case entities.AppointmentEventReviewed:
		doctorPattern := fmt.Sprintf("http:cache:*doctors/%s*", event.DoctorID)
		if err := s.cache.DeletePattern(ctx, doctorPattern); err != nil {
			logger.Warn().Err(err).Str("pattern", doctorPattern).Msg("failed to invalidate http cache")
		}
		if err := s.cache.DeletePattern(ctx, "http:cache:/api/doctors:*"); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate doctor list cache")
		}
	default:
		return
	}

	logger.Debug().Msg("cache invalidated for appointment event")
}
