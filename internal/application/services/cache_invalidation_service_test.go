package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospital-appointments/internal/adapters/cache"
	"github.com/zatekoja/hospital-appointments/internal/adapters/events"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
)

func TestCacheInvalidationService(t *testing.T) {
	ctx := context.Background()
	lru, err := cache.NewLRUAdapter(64)
	require.NoError(t, err)
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	slotKey := services.SlotCacheKey("doc-1", "hosp-1", monday)
	otherKey := services.SlotCacheKey("doc-2", "hosp-1", monday)
	doctorPage := "http:cache:/api/doctors/doc-1:abc"
	require.NoError(t, lru.Set(ctx, slotKey, []byte(`[]`), 60))
	require.NoError(t, lru.Set(ctx, otherKey, []byte(`[]`), 60))
	require.NoError(t, lru.Set(ctx, doctorPage, []byte(`{}`), 60))

	svc := services.NewCacheInvalidationService(lru, bus)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	booked := entities.NewAppointmentEvent(entities.AppointmentEventBooked, scheduledAppointment())
	require.NoError(t, bus.Publish(ctx, providers.EventChannelAppointmentUpdates, booked))

	assert.Eventually(t, func() bool {
		exists, _ := lru.Exists(ctx, slotKey)
		return !exists
	}, time.Second, 10*time.Millisecond)
	exists, _ := lru.Exists(ctx, otherKey)
	assert.True(t, exists)

	reviewed := entities.NewAppointmentEvent(entities.AppointmentEventReviewed, completedAppointment())
	require.NoError(t, bus.Publish(ctx, providers.EventChannelAppointmentUpdates, reviewed))

	assert.Eventually(t, func() bool {
		exists, _ := lru.Exists(ctx, doctorPage)
		return !exists
	}, time.Second, 10*time.Millisecond)
}

func TestCacheInvalidationService_StopWithoutStart(t *testing.T) {
	lru, err := cache.NewLRUAdapter(1)
	require.NoError(t, err)
	svc := services.NewCacheInvalidationService(lru, events.NewMemoryEventBus())
	svc.Stop()
}
