//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospital-appointments/internal/adapters/events"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
)

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	channel := providers.GetHospitalChannel("hosp-redis-1")
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := eventBus.Subscribe(ctx1, channel)
	require.NoError(t, err)
	sub2, err := eventBus.Subscribe(ctx2, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	event := entities.NewAppointmentEvent(entities.AppointmentEventBooked, &entities.Appointment{
		ID:         "appt-redis-1",
		HospitalID: "hosp-redis-1",
		DoctorID:   "doc-1",
		UserID:     "user-1",
		Date:       entities.NewDate(2030, 1, 7),
		TimeSlot:   entities.MustTimeOfDay("09:20"),
		Status:     entities.AppointmentStatusScheduled,
	})

	require.NoError(t, eventBus.Publish(context.Background(), channel, event))

	received1 := waitForAppointmentEvent(t, sub1)
	received2 := waitForAppointmentEvent(t, sub2)

	assert.Equal(t, event.ID, received1.ID)
	assert.Equal(t, event.ID, received2.ID)
	assert.Equal(t, "09:20", received1.TimeSlot.String())
	assert.True(t, received1.Date.Equal(event.Date))
}

func waitForAppointmentEvent(t *testing.T, ch <-chan *entities.AppointmentEvent) *entities.AppointmentEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for appointment event")
		return nil
	}
}
