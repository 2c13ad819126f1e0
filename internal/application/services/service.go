package services

import (
	"context"
	"time"

	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

func requirePrincipal(principal *entities.Principal) error {
	if principal == nil || principal.UserID == "" {
		return apperrors.NewUnauthorizedError("authentication required").WithCode(apperrors.CodeUnauthenticated)
	}
	return nil
}

// publishAppointmentEvent fans an event out to the global and hospital
// channels. Publishing is best effort and never fails the caller.
func publishAppointmentEvent(ctx context.Context, bus providers.EventBus, event *entities.AppointmentEvent) {
	if bus == nil || event == nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)
	for _, channel := range []string{
		providers.EventChannelAppointmentUpdates,
		providers.GetHospitalChannel(event.HospitalID),
	} {
		if err := bus.Publish(ctx, channel, event); err != nil {
			logger.Warn().Err(err).Str("channel", channel).Str("event_type", string(event.Type)).Msg("failed to publish appointment event")
		}
	}
}
