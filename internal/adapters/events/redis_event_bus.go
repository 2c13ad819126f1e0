package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
	redisclient "github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/redis"
)

// redisChannel is one Redis subscription fanned out to local subscribers
type redisChannel struct {
	pubsub      *redis.PubSub
	subscribers map[chan *entities.AppointmentEvent]struct{}
}

// RedisEventBus implements the EventBus interface using Redis Pub/Sub. Each
// channel holds a single Redis subscription while it has local subscribers.
type RedisEventBus struct {
	client   *redisclient.Client
	channels map[string]*redisChannel
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		channels: make(map[string]*redisChannel),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish publishes an event to all subscribers of channel across instances
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("event_id", event.ID).
		Str("type", string(event.Type)).
		Str("appointment_id", event.AppointmentID).
		Msg("Published appointment event")
	return nil
}

// Subscribe subscribes to events on a channel until ctx is done
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	eventChan := make(chan *entities.AppointmentEvent, subscriberBuffer)

	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		close(eventChan)
		return eventChan, nil
	}

	rc, exists := b.channels[channel]
	if !exists {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		rc = &redisChannel{
			pubsub:      pubsub,
			subscribers: make(map[chan *entities.AppointmentEvent]struct{}),
		}
		b.channels[channel] = rc
		go b.receive(channel, rc)
	}
	rc.subscribers[eventChan] = struct{}{}
	count := len(rc.subscribers)
	b.mu.Unlock()

	log.Debug().Str("channel", channel).Int("subscribers", count).Msg("Subscribed to channel")

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.removeSubscriber(channel, rc, eventChan)
	}()

	return eventChan, nil
}

// receive decodes messages of one Redis subscription and fans them out
func (b *RedisEventBus) receive(channel string, rc *redisChannel) {
	defer b.release(channel, rc)

	messages := rc.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.AppointmentEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("Failed to unmarshal appointment event")
				continue
			}

			b.mu.RLock()
			for subscriber := range rc.subscribers {
				select {
				case subscriber <- &event:
				default:
					log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("Subscriber channel full, skipping event")
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, rc *redisChannel, eventChan chan *entities.AppointmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := rc.subscribers[eventChan]; !ok {
		return
	}
	delete(rc.subscribers, eventChan)
	close(eventChan)

	if len(rc.subscribers) == 0 && b.channels[channel] == rc {
		delete(b.channels, channel)
		if err := rc.pubsub.Close(); err != nil {
			log.Debug().Err(err).Str("channel", channel).Msg("Failed to close subscription")
		}
	}
}

// release closes every subscriber still attached to rc. A newer subscription
// registered under the same channel name is left alone.
func (b *RedisEventBus) release(channel string, rc *redisChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range rc.subscribers {
		close(subscriber)
		delete(rc.subscribers, subscriber)
	}
	if b.channels[channel] == rc {
		delete(b.channels, channel)
	}
	_ = rc.pubsub.Close()
}

// Unsubscribe drops every local subscriber of a channel
func (b *RedisEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.RLock()
	rc, exists := b.channels[channel]
	b.mu.RUnlock()
	if !exists {
		return nil
	}

	if err := rc.pubsub.Unsubscribe(ctx, channel); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("failed to unsubscribe %s: %w", channel, err)
	}
	b.release(channel, rc)

	log.Debug().Str("channel", channel).Msg("Unsubscribed from channel")
	return nil
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	channels := b.channels
	b.channels = make(map[string]*redisChannel)
	b.mu.Unlock()

	var errs []error
	for channel, rc := range channels {
		if err := rc.pubsub.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, fmt.Errorf("close subscription %s: %w", channel, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Info().Msg("Event bus closed")
	return nil
}
