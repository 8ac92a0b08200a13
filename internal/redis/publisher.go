package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DimasBrahmantya/Simrs-Rawat-Jalan/internal/visit"
)

// AllClinicsChannel carries every visit event; ClinicChannel only one clinic's.
const AllClinicsChannel = "queue:events"

func ClinicChannel(clinicID uuid.UUID) string {
	return AllClinicsChannel + ":" + clinicID.String()
}

// EventBus fans visit events out over Redis pub/sub to display screens and
// announcers running on any replica.
type EventBus struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewEventBus(client *redis.Client, log zerolog.Logger) *EventBus {
	return &EventBus{
		client: client,
		log:    log.With().Str("component", "event_bus").Logger(),
	}
}

func (b *EventBus) Publish(ctx context.Context, ev visit.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Publish(ctx, ClinicChannel(ev.ClinicID), data)
	pipe.Publish(ctx, AllClinicsChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe streams events for one clinic, or all clinics when clinicID is
// nil, until ctx is done. The channel is closed on return.
func (b *EventBus) Subscribe(ctx context.Context, clinicID *uuid.UUID) (<-chan visit.Event, error) {
	channel := AllClinicsChannel
	if clinicID != nil {
		channel = ClinicChannel(*clinicID)
	}

	sub := b.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan visit.Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev visit.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
