package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelGalleryUpdate = "gallery:update"

// Publisher is what producers (delete handler, generation worker) hold.
type Publisher interface {
	Publish(ctx context.Context, event GalleryUpdate) error
}

// RedisBridge carries gallery updates across processes. Producers publish to
// the Redis channel only; local subscribers receive events through Run's
// relay onto the in-process bus. The one-way flow means a bridge never
// re-broadcasts what it just relayed.
type RedisBridge struct {
	client *redis.Client
	bus    *Bus
	log    zerolog.Logger
}

func NewRedisBridge(client *redis.Client, bus *Bus, log zerolog.Logger) *RedisBridge {
	return &RedisBridge{
		client: client,
		bus:    bus,
		log:    log,
	}
}

func (b *RedisBridge) Publish(ctx context.Context, event GalleryUpdate) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal gallery update: %w", err)
	}
	if err := b.client.Publish(ctx, channelGalleryUpdate, payload).Err(); err != nil {
		return fmt.Errorf("publish gallery update: %w", err)
	}
	return nil
}

// Run relays Redis messages onto the local bus until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	if b.bus == nil {
		return fmt.Errorf("redis bridge: no local bus to relay to")
	}

	pubsub := b.client.Subscribe(ctx, channelGalleryUpdate)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis bridge: subscription closed")
			}
			var event GalleryUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn().Err(err).Str("payload", msg.Payload).Msg("bad gallery update payload")
				continue
			}
			b.bus.Publish(event)
		}
	}
}
