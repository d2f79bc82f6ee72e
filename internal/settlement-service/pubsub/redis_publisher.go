package pubsub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/headsup-settlement/pkg/contracts/events"
)

const ChannelWagerEvents = "wager_events_broadcast"

// RedisBroadcaster repassa os eventos de domínio para o canal lido pelo hub de WebSocket
type RedisBroadcaster struct {
	r       *redis.Client
	channel string
}

func NewRedisBroadcaster(r *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = ChannelWagerEvents
	}
	return &RedisBroadcaster{r: r, channel: channel}
}

// Publish implementa engine.Publisher
func (b *RedisBroadcaster) Publish(ctx context.Context, e events.Envelope) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, b.channel, payload).Err()
}
