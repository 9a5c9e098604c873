package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel the notification worker subscribes to.
// Events carry their match ID in the payload, so one channel fans out to all
// matches; each subscribing process relays only to its local connections.
const Channel = "match_events"

// RedisPublisher publishes events to the match_events channel. It is the
// queue handoff between the orchestrator's commit path and websocket fan-out.
type RedisPublisher struct {
	rdb *redis.Client
	ctx context.Context
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		rdb: rdb,
		ctx: context.Background(),
	}
}

func (p *RedisPublisher) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(p.ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
