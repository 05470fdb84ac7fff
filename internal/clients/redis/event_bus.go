// Package redis carries stage events across processes over a pub/sub
// channel, so every instance's SSE hub sees transitions committed by any
// of them.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/docflow-backend/internal/events"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

type EventBus struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

// NewEventBus connects to REDIS_ADDR, publishing on REDIS_CHANNEL
// (default "stage-events"). Missing address is an error; the caller
// decides whether to run without a bus.
func NewEventBus(log *logger.Logger) (*EventBus, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "stage-events"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &EventBus{
		log:     log.With("component", "RedisEventBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

// Publish implements events.Publisher. Delivery is best effort; a redis
// hiccup is logged, never surfaced to the committing transaction.
func (b *EventBus) Publish(ev events.StageEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn("stage event marshal failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.log.Warn("stage event publish failed", "document_id", ev.DocumentID, "error", err)
	}
}

// StartForwarder subscribes and hands every inbound event to onEvent
// until ctx is cancelled.
func (b *EventBus) StartForwarder(ctx context.Context, onEvent func(ev events.StageEvent)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev events.StageEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad stage event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *EventBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

var _ events.Publisher = (*EventBus)(nil)
