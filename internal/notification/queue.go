package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey is the Redis list holding pending events.
const DefaultQueueKey = "notifications:v1:outbox"

// Queue pushes events onto a Redis list for the Dispatcher to deliver.
type Queue struct {
	cache *redis.Client
	key   string
}

// NewQueue builds a queue on key, or DefaultQueueKey when key is empty.
func NewQueue(cache *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{cache: cache, key: key}
}

// Notify enqueues the event.
func (q *Queue) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := q.cache.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}
	return nil
}

// Len reports the number of pending events.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.cache.LLen(ctx, q.key).Result()
}

// Dispatcher drains the queue and delivers each event through a Sender.
type Dispatcher struct {
	cache   *redis.Client
	key     string
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
}

// NewDispatcher builds a dispatcher reading the same key as q.
func NewDispatcher(q *Queue, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{cache: q.cache, key: q.key, sender: sender, logger: logger, timeout: 2 * time.Second}
}

// Run delivers events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.DeliverOne(ctx); err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			d.logger.Warn("notification dispatch failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// DeliverOne waits briefly for one event and sends it. It returns redis.Nil
// when the queue stayed empty. Undecodable payloads are dropped.
func (d *Dispatcher) DeliverOne(ctx context.Context) (bool, error) {
	res, err := d.cache.BRPop(ctx, d.timeout, d.key).Result()
	if err != nil {
		return false, err
	}
	var event Event
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		d.logger.Error("dropping malformed notification", slog.Any("error", err))
		return false, nil
	}
	if err := d.sender.Send(ctx, Render(event)); err != nil {
		return false, fmt.Errorf("send %s to %s: %w", event.Kind, event.Phone, err)
	}
	return true, nil
}
