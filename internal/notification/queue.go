// Package notification delivers complaint status changes to complainants.
// Events are queued in Redis and drained by a Dispatcher with its own retry
// policy, so delivery never affects the outcome of a transition.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"complaint-desk/internal/models"

	"github.com/redis/go-redis/v9"
)

// Keys names the Redis structures backing the queue.
type Keys struct {
	Ready      string // list, LPUSH in / BRPOP out
	Retry      string // sorted set scored by due time in unix millis
	DeadLetter string // list
}

func (k Keys) withDefaults() Keys {
	if k.Ready == "" {
		k.Ready = "complaint-desk:notifications"
	}
	if k.Retry == "" {
		k.Retry = k.Ready + ":retry"
	}
	if k.DeadLetter == "" {
		k.DeadLetter = k.Ready + ":dead"
	}
	return k
}

type Queue struct {
	rdb  *redis.Client
	keys Keys
}

func NewQueue(rdb *redis.Client, keys Keys) *Queue {
	return &Queue{rdb: rdb, keys: keys.withDefaults()}
}

func (q *Queue) Keys() Keys { return q.keys }

// Publish appends an event to the ready list.
func (q *Queue) Publish(ctx context.Context, ev models.NotificationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.keys.Ready, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the oldest ready event. It returns nil, nil
// when the wait expires.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*models.NotificationEvent, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.keys.Ready).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop event: %w", err)
	}
	// res is [key, value]
	var ev models.NotificationEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// Requeue returns an event to the consuming end of the ready list so it is
// the next one popped.
func (q *Queue) Requeue(ctx context.Context, ev models.NotificationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.keys.Ready, data).Err(); err != nil {
		return fmt.Errorf("requeue event: %w", err)
	}
	return nil
}

// ScheduleRetry parks an event until due.
func (q *Queue) ScheduleRetry(ctx context.Context, ev models.NotificationEvent, due time.Time) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = q.rdb.ZAdd(ctx, q.keys.Retry, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// PromoteDue moves retries whose due time has passed back onto the ready
// list. Only the caller whose ZREM succeeds re-queues a member, so concurrent
// dispatchers never duplicate an event.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.keys.Retry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("read due retries: %w", err)
	}

	promoted := 0
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.keys.Retry, m).Result()
		if err != nil {
			return promoted, fmt.Errorf("claim retry: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.keys.Ready, m).Err(); err != nil {
			return promoted, fmt.Errorf("requeue retry: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// DeadLetter records an event that exhausted its attempts.
func (q *Queue) DeadLetter(ctx context.Context, ev models.NotificationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.keys.DeadLetter, data).Err(); err != nil {
		return fmt.Errorf("dead-letter event: %w", err)
	}
	return nil
}

// DeadLetters lists dead-lettered events, newest first.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]models.NotificationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	raw, err := q.rdb.LRange(ctx, q.keys.DeadLetter, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}
	out := make([]models.NotificationEvent, 0, len(raw))
	for _, r := range raw {
		var ev models.NotificationEvent
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
