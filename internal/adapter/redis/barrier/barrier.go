package barrier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
)

var _ secondary.Barrier = &RedisBarrier{}

const (
	keyPrefix  = "arbfn:barrier:"
	releaseMsg = "release"
)

// RedisBarrier is a one-shot rendezvous between processes that share a Redis
// instance. Each participant increments a counter; the last one publishes
// the release on the barrier channel.
type RedisBarrier struct {
	client  *redis.Client
	name    string
	parties int
	ttl     time.Duration
	logger  primary.Logger
}

func NewRedisBarrier(client *redis.Client, name string, parties int, ttl time.Duration, logger primary.Logger) (*RedisBarrier, error) {
	if parties < 1 {
		return nil, fmt.Errorf("barrier needs at least one participant, got %d", parties)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisBarrier{client: client, name: name, parties: parties, ttl: ttl, logger: logger}, nil
}

func (b *RedisBarrier) counterKey() string { return keyPrefix + b.name + ":count" }
func (b *RedisBarrier) releaseKey() string { return keyPrefix + b.name + ":released" }
func (b *RedisBarrier) channel() string    { return keyPrefix + b.name }

func (b *RedisBarrier) Wait(ctx context.Context) error {
	// subscribe before arriving so the release cannot be missed
	sub := b.client.Subscribe(ctx, b.channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to barrier %s: %w", b.name, err)
	}

	pipe := b.client.TxPipeline()
	incr := pipe.Incr(ctx, b.counterKey())
	pipe.Expire(ctx, b.counterKey(), b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enter barrier %s: %w", b.name, err)
	}

	arrived := incr.Val()
	b.logger.Debug("Entered barrier", "name", b.name, "arrived", arrived, "parties", b.parties)
	if arrived >= int64(b.parties) {
		if err := b.client.Set(ctx, b.releaseKey(), releaseMsg, b.ttl).Err(); err != nil {
			return fmt.Errorf("failed to release barrier %s: %w", b.name, err)
		}
		if err := b.client.Publish(ctx, b.channel(), releaseMsg).Err(); err != nil {
			return fmt.Errorf("failed to release barrier %s: %w", b.name, err)
		}
		return nil
	}

	// the release may have happened between SUBSCRIBE and INCR on another node
	if n, err := b.client.Exists(ctx, b.releaseKey()).Result(); err == nil && n > 0 {
		return nil
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("barrier %s: subscription closed", b.name)
			}
			if msg.Payload == releaseMsg {
				return nil
			}
		}
	}
}

// Reset clears arrivals and the release mark left by an earlier run under the same name.
func (b *RedisBarrier) Reset(ctx context.Context) error {
	return b.client.Del(ctx, b.counterKey(), b.releaseKey()).Err()
}
