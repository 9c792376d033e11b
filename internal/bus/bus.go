// Package bus wraps Redis as "the Bus": a single connection that serves
// both as a shared cache (single-slot and TTL'd keys) and as a durable,
// bounded message queue (streams with consumer groups) per spec §2/§6/§9.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Bus is a thin, typed wrapper over a redis.Client.
type Bus struct {
	client *redis.Client
}

// New dials Redis at the given URL (e.g. "redis://localhost:6379/0") and
// verifies connectivity.
func New(url string) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("bus: invalid URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bus: failed to connect: %w", err)
	}

	return &Bus{client: client}, nil
}

// Close closes the underlying Redis connection.
func (b *Bus) Close() error {
	return b.client.Close()
}

// Ping verifies the Redis connection is alive, used by the /readyz probe.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Raw exposes the underlying client for callers that need Redis features
// this wrapper doesn't surface (e.g. pipelines in tests).
func (b *Bus) Raw() *redis.Client {
	return b.client
}

// Set JSON-encodes value and stores it under key with the given TTL
// (ttl <= 0 means no expiry).
func (b *Bus) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("bus: marshal %s: %w", key, err)
	}
	return b.client.Set(ctx, key, payload, ttl).Err()
}

// Get decodes the JSON value stored at key into dest. Returns
// redis.Nil-wrapped error when the key is absent — callers should use
// errors.Is(err, redis.Nil) or the IsMiss helper.
func (b *Bus) Get(ctx context.Context, key string, dest interface{}) error {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// IsMiss reports whether err represents a cache miss (key not found).
func IsMiss(err error) bool {
	return err == redis.Nil
}

// Delete removes one or more keys.
func (b *Bus) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return b.client.Del(ctx, keys...).Err()
}

// MGet performs a paginated multi-get, batching into chunks of at most
// batchSize keys per round trip (spec §4.4: "paginated multi-get of up to
// 1 000 keys per call").
func (b *Bus) MGet(ctx context.Context, keys []string, batchSize int) (map[string]string, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	result := make(map[string]string, len(keys))
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		values, err := b.client.MGet(ctx, batch...).Result()
		if err != nil {
			return nil, fmt.Errorf("bus: mget batch: %w", err)
		}
		for i, v := range values {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				result[batch[i]] = s
			}
		}
	}
	return result, nil
}

// HSetMsgpack stores a struct as a msgpack-encoded Redis hash value field,
// used for the binary-packed ATR/RVOL baseline cache entries (see
// SPEC_FULL.md domain stack table).
func (b *Bus) HSetMsgpack(ctx context.Context, key, field string, value interface{}, ttl time.Duration) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("bus: msgpack marshal: %w", err)
	}
	if err := b.client.HSet(ctx, key, field, payload).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return b.client.Expire(ctx, key, ttl).Err()
	}
	return nil
}

// HGetMsgpack reads back a msgpack-encoded hash field into dest.
func (b *Bus) HGetMsgpack(ctx context.Context, key, field string, dest interface{}) error {
	raw, err := b.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(raw, dest)
}

// HGetAll reads every field of a hash, returning the raw (undecoded)
// field values keyed by field name.
func (b *Bus) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return b.client.HGetAll(ctx, key).Result()
}

// SAdd adds members to a set key, optionally refreshing its TTL.
func (b *Bus) SAdd(ctx context.Context, key string, ttl time.Duration, members ...interface{}) error {
	if len(members) == 0 {
		return nil
	}
	if err := b.client.SAdd(ctx, key, members...).Err(); err != nil {
		return err
	}
	if ttl > 0 {
		return b.client.Expire(ctx, key, ttl).Err()
	}
	return nil
}

// SRem removes members from a set key.
func (b *Bus) SRem(ctx context.Context, key string, members ...interface{}) error {
	if len(members) == 0 {
		return nil
	}
	return b.client.SRem(ctx, key, members...).Err()
}

// SMembers returns the full set.
func (b *Bus) SMembers(ctx context.Context, key string) ([]string, error) {
	return b.client.SMembers(ctx, key).Result()
}

// Publish JSON-encodes message and publishes it to channel.
func (b *Bus) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("bus: marshal publish payload: %w", err)
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to one or more channels.
func (b *Bus) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return b.client.Subscribe(ctx, channels...)
}
