package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func durationFromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// StreamMessage is one decoded entry off a stream, carrying the raw
// Redis-assigned ID for acknowledgement.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// field name used to carry the JSON payload inside a stream entry.
const payloadField = "payload"

// AddToStream JSON-encodes value and appends it to stream, trimming the
// stream to approximately maxLen entries (spec §4.2: the vendor feed is
// replayed through a bounded stream so a slow consumer cannot grow it
// unbounded).
func (b *Bus) AddToStream(ctx context.Context, stream string, value interface{}, maxLen int64) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("bus: marshal stream payload: %w", err)
	}

	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}).Result()
}

// EnsureGroup creates the consumer group on stream if it doesn't already
// exist, starting from the beginning of the stream.
func (b *Bus) EnsureGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("bus: create group %s on %s: %w", group, stream, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// ReadGroup reads up to count new messages for consumer within group,
// blocking for up to blockMillis before returning empty. blockMillis=0
// is sent as BLOCK 0, which waits until a message arrives.
func (b *Bus) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, blockMillis int64) ([]StreamMessage, error) {
	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    durationFromMillis(blockMillis),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("bus: xreadgroup %s: %w", stream, err)
	}

	var messages []StreamMessage
	for _, s := range res {
		for _, entry := range s.Messages {
			raw, _ := entry.Values[payloadField].(string)
			messages = append(messages, StreamMessage{ID: entry.ID, Payload: []byte(raw)})
		}
	}
	return messages, nil
}

// Ack acknowledges processed message IDs within group.
func (b *Bus) Ack(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return b.client.XAck(ctx, stream, group, ids...).Err()
}

// TrimStream trims stream to approximately maxLen entries.
func (b *Bus) TrimStream(ctx context.Context, stream string, maxLen int64) error {
	return b.client.XTrimMaxLenApprox(ctx, stream, maxLen, 0).Err()
}
