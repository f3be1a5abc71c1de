// Package events fans the host's committed event log out to Redis, where
// off-chain services (indexers, game servers) reconcile against it.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/0gfoundation/0g-game-economy/internal/chain"
)

// DefaultStream is the Redis list events are appended to.
const DefaultStream = "chain:events"

// RedisSink appends every committed event, JSON encoded, to a Redis list.
// List index equals event Seq as long as the sink sees the log from genesis.
type RedisSink struct {
	rdb    *redis.Client
	stream string
}

func NewRedisSink(rdb *redis.Client, stream string) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{rdb: rdb, stream: stream}
}

// Publish implements chain.Sink.
func (s *RedisSink) Publish(ctx context.Context, events []chain.Event) error {
	values := make([]any, 0, len(events))
	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", e.Seq, err)
		}
		values = append(values, string(raw))
	}
	if err := s.rdb.RPush(ctx, s.stream, values...).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", s.stream, err)
	}
	return nil
}

// Record is an event read back from Redis; Data stays raw because its type
// depends on Name.
type Record struct {
	Seq      uint64          `json:"seq"`
	Contract string          `json:"contract"`
	Name     string          `json:"name"`
	Data     json.RawMessage `json:"data"`
}

// Read returns up to limit records starting at list index from.
func (s *RedisSink) Read(ctx context.Context, from int64, limit int64) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	raws, err := s.rdb.LRange(ctx, s.stream, from, from+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", s.stream, err)
	}
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var r Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Len is the number of events in the stream.
func (s *RedisSink) Len(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, s.stream).Result()
}
