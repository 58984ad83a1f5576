package db

import (
	"context"
	"time"
)

// Store is the redis facade combining all sub-interfaces. Consumers depend on
// the narrow sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	KVStore
	HashStore
	SortedSetStore
	PubSub
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value and counter operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// ZMember is a sorted-set member with its score.
type ZMember struct {
	Member string
	Score  float64
}

// SortedSetStore provides score-ordered set operations.
type SortedSetStore interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key, member string) error
	// ZRemRangeByScore removes every member scoring at or below max.
	ZRemRangeByScore(ctx context.Context, key string, max float64) error
	ZCard(ctx context.Context, key string) (int64, error)
	// ZRangeWithScores returns members by rank ascending, scores included.
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
}

// PubSub provides fire-and-forget broadcast operations.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe blocks delivering messages to fn until ctx is cancelled.
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error
}
