package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
)

// Store persists one ordered message log per user identity. Logs are
// additive; Clear is the only destructive operation and removes a single
// user's entries only.
type Store interface {
	// Load retrieves the full ordered log for a user. A user with no log yields
	// an empty slice, not an error.
	Load(ctx context.Context, userID string) ([]conversations.Message, error)

	// Append adds one message to the end of the user's log. Appends are atomic
	// with respect to concurrent reads: a reader never observes a partial entry.
	Append(ctx context.Context, userID string, message conversations.Message) error

	// Clear removes all entries for the user.
	Clear(ctx context.Context, userID string) error

	// Close releases any resources held by the store.
	Close() error
}

// DriverType selects the storage backend.
type DriverType string

const (
	DriverMemory DriverType = "memory"
	DriverRedis  DriverType = "redis"
)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
	keyPrefix   string
}

type StoreOption func(*storeConfig)

// WithRedisClient supplies the Redis connection for the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

// WithRedisTTL bounds how long an idle conversation log is retained. Zero
// keeps logs indefinitely.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// WithKeyPrefix namespaces the redis keys, defaulting to "conversation".
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) { c.keyPrefix = prefix }
}

// NewStore creates a Store for the given driver. The redis driver requires
// WithRedisClient.
func NewStore(driver DriverType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{keyPrefix: "conversation"}
	for _, opt := range opts {
		opt(config)
	}

	switch driver {
	case DriverMemory:
		return newMemoryStore(), nil

	case DriverRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client:    config.redisClient,
			ttl:       config.redisTTL,
			keyPrefix: config.keyPrefix,
		}, nil

	default:
		return nil, ErrInvalidDriver
	}
}
