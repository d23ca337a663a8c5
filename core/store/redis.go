package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
)

// redisStore keeps one redis list per user, entries JSON-encoded in append
// order. RPUSH is atomic, so readers using LRANGE never see a torn entry.
type redisStore struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

func (s *redisStore) key(userID string) string {
	return fmt.Sprintf("%s:%s", s.keyPrefix, userID)
}

func (s *redisStore) Load(ctx context.Context, userID string) ([]conversations.Message, error) {
	entries, err := s.client.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, newStorageError("load", err)
	}

	log := make([]conversations.Message, 0, len(entries))
	for _, entry := range entries {
		var message conversations.Message
		if err := json.Unmarshal([]byte(entry), &message); err != nil {
			return nil, newStorageError("load", fmt.Errorf("corrupt log entry: %w", err))
		}
		log = append(log, message)
	}

	return log, nil
}

func (s *redisStore) Append(ctx context.Context, userID string, message conversations.Message) error {
	encoded, err := json.Marshal(message)
	if err != nil {
		return newStorageError("append", err)
	}

	key := s.key(userID)
	if err := s.client.RPush(ctx, key, encoded).Err(); err != nil {
		return newStorageError("append", err)
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return newStorageError("append", err)
		}
	}

	return nil
}

func (s *redisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return newStorageError("clear", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
