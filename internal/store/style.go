package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StyleTTL bounds how long an explicit style choice outlives the last write.
const StyleTTL = 30 * 24 * time.Hour

type redisStyleStore struct {
	client *redis.Client
}

func newRedisStyleStore(client *redis.Client) StyleStore {
	return &redisStyleStore{client: client}
}

func StyleKey(sessionID int64) string {
	return fmt.Sprintf("companion:style:session-%d", sessionID)
}

func (s *redisStyleStore) Get(ctx context.Context, sessionID int64) (string, error) {
	style, err := s.client.Get(ctx, StyleKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading style: %w", err)
	}
	return style, nil
}

func (s *redisStyleStore) Set(ctx context.Context, sessionID int64, style string) error {
	if err := s.client.Set(ctx, StyleKey(sessionID), style, StyleTTL).Err(); err != nil {
		return fmt.Errorf("writing style: %w", err)
	}
	return nil
}
