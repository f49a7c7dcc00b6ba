package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SentimentPipeline/internal/ports"
)

const redisPingTimeout = 5 * time.Second

// ErrEmptyRedisAddress is returned when the redis token store is selected without an address.
var ErrEmptyRedisAddress = errors.New("redis address is required")

// ConnectRedis builds a client and verifies the connection.
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	if addr == "" {
		return nil, ErrEmptyRedisAddress
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisTokenStore keeps the resume token under a single key without expiry.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

var _ ports.TokenStore = (*RedisTokenStore)(nil)

// NewRedisTokenStore stores the token for consumer name.
func NewRedisTokenStore(client *redis.Client, name string) *RedisTokenStore {
	return &RedisTokenStore{client: client, key: fmt.Sprintf("newspipe:resume-token:%s", name)}
}

func (s *RedisTokenStore) Load(ctx context.Context) ([]byte, error) {
	token, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.key, err)
	}
	return token, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token []byte) error {
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", s.key, err)
	}
	return nil
}
