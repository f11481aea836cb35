package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps configuration and runtime state under
// <prefix>:sensor:<id>:cdata and <prefix>:sensor:<id>:cstate.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to addr without verifying the connection.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sensoredit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id, kind string) string {
	return s.prefix + ":sensor:" + id + ":" + kind
}

func (s *RedisStore) Persist(ctx context.Context, sensorID string, data []byte) error {
	if err := checkSensorID(sensorID); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sensorID, "cdata"), data, 0).Err(); err != nil {
		return fmt.Errorf("persist %s: %w", sensorID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sensorID string) ([]byte, error) {
	return s.get(ctx, sensorID, "cdata")
}

func (s *RedisStore) LoadState(ctx context.Context, sensorID string) ([]byte, error) {
	return s.get(ctx, sensorID, "cstate")
}

func (s *RedisStore) get(ctx context.Context, id, kind string) ([]byte, error) {
	if err := checkSensorID(id); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(id, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", kind, id, err)
	}
	return data, nil
}

// Ping reports whether the store is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
