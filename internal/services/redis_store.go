package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "matchdata:"

// RedisStore keeps cache entry blobs in Redis. Entries have no TTL; the
// staleness policy is evaluated by readers, not by the store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore verifies connectivity before returning the store.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Load reads the blob for key, or ErrKeyNotFound.
func (rs *RedisStore) Load(key string) ([]byte, error) {
	data, err := rs.client.Get(context.Background(), redisKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

// Save overwrites the blob for key.
func (rs *RedisStore) Save(key string, data []byte) error {
	if err := rs.client.Set(context.Background(), redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob; deleting an absent key is not an error.
func (rs *RedisStore) Delete(key string) error {
	if err := rs.client.Del(context.Background(), redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key.
func (rs *RedisStore) Keys() ([]string, error) {
	raw, err := rs.client.Keys(context.Background(), redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k[len(redisKeyPrefix):])
	}
	return keys, nil
}

// Close releases the underlying connection pool.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
