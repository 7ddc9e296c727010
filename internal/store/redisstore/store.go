package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const searchKeyPrefix = "search:v1:"

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// GetSearch returns a cached search context; ok is false on a miss.
func (s *Store) GetSearch(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, searchKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) SetSearch(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, searchKeyPrefix+key, value, ttl).Err()
}
