package redis

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"
)

type Store struct {
	client *goredis.Client
}

// NewFromURL accepts redis://[:password@]host:port/db URLs.
func NewFromURL(redisURL string) (*Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Store{client: goredis.NewClient(opts)}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *Store) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
