package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/listing-scraper/internal/scrapeerr"
)

// listClient is the subset of *redis.Client the link store needs.
type listClient interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

// RedisLinkStore keeps the discovered link list of a run under links:<run>.
type RedisLinkStore struct {
	client listClient
	ttl    time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisLinkStore(ctx context.Context, opts RedisOptions) (*RedisLinkStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisLinkStore{client: rdb, ttl: opts.TTL}, nil
}

func linksKey(runID string) string {
	return fmt.Sprintf("links:%s", runID)
}

// SaveLinks replaces the stored list for runID with links, in order.
func (s *RedisLinkStore) SaveLinks(ctx context.Context, runID string, links []string) error {
	key := linksKey(runID)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: redis del %s: %v", scrapeerr.ErrIO, key, err)
	}
	if len(links) == 0 {
		return nil
	}

	values := make([]interface{}, len(links))
	for i, l := range links {
		values[i] = l
	}
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("%w: redis rpush %s: %v", scrapeerr.ErrIO, key, err)
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("%w: redis expire %s: %v", scrapeerr.ErrIO, key, err)
		}
	}
	return nil
}

func (s *RedisLinkStore) Close() error {
	return s.client.Close()
}
