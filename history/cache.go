package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aouyang1/forecastd/report"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 5 * time.Minute

// CachedStore serves history listings from redis and invalidates an owner's listings on save.
// Cache failures fall through to the underlying store.
type CachedStore struct {
	store  Store
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(store Store, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(owner string, order Order) string {
	return fmt.Sprintf("forecastd:history:%s:%s", owner, order)
}

func (s *CachedStore) Save(ctx context.Context, b *report.Bundle) error {
	if err := s.store.Save(ctx, b); err != nil {
		return err
	}
	if err := s.client.Del(ctx, cacheKey(b.Owner, OrderAsc), cacheKey(b.Owner, OrderDesc)).Err(); err != nil {
		s.logger.Warn("unable to invalidate history cache", "owner", b.Owner, "error", err)
	}
	return nil
}

func (s *CachedStore) List(ctx context.Context, owner string, order Order) ([]report.Bundle, error) {
	key := cacheKey(owner, order)
	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bundles []report.Bundle
		if err := json.Unmarshal(data, &bundles); err == nil {
			return bundles, nil
		}
		s.logger.Warn("dropping undecodable history cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("history cache unavailable", "error", err)
	}

	bundles, err := s.store.List(ctx, owner, order)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(bundles); err == nil {
		if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
			s.logger.Warn("unable to fill history cache", "error", err)
		}
	}
	return bundles, nil
}

// Ping reports the underlying store and the cache.
func (s *CachedStore) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}
