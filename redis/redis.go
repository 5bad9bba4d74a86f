// Package redis caches lead statistics in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phbpx/leadtrack"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config is the required properties to use Redis.
type Config struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New connects to Redis. It returns nil when no URL is configured.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

const (
	countsKey     = "leadtrack:stats:counts"
	generationKey = "leadtrack:stats:generation"
)

// StatsCache wraps a LeadService and serves CountByStatus from Redis.
//
// Cached counts live under a key suffixed with a generation number and every
// write through the wrapper bumps the generation. A read that loaded counts
// from the store before a concurrent write can only store them under the old
// generation, which no later read looks at, so stale counts are never served
// once the write has returned. Orphaned entries expire with the TTL.
type StatsCache struct {
	leadtrack.LeadService
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewStatsCache(next leadtrack.LeadService, client redis.Cmdable, ttl time.Duration, log *zap.SugaredLogger) *StatsCache {
	return &StatsCache{
		LeadService: next,
		client:      client,
		ttl:         ttl,
		log:         log,
	}
}

func (sc *StatsCache) CountByStatus(ctx context.Context) (map[leadtrack.Status]int, error) {
	gen, err := sc.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		sc.log.Warnw("CountByStatus", "status", "cache read failed", "error", err.Error())
		return sc.LeadService.CountByStatus(ctx)
	}
	key := fmt.Sprintf("%s:%d", countsKey, gen)

	raw, err := sc.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var counts map[leadtrack.Status]int
		if err := json.Unmarshal(raw, &counts); err == nil {
			return counts, nil
		}
		sc.log.Warnw("CountByStatus", "status", "discarding corrupt cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		// Fall through to the store on cache errors.
		sc.log.Warnw("CountByStatus", "status", "cache read failed", "error", err.Error())
	}

	counts, err := sc.LeadService.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(counts); err == nil {
		if err := sc.client.Set(ctx, key, data, sc.ttl).Err(); err != nil {
			sc.log.Warnw("CountByStatus", "status", "cache write failed", "error", err.Error())
		}
	}
	return counts, nil
}

func (sc *StatsCache) Create(ctx context.Context, nl leadtrack.NewLead) (leadtrack.Lead, error) {
	lead, err := sc.LeadService.Create(ctx, nl)
	if err == nil {
		sc.invalidate(ctx)
	}
	return lead, err
}

func (sc *StatsCache) Update(ctx context.Context, id int64, patch leadtrack.LeadPatch) (leadtrack.Lead, error) {
	lead, err := sc.LeadService.Update(ctx, id, patch)
	if err == nil {
		sc.invalidate(ctx)
	}
	return lead, err
}

func (sc *StatsCache) Delete(ctx context.Context, id int64) (leadtrack.Lead, error) {
	lead, err := sc.LeadService.Delete(ctx, id)
	if err == nil {
		sc.invalidate(ctx)
	}
	return lead, err
}

func (sc *StatsCache) invalidate(ctx context.Context) {
	if err := sc.client.Incr(ctx, generationKey).Err(); err != nil {
		sc.log.Warnw("invalidate", "key", generationKey, "error", err.Error())
	}
}
