package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"audiofeedback/internal/metrics"
	"audiofeedback/internal/models"
	"audiofeedback/internal/redis"
)

const (
	featuresKeyPrefix = "analysis:features:"
	defaultResultTTL  = time.Hour
	cacheOpTimeout    = 2 * time.Second
)

// resultCache keeps successful analyses keyed by file digest.
type resultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func newResultCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *resultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &resultCache{client: client, ttl: ttl, logger: logger}
}

func featuresKey(digest string) string {
	return featuresKeyPrefix + digest
}

func (r *resultCache) storeFeatures(digest string, features *models.Features) {
	if r == nil || r.client == nil || digest == "" || features == nil {
		return
	}
	data, err := json.Marshal(features)
	if err != nil {
		r.logger.Warn("result cache marshal failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, featuresKey(digest), data, r.ttl); err != nil {
		r.logger.Warn("result cache store failed", "digest", digest, "error", err)
	}
}

func (r *resultCache) loadFeatures(ctx context.Context, digest string) (*models.Features, bool) {
	if r == nil || r.client == nil || digest == "" {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	raw, err := r.client.Get(ctx, featuresKey(digest))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues("error").Inc()
			r.logger.Warn("result cache load failed", "digest", digest, "error", err)
		}
		return nil, false
	}
	var features models.Features
	if err := json.Unmarshal([]byte(raw), &features); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		r.logger.Warn("result cache decode failed", "digest", digest, "error", err)
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &features, true
}

func (r *resultCache) invalidate(ctx context.Context, digest string) {
	if r == nil || r.client == nil || digest == "" {
		return
	}
	if err := r.client.Del(ctx, featuresKey(digest)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		r.logger.Warn("result cache invalidate failed", "digest", digest, "error", err)
	}
}
