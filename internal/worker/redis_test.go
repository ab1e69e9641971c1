package worker

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"audiofeedback/internal/config"
	"audiofeedback/internal/models"
	"audiofeedback/internal/redis"
)

func TestResultCacheStoreLoadAndInvalidate(t *testing.T) {
	client, cleanup := newTestRedis(t)
	defer cleanup()
	rc := newResultCache(client, time.Minute, slog.Default())

	digest := "abc123"
	rc.storeFeatures(digest, &models.Features{Tempo: 128, SpectralCentroid: 2000, SampleRate: 44100, Format: "wav"})

	got, ok := rc.loadFeatures(context.Background(), digest)
	if !ok || got == nil {
		t.Fatalf("expected cached features")
	}
	if got.Tempo != 128 || got.SampleRate != 44100 || got.Format != "wav" {
		t.Fatalf("unexpected cached features %+v", got)
	}
	ttl, err := client.TTL(context.Background(), featuresKey(digest))
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v (err %v)", ttl, err)
	}

	rc.invalidate(context.Background(), digest)
	if _, ok := rc.loadFeatures(context.Background(), digest); ok {
		t.Fatalf("expected cache entry removed")
	}
}

func TestManagerServesRepeatedDigestFromCache(t *testing.T) {
	client, cleanup := newTestRedis(t)
	defer cleanup()

	var calls int32
	manager := NewManager(analyzerFunc(func(ctx context.Context, path string) (*models.Features, error) {
		atomic.AddInt32(&calls, 1)
		return &models.Features{Tempo: 90}, nil
	}), DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4}, nil)
	defer manager.Close()
	manager.EnableCache(client, time.Minute)

	req := AnalysisRequest{ClientKey: "c", Path: "a.wav", Digest: "same-digest"}
	for i := 0; i < 2; i++ {
		f, err := manager.Analyze(req)
		if err != nil || f.Tempo != 90 {
			t.Fatalf("Analyze #%d: %v %+v", i, err, f)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one analyzer call, got %d", n)
	}

	manager.Forget(context.Background(), "same-digest")
	if _, err := manager.Analyze(req); err != nil {
		t.Fatalf("Analyze after Forget: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected recompute after Forget, got %d calls", n)
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var rc *resultCache
	rc.storeFeatures("d", &models.Features{})
	if _, ok := rc.loadFeatures(context.Background(), "d"); ok {
		t.Fatalf("nil cache should always miss")
	}
	rc.invalidate(context.Background(), "d")
}

func newTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed worker tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	client, err := redis.NewRedisClient(config.RedisConfig{Host: host, Port: port, DB: db})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	if raw := client.Raw(); raw != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := raw.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush db: %v", err)
		}
	}
	return client, func() { client.Close() }
}
