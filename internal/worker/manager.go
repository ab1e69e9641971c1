package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"audiofeedback/internal/metrics"
	"audiofeedback/internal/models"
	"audiofeedback/internal/redis"
)

// Analyzer extracts features from an audio file on disk.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*models.Features, error)
}

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

// Manager runs analyses on a bounded worker pool and optionally answers
// repeated uploads from the redis result cache.
type Manager struct {
	analyzer   Analyzer
	dispatcher *Dispatcher
	cache      *resultCache
	logger     *slog.Logger
}

func NewManager(analyzer Analyzer, cfg DispatcherConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		analyzer: analyzer,
		logger:   logger,
	}
	m.dispatcher = NewDispatcher(cfg.MinWorkers, cfg.MaxWorkers, cfg.QueueSize, m, cfg.IdleTimeout)
	return m
}

// EnableCache turns on the result cache. Call before serving requests.
func (m *Manager) EnableCache(client *redis.Client, ttl time.Duration) {
	if client == nil {
		return
	}
	m.cache = newResultCache(client, ttl, m.logger)
}

// Analyze waits for the analysis of req.Path. It returns ErrDispatcherBusy
// without waiting when the queue is full, and the context error when the
// caller gives up first.
func (m *Manager) Analyze(req AnalysisRequest) (*models.Features, error) {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
		req.Context = ctx
	}
	if features, ok := m.cache.loadFeatures(ctx, req.Digest); ok {
		return features, nil
	}

	resultCh := make(chan workerReturn, 1)
	job := Job{Type: Analyze, AnalyzeTask: analysisTask{req: req, resultCh: resultCh}}
	if err := m.dispatcher.Submit(job); err != nil {
		return nil, err
	}

	select {
	case ret := <-resultCh:
		return ret.features, ret.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget drops the cached result for digest.
func (m *Manager) Forget(ctx context.Context, digest string) {
	m.cache.invalidate(ctx, digest)
}

// Workers reports the number of live worker goroutines.
func (m *Manager) Workers() int {
	return m.dispatcher.pool.size()
}

func (m *Manager) Close() {
	m.dispatcher.Close()
}

func (m *Manager) handleAnalyze(workerID int, task analysisTask) {
	ret := m.runAnalysis(workerID, task.req)
	task.resultCh <- ret
}

func (m *Manager) runAnalysis(workerID int, req AnalysisRequest) (ret workerReturn) {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}
	// the caller already left
	if err := ctx.Err(); err != nil {
		debugLog("[worker-%d] skip cancelled job for client %q", workerID, req.ClientKey)
		return workerReturn{err: err}
	}

	metrics.AnalysesInFlight.Inc()
	defer metrics.AnalysesInFlight.Dec()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("analysis panicked", "worker", workerID, "path", req.Path, "panic", r)
			ret = workerReturn{err: fmt.Errorf("analysis failed: internal error: %v", r)}
		}
	}()

	start := time.Now()
	features, err := m.analyzer.Analyze(ctx, req.Path)
	format := "unknown"
	if features != nil && features.Format != "" {
		format = features.Format
	}
	metrics.AnalysisDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	if err != nil {
		debugLog("[worker-%d] analysis failed for client %q: %v", workerID, req.ClientKey, err)
		return workerReturn{err: err}
	}
	m.cache.storeFeatures(req.Digest, features)
	return workerReturn{features: features}
}
