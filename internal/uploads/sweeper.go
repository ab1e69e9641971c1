package uploads

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultTempFileTTL   = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

// StartSweeper periodically removes files older than ttl from the upload
// directory until ctx is done. Files normally disappear when their request
// ends; this catches anything left behind by a crash.
func (s *Store) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultTempFileTTL
	}
	go s.sweepLoop(ctx, interval, ttl)
}

func (s *Store) sweepLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.sweepExpired(ttl); err != nil {
				s.logger.Error("sweep temp uploads failed", "error", err)
			} else if n > 0 {
				s.logger.Info("swept stale temp uploads", "count", n)
			}
		}
	}
}

func (s *Store) sweepExpired(ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove stale temp upload failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
