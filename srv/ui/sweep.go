package ui

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// SweepInterval is how often StartSweeper looks for expired build folders.
const SweepInterval = time.Hour

// StartSweeper removes build folders older than the build TTL, once now and
// then every interval, until ctx is done.
func (s *BookServer) StartSweeper(ctx context.Context, interval time.Duration) {
	s.sweep(time.Now())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	}()
}

// sweep deletes finished build folders last modified before now minus the
// build TTL and returns how many it removed. Only folders named by a build
// id are touched.
func (s *BookServer) sweep(now time.Time) int {
	if s.workDir == "" {
		return 0
	}
	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		s.log.Warn("reading work directory", zap.String("dir", s.workDir), zap.Error(err))
		return 0
	}
	cutoff := now.Add(-s.buildTTL)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !isValidID(entry.Name()) {
			continue
		}
		if _, running := s.active.Load(entry.Name()); running {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.workDir, entry.Name())); err != nil {
			s.log.Warn("removing expired build", zap.String("build", entry.Name()), zap.Error(err))
			continue
		}
		s.progress.Delete(entry.Name())
		removed++
	}
	if removed > 0 {
		s.log.Info("removed expired builds", zap.Int("count", removed))
	}
	return removed
}
