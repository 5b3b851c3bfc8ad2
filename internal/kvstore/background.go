package kvstore

import (
	"context"
	"time"
)

// Start launches the TTL sweeper and compactor goroutines (spec §4.4). Both
// are cancelled cleanly by Stop.
func (s *Store) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.runSweeper(ctx)
	go s.runCompactor(ctx)

	s.logger.Info().
		Dur("cleanup_interval", s.cfg.CleanupInterval).
		Dur("compaction_interval", s.cfg.CompactionInterval).
		Msg("background tasks started")
}

// Stop cancels the background tasks and waits for their current step
// (bounded work) to finish.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Store) runSweeper(ctx context.Context) {
	defer s.wg.Done()

	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	now := time.Now()
	expired := s.lru.IterExpired(now)
	s.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	for _, k := range expired {
		if _, err := s.Delete(k.Namespace, k.Name); err != nil {
			s.logger.Warn().Err(err).Str("namespace", k.Namespace).Str("key", k.Name).Msg("sweeper delete failed")
		}
	}
	s.logger.Debug().Int("count", len(expired)).Msg("swept expired keys")
}

func (s *Store) runCompactor(ctx context.Context) {
	defer s.wg.Done()

	interval := s.cfg.CompactionInterval
	if interval <= 0 {
		interval = 300 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maybeCompact()
		}
	}
}

func (s *Store) maybeCompact() {
	s.mu.Lock()
	logSize := s.logSize
	s.mu.Unlock()

	threshold := int64(s.cfg.MaxLogSize)
	if threshold <= 0 {
		threshold = 1000
	}
	if logSize <= threshold {
		return
	}

	if err := s.CompactNow(); err != nil {
		s.logger.Warn().Err(err).Msg("periodic compaction failed")
	} else {
		s.logger.Info().Msg("periodic compaction complete")
	}
}
