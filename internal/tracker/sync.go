package tracker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/engine"
	"github.com/bolasblack/medbuddy/internal/model"
)

// SyncStatus returns the engine's current status.
func (s *Service) SyncStatus() engine.Status {
	return s.engine.Status()
}

// SyncConfig returns the stored configuration with the token masked, or nil.
func (s *Service) SyncConfig(ctx context.Context) (*model.SyncConfig, error) {
	cfg, err := s.store.SyncConfig(ctx)
	if err != nil || cfg == nil {
		return nil, err
	}
	redacted := cfg.Redacted()
	return &redacted, nil
}

// SaveSyncConfig validates and stores cfg, then schedules a sync.
func (s *Service) SaveSyncConfig(ctx context.Context, cfg model.SyncConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.store.SetSyncConfig(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("remote configured", zap.Stringer("remote", cfg))
	s.engine.Schedule(ctx)
	return nil
}

// ClearSyncConfig removes the configuration and returns the engine to idle.
// Local data is kept.
func (s *Service) ClearSyncConfig(ctx context.Context) error {
	if err := s.store.ClearSyncConfig(ctx); err != nil {
		return err
	}
	s.engine.Reset()
	s.logger.Info("remote cleared")
	return nil
}

// SyncFromCloud triggers a sync. Without force it starts one in the
// background (a no-op while one is in flight) and returns immediately. With
// force it waits for any attempt in flight, runs one, and returns its outcome.
func (s *Service) SyncFromCloud(ctx context.Context, force bool) engine.Status {
	if !force {
		s.engine.Schedule(ctx)
		return s.engine.Status()
	}
	return s.engine.SyncFresh(ctx)
}

// WaitForSync blocks until background sync attempts have finished.
func (s *Service) WaitForSync() {
	s.engine.Wait()
}
