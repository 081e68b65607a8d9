package pipeline

// scheduler.go reloads the feed on a fixed interval while the API is served.
//
// A tick that finds a run already in progress is skipped, not queued, so a
// slow load never causes back-to-back runs.

import (
	"context"
	"errors"
	"time"
)

// StartScheduler starts a load immediately and then every interval until ctx
// is cancelled. It blocks; run it in its own goroutine.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	logger := s.logger
	logger.Info("run scheduler started", "interval", interval)

	s.scheduledRun(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("run scheduler stopped")
			return
		case <-ticker.C:
			s.scheduledRun(ctx)
		}
	}
}

func (s *Service) scheduledRun(ctx context.Context) {
	logger := s.logger

	id, err := s.Start(ctx, RunRequest{})
	switch {
	case err == nil:
		logger.Info("scheduled run started", "run_id", id)
	case errors.Is(err, ErrRunInProgress):
		logger.Info("scheduled run skipped, a load is already running")
	case ctx.Err() != nil:
		// Shutting down.
	default:
		logger.Error("scheduled run not started", "error", err)
	}
}
