package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/jobboard-api/internal/config"
	"github.com/jwalitptl/jobboard-api/internal/repository"
)

// RetentionWorker permanently removes notifications that users deleted
// more than maxAge ago.
type RetentionWorker struct {
	repo     repository.NotificationRepository
	maxAge   time.Duration
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewRetentionWorker(repo repository.NotificationRepository, cfg config.RetentionConfig, logger zerolog.Logger) *RetentionWorker {
	return &RetentionWorker{
		repo:     repo,
		maxAge:   cfg.MaxAge,
		interval: cfg.Interval,
		logger:   logger.With().Str("component", "retention").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start purges once per interval until ctx is done.
func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Log error but continue
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error().Err(err).Msg("notification purge failed")
			}
		}
	}
}

func (w *RetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.maxAge)

	purged, err := w.repo.PurgeDeleted(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted notifications: %w", err)
	}

	if purged > 0 {
		w.logger.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("purged deleted notifications")
	}
	return purged, nil
}
