package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const sideEffectTimeout = 5 * time.Second

// bestEffort runs a side effect whose failure must not fail the operation
// that triggered it: the error is logged and counted, never returned. fn
// gets a context detached from the caller's cancellation, bounded by
// sideEffectTimeout, so a client hanging up after the write does not abort
// the follow-up work.
func (s *Service) bestEffort(ctx context.Context, operation string, applicationID uuid.UUID, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.metrics.SideEffectFailures.WithLabelValues(operation).Inc()
		s.logger.Warn().
			Err(err).
			Str("operation", operation).
			Str("application_id", applicationID.String()).
			Msg("best-effort side effect failed")
	}
}
