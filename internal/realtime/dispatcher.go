package realtime

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/pkg/metrics"
)

var (
	ErrPushTimeout = errors.New("push timed out")
	ErrConnClosed  = errors.New("connection closed")
)

// Dispatcher pushes stored notifications to their recipients' live
// connections. Delivery is best effort: there is no retry, no
// acknowledgement and no queue for offline users, who catch up through
// the notification list instead.
type Dispatcher struct {
	registry *Registry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewDispatcher(registry *Registry, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		metrics:  m,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Deliver pushes n to every live connection of its recipient and returns
// how many accepted it. n must already be persisted.
func (d *Dispatcher) Deliver(ctx context.Context, n *model.Notification) int {
	conns := d.registry.ConnectionsFor(n.UserID)
	if len(conns) == 0 {
		d.metrics.RecipientsOffline.Inc()
		return 0
	}

	event := Event{Type: EventNotification, Data: n}
	delivered := 0
	for _, conn := range conns {
		if ctx.Err() != nil {
			d.metrics.PushesDropped.WithLabelValues("canceled").Inc()
			continue
		}
		if err := conn.Push(event); err != nil {
			d.metrics.PushesDropped.WithLabelValues(dropReason(err)).Inc()
			d.logger.Debug().
				Err(err).
				Str("user_id", n.UserID.String()).
				Str("notification_id", n.ID.String()).
				Str("conn_id", conn.ID()).
				Msg("push dropped")
			continue
		}
		delivered++
	}

	d.metrics.PushesDelivered.Add(float64(delivered))
	return delivered
}

// DeliverBulk delivers each notification independently.
func (d *Dispatcher) DeliverBulk(ctx context.Context, ns []*model.Notification) int {
	delivered := 0
	for _, n := range ns {
		delivered += d.Deliver(ctx, n)
	}
	return delivered
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrPushTimeout):
		return "timeout"
	case errors.Is(err, ErrConnClosed):
		return "closed"
	default:
		return "error"
	}
}
