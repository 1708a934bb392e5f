package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/pkg/logger"
	"github.com/jwalitptl/jobboard-api/pkg/metrics"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry, *metrics.Metrics) {
	t.Helper()
	m := metrics.New("test", prometheus.NewRegistry())
	r := NewRegistry(m.ActiveConnections)
	return NewDispatcher(r, m, logger.Nop()), r, m
}

func notificationFor(user uuid.UUID) *model.Notification {
	return model.NewNotification(user, model.NotificationInput{
		Title: "Application approved",
		Kind:  model.NotificationKindJob,
	}, time.Now())
}

func TestDeliverToEveryConnection(t *testing.T) {
	d, r, m := newTestDispatcher(t)
	user := uuid.New()
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Register(user, a)
	r.Register(user, b)

	n := notificationFor(user)
	assert.Equal(t, 2, d.Deliver(context.Background(), n))

	for _, conn := range []*fakeConn{a, b} {
		events := conn.events()
		require.Len(t, events, 1)
		assert.Equal(t, EventNotification, events[0].Type)
		assert.Same(t, n, events[0].Data)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PushesDelivered))
}

func TestDeliverOfflineRecipient(t *testing.T) {
	d, _, m := newTestDispatcher(t)

	assert.Equal(t, 0, d.Deliver(context.Background(), notificationFor(uuid.New())))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecipientsOffline))
}

func TestDeliverIsolatesFailingConnection(t *testing.T) {
	d, r, m := newTestDispatcher(t)
	user := uuid.New()
	stuck, healthy := newFakeConn("stuck"), newFakeConn("healthy")
	stuck.err = ErrPushTimeout
	r.Register(user, stuck)
	r.Register(user, healthy)

	assert.Equal(t, 1, d.Deliver(context.Background(), notificationFor(user)))
	assert.Len(t, healthy.events(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PushesDropped.WithLabelValues("timeout")))
}

func TestDeliverBulkIsolatesRecipients(t *testing.T) {
	d, r, m := newTestDispatcher(t)
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	c1.err = errors.New("broken pipe")
	r.Register(u1, c1)
	r.Register(u2, c2)

	delivered := d.DeliverBulk(context.Background(), []*model.Notification{
		notificationFor(u1),
		notificationFor(u2),
		notificationFor(u3),
	})

	assert.Equal(t, 1, delivered)
	assert.Len(t, c2.events(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PushesDropped.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecipientsOffline))
}

func TestDeliverCanceledContext(t *testing.T) {
	d, r, _ := newTestDispatcher(t)
	user := uuid.New()
	conn := newFakeConn("a")
	r.Register(user, conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, d.Deliver(ctx, notificationFor(user)))
	assert.Empty(t, conn.events())
}
