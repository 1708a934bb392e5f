package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/jobboard-api/internal/config"
	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/testutil"
	"github.com/jwalitptl/jobboard-api/pkg/logger"
)

func TestRetentionRunOnce(t *testing.T) {
	store := testutil.NewNotifications()
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	user := uuid.New()

	add := func() *model.Notification {
		n := model.NewNotification(user, model.NotificationInput{Title: "t", Kind: model.NotificationKindSystem}, now.Add(-90*24*time.Hour))
		require.NoError(t, store.Create(ctx, n))
		return n
	}
	old, recent, live := add(), add(), add()
	require.NoError(t, store.SoftDelete(ctx, old.ID, user, now.Add(-40*24*time.Hour)))
	require.NoError(t, store.SoftDelete(ctx, recent.ID, user, now.Add(-2*24*time.Hour)))

	w := NewRetentionWorker(store, config.RetentionConfig{Interval: time.Hour, MaxAge: 30 * 24 * time.Hour}, logger.Nop())
	w.now = func() time.Time { return now }

	purged, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.False(t, store.Has(old.ID))
	assert.True(t, store.Has(recent.ID))
	assert.True(t, store.Has(live.ID))

	purged, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestRetentionStartStopsWithContext(t *testing.T) {
	w := NewRetentionWorker(testutil.NewNotifications(), config.RetentionConfig{Interval: time.Millisecond, MaxAge: time.Hour}, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
