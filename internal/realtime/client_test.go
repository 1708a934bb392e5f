package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/jobboard-api/pkg/logger"
)

func TestClientPushTimesOutWhenBufferFull(t *testing.T) {
	c := NewClient(nil, uuid.New(), NewRegistry(nil), ClientOptions{
		PushTimeout: 20 * time.Millisecond,
		SendBuffer:  1,
	}, logger.Nop())

	assert.NoError(t, c.Push(Event{Type: EventNotification}))

	start := time.Now()
	assert.ErrorIs(t, c.Push(Event{Type: EventNotification}), ErrPushTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientPushAfterClose(t *testing.T) {
	c := NewClient(nil, uuid.New(), NewRegistry(nil), ClientOptions{}, logger.Nop())

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Push(Event{Type: EventNotification}), ErrConnClosed)
}

func TestClientOptionsDefaults(t *testing.T) {
	opts := ClientOptions{}.withDefaults()

	assert.Equal(t, 200*time.Millisecond, opts.PushTimeout)
	assert.Equal(t, 32, opts.SendBuffer)
}
