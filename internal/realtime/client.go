package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames; anything larger is a misbehaving peer
	maxMessageSize = 4096
)

type ClientOptions struct {
	PushTimeout time.Duration
	SendBuffer  int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.PushTimeout <= 0 {
		o.PushTimeout = 200 * time.Millisecond
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// Client is a websocket connection registered for one user. Events pushed
// to it are buffered and written by a single writer goroutine.
type Client struct {
	id          string
	userID      uuid.UUID
	conn        *websocket.Conn
	registry    *Registry
	send        chan Event
	done        chan struct{}
	closeOnce   sync.Once
	pushTimeout time.Duration
	logger      zerolog.Logger
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, registry *Registry, opts ClientOptions, logger zerolog.Logger) *Client {
	opts = opts.withDefaults()
	id := uuid.NewString()

	return &Client{
		id:          id,
		userID:      userID,
		conn:        conn,
		registry:    registry,
		send:        make(chan Event, opts.SendBuffer),
		done:        make(chan struct{}),
		pushTimeout: opts.PushTimeout,
		logger: logger.With().
			Str("conn_id", id).
			Str("user_id", userID.String()).
			Logger(),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Start queues the hello frame, registers the client and starts the pumps.
// The hello frame is queued before registration so it is always the first
// thing the peer reads; once it arrives the connection is deliverable.
func (c *Client) Start() {
	c.send <- Event{Type: EventConnected, Data: connectedData{UserID: c.userID}}
	c.registry.Register(c.userID, c)

	go c.writePump()
	go c.readPump()

	c.logger.Debug().Msg("client connected")
}

// Push queues event for writing. It gives up after the push timeout, or
// immediately once the client is closed.
func (c *Client) Push(event Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	timer := time.NewTimer(c.pushTimeout)
	defer timer.Stop()

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-timer.C:
		return ErrPushTimeout
	}
}

// Close stops the pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump keeps the read deadline fresh and discards client frames. It
// owns unregistration.
func (c *Client) readPump() {
	defer func() {
		c.registry.Unregister(c)
		c.Close()
		c.conn.Close()
		c.logger.Debug().Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.handleReadError(err)
			return
		}
	}
}

// handleReadError logs unexpected close codes; normal hang-ups are silent.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.logger.Warn().Err(err).Msg("websocket read error")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Str("type", string(event.Type)).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
