package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Conn is one live channel to a user's device or tab.
type Conn interface {
	ID() string
	// Push hands event to the connection. It must return within a bounded
	// time whether or not the event was accepted.
	Push(event Event) error
}

// Registry maps users to their live connections in this process. All
// mutations and reads go through a single mutex.
type Registry struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]map[Conn]struct{}
	owner  map[Conn]uuid.UUID
	gauge  prometheus.Gauge
}

// NewRegistry creates an empty registry. gauge, when not nil, tracks the
// number of registered connections.
func NewRegistry(gauge prometheus.Gauge) *Registry {
	return &Registry{
		byUser: make(map[uuid.UUID]map[Conn]struct{}),
		owner:  make(map[Conn]uuid.UUID),
		gauge:  gauge,
	}
}

// Register adds conn to userID's set. A conn already registered under a
// different user is moved.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owner[conn]; ok {
		if prev == userID {
			return
		}
		r.removeLocked(prev, conn)
	}

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[Conn]struct{})
		r.byUser[userID] = conns
	}
	conns[conn] = struct{}{}
	r.owner[conn] = userID
	r.updateGaugeLocked()
}

// Unregister removes conn wherever it is registered and reports the user
// it belonged to. The user's entry disappears with its last connection.
func (r *Registry) Unregister(conn Conn) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[conn]
	if !ok {
		return uuid.Nil, false
	}
	r.removeLocked(userID, conn)
	r.updateGaugeLocked()
	return userID, true
}

// ConnectionsFor returns a snapshot of userID's connections. The slice is
// safe to use after the lock is released.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.byUser[userID]
	out := make([]Conn, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owner)
}

func (r *Registry) Users() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

func (r *Registry) removeLocked(userID uuid.UUID, conn Conn) {
	delete(r.owner, conn)
	conns := r.byUser[userID]
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.byUser, userID)
	}
}

func (r *Registry) updateGaugeLocked() {
	if r.gauge != nil {
		r.gauge.Set(float64(len(r.owner)))
	}
}
