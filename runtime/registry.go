package runtime

import (
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"sync"
	"time"
)

var _ contract.IConnectionRegistry = (*ConnectionRegistry)(nil)

// ConnectionRegistry maps a user to its live connections.
// A user is online while it holds at least one connection.
// Presence transitions are pushed to the transitions channel in the order they happen;
// when the channel is full the transition is dropped and logged, the registry never blocks.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	sessions    map[string]map[string]contract.Connection // user -> connection id -> connection
	transitions chan<- domain.Transition
	log         *slog.Logger
}

func NewConnectionRegistry(transitions chan<- domain.Transition, log *slog.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions:    make(map[string]map[string]contract.Connection),
		transitions: transitions,
		log:         log,
	}
}

// Register adds a connection. The first connection of a user emits an online transition.
// Registering the same connection twice keeps a single binding.
func (r *ConnectionRegistry) Register(userID string, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.sessions[userID]
	if !ok {
		conns = make(map[string]contract.Connection)
		r.sessions[userID] = conns
	}
	conns[conn.ID()] = conn
	r.log.Debug("Connection registered", "user_id", userID, "connection_id", conn.ID(), "connections", len(conns))

	if !ok {
		r.emit(domain.Transition{UserID: userID, Online: true, At: time.Now().UTC()})
	}
}

// Deregister removes exactly one connection. Unknown bindings are ignored.
// Removing the last connection of a user emits an offline transition.
func (r *ConnectionRegistry) Deregister(userID string, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.sessions[userID]
	if !ok {
		return
	}
	if _, ok := conns[conn.ID()]; !ok {
		return
	}
	delete(conns, conn.ID())
	r.log.Debug("Connection deregistered", "user_id", userID, "connection_id", conn.ID(), "connections", len(conns))

	if len(conns) == 0 {
		delete(r.sessions, userID)
		r.emit(domain.Transition{UserID: userID, Online: false, At: time.Now().UTC()})
	}
}

// ListConnections returns a snapshot, later registrations do not alter it.
func (r *ConnectionRegistry) ListConnections(userID string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.sessions[userID]
	if len(conns) == 0 {
		return nil
	}
	snapshot := make([]contract.Connection, 0, len(conns))
	for _, conn := range conns {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

func (r *ConnectionRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// OnlineCount returns how many users hold at least one connection.
func (r *ConnectionRegistry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// emit must be called with the write lock held
func (r *ConnectionRegistry) emit(t domain.Transition) {
	if r.transitions == nil {
		return
	}
	select {
	case r.transitions <- t:
	default:
		r.log.Warn("Presence transition dropped, channel is full", "user_id", t.UserID, "online", t.Online)
	}
}
