package realtime

import (
	"sort"
	"sync"
)

// Registry maps user ids to their single live connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	closed bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register makes conn the user's connection, replacing any previous one (last writer
// wins). The replaced connection is returned, not closed. After Close, conn is closed
// instead of registered.
func (r *Registry) Register(userID string, conn Conn) Conn {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return nil
	}
	defer r.mu.Unlock()
	previous := r.conns[userID]
	r.conns[userID] = conn
	return previous
}

// Unregister removes the user's connection, if any.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
}

// Release removes the user's entry only while it still points at conn, so a replaced
// connection shutting down late leaves its successor registered.
func (r *Registry) Release(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.conns[userID]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the user's connection.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Online returns the registered user ids in sorted order.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close closes and forgets every registered connection and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
