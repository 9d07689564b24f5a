package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Dispatcher pushes events to registered users. Pushes never block: connections queue
// events in their own bounded buffer, so events reach a recipient in dispatch order.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher returns a Dispatcher delivering through registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger.Named("dispatcher")}
}

// Dispatch delivers event to recipientID. An offline recipient is a no-op; delivery
// failures are logged and the failed connection released.
func (d *Dispatcher) Dispatch(event Event, recipientID string) {
	conn, ok := d.registry.Lookup(recipientID)
	if !ok {
		d.logger.Debug("recipient offline", zap.String("type", event.Type), zap.String("recipient", recipientID))
		return
	}
	d.push(event, recipientID, conn)
}

// Broadcast delivers event to every registered user.
func (d *Dispatcher) Broadcast(event Event) {
	for _, id := range d.registry.Online() {
		d.Dispatch(event, id)
	}
}

func (d *Dispatcher) push(event Event, recipientID string, conn Conn) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if err := conn.Push(event); err != nil {
		d.logger.Warn("push failed",
			zap.String("type", event.Type),
			zap.String("recipient", recipientID),
			zap.String("conn", conn.ID()),
			zap.Error(err),
		)
		d.registry.Release(recipientID, conn)
	}
}

// Close stops accepting events. It returns once pushes already in progress finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}
