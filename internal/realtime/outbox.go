package realtime

import (
	"errors"
	"fmt"
	"sync"

	"go.jetpack.io/typeid"
)

var (
	// ErrClosed is returned by Push after the connection is closed.
	ErrClosed = errors.New("realtime: connection closed")
	// ErrBufferFull is returned when a slow reader overflowed its buffer; the
	// connection is closed as well.
	ErrBufferFull = errors.New("realtime: send buffer full")
)

// Conn is a live client connection events can be pushed to.
type Conn interface {
	ID() string
	Push(Event) error
	Close()
}

// Outbox is a bounded event queue with a close signal. Transports embed it and drain
// Events from a single writer goroutine.
type Outbox struct {
	id     string
	events chan Event
	done   chan struct{}
	once   sync.Once
}

var _ Conn = (*Outbox)(nil)

// NewOutbox returns an Outbox holding up to size pending events.
func NewOutbox(size int) (*Outbox, error) {
	if size <= 0 {
		return nil, fmt.Errorf("realtime: buffer size must be positive, got %d", size)
	}
	tid, err := typeid.New("conn")
	if err != nil {
		return nil, fmt.Errorf("failed to create typeid: %w", err)
	}
	return &Outbox{
		id:     tid.String(),
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}, nil
}

func (o *Outbox) ID() string { return o.id }

// Push enqueues e without blocking.
func (o *Outbox) Push(e Event) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}

	select {
	case o.events <- e:
		return nil
	case <-o.done:
		return ErrClosed
	default:
		o.Close()
		return ErrBufferFull
	}
}

// Close marks the outbox closed. Safe to call more than once and concurrently.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

// Events is drained by the transport's writer.
func (o *Outbox) Events() <-chan Event { return o.events }

// Done is closed by Close.
func (o *Outbox) Done() <-chan struct{} { return o.done }
