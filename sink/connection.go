// Package sink adapts a transport stream to a live connection of the registry.
package sink

import (
	"context"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain/event"
	"pulse-chat/errors"
	"sync"

	"github.com/google/uuid"
)

var _ contract.Connection = (*StreamConnection)(nil)

// StreamConnection buffers events for a transport writer.
// Send blocks only while the buffer is full, and never longer than its ctx allows.
// The transport drains Events and calls Close when the peer goes away.
type StreamConnection struct {
	id     string
	events chan event.Event
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func NewStreamConnection(log *slog.Logger, bufferSize int) *StreamConnection {
	return &StreamConnection{
		id:     uuid.NewString(),
		events: make(chan event.Event, bufferSize),
		done:   make(chan struct{}),
		log:    log,
	}
}

func (c *StreamConnection) ID() string {
	return c.id
}

func (c *StreamConnection) Send(ctx context.Context, evt event.Event) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.events <- evt:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		c.log.Warn("Connection buffer full, event dropped",
			"connection_id", c.id, "event", evt.Type)
		return ctx.Err()
	}
}

// Events is read by the single writer of the transport.
func (c *StreamConnection) Events() <-chan event.Event {
	return c.events
}

// Done is closed once the connection is closed.
func (c *StreamConnection) Done() <-chan struct{} {
	return c.done
}

// Close is idempotent. Buffered events are abandoned.
func (c *StreamConnection) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
