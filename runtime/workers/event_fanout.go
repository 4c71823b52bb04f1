package workers

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain/event"
	"pulse-chat/errors"
	"sync"
	"sync/atomic"
	"time"
)

// EventFanout pushes one event to many live connections.
//
// Delivery is best-effort: each connection gets its own attempt bounded by
// the delivery timeout, a failing or slow connection never holds back the others,
// and failures are logged, never returned.
//
// Deliver waits for every attempt so a caller holding a per-conversation lock
// keeps delivery order equal to persistence order.
type EventFanout struct {
	log     *slog.Logger
	timeout time.Duration
}

func NewEventFanout(log *slog.Logger, timeout time.Duration) *EventFanout {
	return &EventFanout{log: log, timeout: timeout}
}

// Deliver returns how many connections accepted the event.
// Cancelling ctx does not cut attempts short, only the delivery timeout does.
func (f *EventFanout) Deliver(ctx context.Context, conns []contract.Connection, evt event.Event) int {
	if len(conns) == 0 {
		return 0
	}
	base := context.WithoutCancel(ctx)

	var delivered atomic.Int32
	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn contract.Connection) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(base, f.timeout)
			defer cancel()
			if err := f.send(sendCtx, conn, evt); err != nil {
				f.log.Warn("Delivery failed",
					"connection_id", conn.ID(), "event", evt.Type, "error", err)
				return
			}
			delivered.Add(1)
		}(conn)
	}
	wg.Wait()

	f.log.Debug("Event fanned out", "event", evt.Type, "connections", len(conns), "delivered", delivered.Load())
	return int(delivered.Load())
}

// send isolates a panicking connection from the rest of the fan-out
func (f *EventFanout) send(ctx context.Context, conn contract.Connection, evt event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: connection panicked: %v", errors.ErrDeliveryFailure, r)
		}
	}()
	if err := conn.Send(ctx, evt); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrDeliveryFailure, err)
	}
	return nil
}
