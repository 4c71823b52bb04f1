package workers

import (
	"context"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
)

// PresenceWorker drains presence transitions in arrival order and hands them to the broadcaster.
type PresenceWorker struct {
	log         *slog.Logger
	transitions <-chan domain.Transition
	broadcaster contract.IPresenceBroadcaster
}

func NewPresenceWorker(log *slog.Logger, transitions <-chan domain.Transition,
	broadcaster contract.IPresenceBroadcaster) *PresenceWorker {
	return &PresenceWorker{log: log, transitions: transitions, broadcaster: broadcaster}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence broadcast")
			return nil
		case t, ok := <-w.transitions:
			if !ok {
				w.log.Debug("Transition channel is closed")
				return nil
			}
			notified := w.broadcaster.Announce(ctx, t)
			w.log.Debug("Presence announced", "user_id", t.UserID, "online", t.Online, "notified", notified)
		}
	}
}
