package runtime

import (
	"context"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/domain/event"
	"pulse-chat/runtime/workers"
)

// TypingRelay forwards typing signals to the other side of a conversation.
// Nothing is stored or retried, a lost signal is fixed by the next keystroke.
type TypingRelay struct {
	registry contract.IConnectionRegistry
	members  contract.IMembershipIndex
	fanout   *workers.EventFanout
	log      *slog.Logger
}

func NewTypingRelay(registry contract.IConnectionRegistry, members contract.IMembershipIndex,
	fanout *workers.EventFanout, log *slog.Logger) *TypingRelay {
	return &TypingRelay{registry: registry, members: members, fanout: fanout, log: log}
}

// Signal returns how many connections got the signal, invalid signals are dropped.
func (t *TypingRelay) Signal(ctx context.Context, cmd domain.TypingCommand) int {
	if err := cmd.Validate(); err != nil {
		t.log.Debug("Typing signal dropped", "sender_id", cmd.SenderID, "error", err)
		return 0
	}
	if cmd.RoomID != "" && !t.members.IsMember(cmd.RoomID, cmd.SenderID) {
		t.log.Debug("Typing signal dropped, not a member", "sender_id", cmd.SenderID, "room_id", cmd.RoomID)
		return 0
	}
	recipients := resolveRecipients(t.members, cmd.SenderID, cmd.ReceiverID, cmd.RoomID)
	return t.fanout.Deliver(ctx, connectionsOf(t.registry, recipients), event.TypingEvent(cmd))
}
