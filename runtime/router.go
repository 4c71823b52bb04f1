package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/domain/event"
	"pulse-chat/errors"
	"pulse-chat/moderation"
	"pulse-chat/runtime/workers"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ContentFilter rewrites message content before it is stored.
type ContentFilter interface {
	Moderate(content string) moderation.Result
}

// Router turns a send intent into a persisted message delivered to every live connection of its recipients.
//
// A send runs validate, persist, resolve and fan out in that order. Persist and fan-out
// hold the lock of the conversation, so recipients observe messages of a conversation
// in the order they were persisted. Sends to different conversations do not wait for each other.
type Router struct {
	registry contract.IConnectionRegistry
	members  contract.IMembershipIndex
	store    contract.IMessageStore
	filter   ContentFilter
	fanout   *workers.EventFanout
	locks    *KeyedMutex
	clock    *monotonicClock
	log      *slog.Logger
}

func NewRouter(
	registry contract.IConnectionRegistry,
	members contract.IMembershipIndex,
	store contract.IMessageStore,
	filter ContentFilter,
	fanout *workers.EventFanout,
	log *slog.Logger,
) *Router {
	return &Router{
		registry: registry,
		members:  members,
		store:    store,
		filter:   filter,
		fanout:   fanout,
		locks:    NewKeyedMutex(),
		clock:    &monotonicClock{},
		log:      log,
	}
}

// Send validates, persists then fans out a message.
// Only validation and persistence failures are returned, a failed delivery never is.
func (r *Router) Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if cmd.Kind == "" {
		cmd.Kind = domain.KindText
	}
	if err := cmd.Validate(); err != nil {
		return domain.Message{}, err
	}
	if cmd.RoomID != "" && !r.members.IsMember(cmd.RoomID, cmd.SenderID) {
		return domain.Message{}, fmt.Errorf("%w: %s in room %s", errors.ErrNotAMember, cmd.SenderID, cmd.RoomID)
	}

	moderated := r.filter.Moderate(cmd.Content)
	if len(moderated.Censored) > 0 {
		r.log.Info("Message censored", "sender_id", cmd.SenderID, "words", len(moderated.Censored))
	}
	message := domain.Message{
		ID:         uuid.New(),
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		RoomID:     cmd.RoomID,
		Content:    moderated.Content,
		Kind:       cmd.Kind,
		Status:     domain.StatusSent,
		Mentions:   uniq(cmd.Mentions),
		Censored:   moderated.Censored,
		Lang:       moderated.Lang,
	}

	unlock := r.locks.Lock(cmd.Conversation().Key())
	defer unlock()

	message.CreatedAt = r.clock.Now()
	persisted, err := r.store.Persist(ctx, message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	if !persisted.IsDirect() {
		if err := r.members.Touch(ctx, persisted.RoomID, persisted.ID); err != nil {
			r.log.Warn("Cannot record last message of room", "room_id", persisted.RoomID, "error", err)
		}
	}

	recipients := resolveRecipients(r.members, persisted.SenderID, persisted.ReceiverID, persisted.RoomID)
	delivered := r.fanout.Deliver(ctx, connectionsOf(r.registry, recipients), event.NewMessageEvent(persisted))

	echo := lo.Filter(r.registry.ListConnections(persisted.SenderID), func(c contract.Connection, _ int) bool {
		return c.ID() != cmd.OriginID
	})
	echoed := r.fanout.Deliver(ctx, echo, event.MessageSentEvent(persisted))

	r.log.Debug("Message routed",
		"message_id", persisted.ID,
		"conversation", persisted.Conversation().Key(),
		"recipients", len(recipients),
		"delivered", delivered,
		"echoed", echoed)
	return persisted, nil
}

// AdvanceStatus moves a message to delivered or seen on behalf of one of its recipients.
// Advancing to a status lower than or equal to the current one changes nothing.
// An effective change is pushed to the sender's connections.
func (r *Router) AdvanceStatus(ctx context.Context, cmd domain.AdvanceStatusCommand) (domain.Message, error) {
	id, err := uuid.Parse(cmd.MessageID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: bad message id %q", errors.ErrInvalidMessage, cmd.MessageID)
	}
	if cmd.Status < domain.StatusSent || cmd.Status > domain.StatusSeen {
		return domain.Message{}, fmt.Errorf("%w: unknown status %d", errors.ErrInvalidMessage, cmd.Status)
	}

	message, err := r.store.Get(ctx, id)
	if err != nil {
		return domain.Message{}, storageError(err)
	}
	if !r.isRecipient(message, cmd.UserID) {
		return domain.Message{}, fmt.Errorf("%w: %s cannot acknowledge %s", errors.ErrNotAMember, cmd.UserID, id)
	}

	updated, advanced, err := r.store.AdvanceStatus(ctx, id, cmd.Status)
	if err != nil {
		return domain.Message{}, storageError(err)
	}
	if advanced {
		r.fanout.Deliver(ctx, r.registry.ListConnections(updated.SenderID), event.StatusEvent(updated, cmd.UserID))
	}
	return updated, nil
}

func (r *Router) isRecipient(m domain.Message, userID string) bool {
	if userID == m.SenderID {
		return false
	}
	if m.IsDirect() {
		return m.ReceiverID == userID
	}
	return r.members.IsMember(m.RoomID, userID)
}

// resolveRecipients returns who must hear about an event in a conversation, the sender excluded.
func resolveRecipients(members contract.IMembershipIndex, senderID, receiverID string, roomID domain.RoomID) []string {
	if roomID == "" {
		if receiverID == senderID {
			return nil
		}
		return []string{receiverID}
	}
	ids, err := members.MembersOf(roomID)
	if err != nil {
		return nil
	}
	return lo.Without(ids, senderID)
}

func connectionsOf(registry contract.IConnectionRegistry, userIDs []string) []contract.Connection {
	var conns []contract.Connection
	for _, userID := range userIDs {
		conns = append(conns, registry.ListConnections(userID)...)
	}
	return conns
}

func uniq(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return lo.Uniq(ids)
}

// monotonicClock hands out strictly increasing timestamps so storage order matches send order.
type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(c.last) {
		now = c.last.Add(time.Nanosecond)
	}
	c.last = now
	return now
}
