package runtime

import (
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/moderation"
	"pulse-chat/repositories"
	"pulse-chat/runtime/workers"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type harness struct {
	registry    *ConnectionRegistry
	members     *MembershipIndex
	messages    *repositories.MessageRepository
	router      *Router
	typing      *TypingRelay
	presence    *PresenceBroadcaster
	transitions chan domain.Transition
}

func newModerator(t *testing.T, log *slog.Logger) moderation.Moderator {
	t.Helper()
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)
	return moderator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore replaces the badger message store when store is not nil.
func newHarnessWithStore(t *testing.T, store contract.IMessageStore) *harness {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db := openDB(t)
	messages := repositories.NewMessageRepository(db, log, nil)
	if store == nil {
		store = messages
	}
	transitions := make(chan domain.Transition, 100)
	registry := NewConnectionRegistry(transitions, log)
	members := NewMembershipIndex(repositories.NewRoomRepository(db, log), log)
	fanout := workers.NewEventFanout(log, 200*time.Millisecond)
	return &harness{
		registry:    registry,
		members:     members,
		messages:    messages,
		router:      NewRouter(registry, members, store, newModerator(t, log), fanout, log),
		typing:      NewTypingRelay(registry, members, fanout, log),
		presence:    NewPresenceBroadcaster(registry, members, store, fanout, log),
		transitions: transitions,
	}
}

// connect registers a new fake connection for userID.
func (h *harness) connect(userID string) *fakeConnection {
	conn := newFakeConnection()
	h.registry.Register(userID, conn)
	return conn
}
