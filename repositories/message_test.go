package repositories

import (
	"context"
	"log/slog"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	content := "this message will self destruct in 5 seconds"
	at := time.Now().UTC()
	messages := []domain.Message{
		{SenderID: "alice", RoomID: "general", Content: content, CreatedAt: at},
		{SenderID: "bob", RoomID: "general", Content: content, CreatedAt: at.Add(1 * time.Minute)},
		{SenderID: "clara", RoomID: "general", Content: content, CreatedAt: at.Add(2 * time.Minute)},
	}
	var stored []domain.Message
	for _, m := range messages {
		persisted, err := repository.Persist(ctx, m)
		req.NoError(err)
		req.NotEqual(uuid.Nil, persisted.ID)
		req.Equal(domain.StatusSent, persisted.Status)
		req.Equal(domain.KindText, persisted.Kind)
		stored = append(stored, persisted)
	}

	fetched, cursor, err := repository.Find(ctx, domain.InRoom("general"), domain.Page{})
	req.NoError(err)
	req.Nil(cursor)
	req.Equal(stored, fetched)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	limit := 2
	repository := NewMessageRepository(openDB(t), slog.Default(), &limit)

	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := repository.Persist(ctx, domain.Message{
			SenderID: "alice", RoomID: "general", Content: "hi", CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
	}

	// Asking for more than the configured maximum is capped
	fetched, cursor, err := repository.Find(ctx, domain.InRoom("general"), domain.Page{Limit: 10})
	req.NoError(err)
	req.Len(fetched, limit)
	req.NotNil(cursor)
}

func Test_Find_Paginates_Backwards_With_Cursor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	// Given five messages in a direct conversation
	at := time.Now().UTC()
	var stored []domain.Message
	for i := 0; i < 5; i++ {
		m, err := repository.Persist(ctx, domain.Message{
			SenderID:   "alice",
			ReceiverID: "bob",
			Content:    "msg",
			CreatedAt:  at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
		stored = append(stored, m)
	}

	// When reading pages of two from the newest
	conversation := domain.Direct("bob", "alice")
	first, cursor, err := repository.Find(ctx, conversation, domain.Page{Limit: 2})
	req.NoError(err)
	req.NotNil(cursor)
	second, cursor, err := repository.Find(ctx, conversation, domain.Page{Limit: 2, Cursor: cursor})
	req.NoError(err)
	req.NotNil(cursor)
	third, cursor, err := repository.Find(ctx, conversation, domain.Page{Limit: 2, Cursor: cursor})
	req.NoError(err)

	// Then every page is chronological and pages walk back in time
	req.Equal(stored[3:5], first)
	req.Equal(stored[1:3], second)
	req.Equal(stored[0:1], third)
	req.Nil(cursor)
}

func Test_Find_Keeps_Conversations_Apart(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	_, err := repository.Persist(ctx, domain.Message{SenderID: "alice", ReceiverID: "bob", Content: "to bob"})
	req.NoError(err)
	_, err = repository.Persist(ctx, domain.Message{SenderID: "alice", ReceiverID: "bobby", Content: "to bobby"})
	req.NoError(err)
	_, err = repository.Persist(ctx, domain.Message{SenderID: "alice", RoomID: "general", Content: "to room"})
	req.NoError(err)

	fetched, _, err := repository.Find(ctx, domain.Direct("alice", "bob"), domain.Page{})
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("to bob", fetched[0].Content)
}

func Test_DistinctCorrespondents_And_LatestDirect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	// Given alice talked with bob twice and carol once
	_, err := repository.Persist(ctx, domain.Message{SenderID: "alice", ReceiverID: "bob", Content: "first", CreatedAt: at})
	req.NoError(err)
	last, err := repository.Persist(ctx, domain.Message{SenderID: "bob", ReceiverID: "alice", Content: "second", CreatedAt: at.Add(time.Second)})
	req.NoError(err)
	_, err = repository.Persist(ctx, domain.Message{SenderID: "carol", ReceiverID: "alice", Content: "hey", CreatedAt: at})
	req.NoError(err)
	_, err = repository.Persist(ctx, domain.Message{SenderID: "alice", RoomID: "general", Content: "room", CreatedAt: at})
	req.NoError(err)

	peers, err := repository.DistinctCorrespondents(ctx, "alice")
	req.NoError(err)
	req.ElementsMatch([]string{"bob", "carol"}, peers)

	peers, err = repository.DistinctCorrespondents(ctx, "bob")
	req.NoError(err)
	req.Equal([]string{"alice"}, peers)

	latest, err := repository.LatestDirect(ctx, "alice")
	req.NoError(err)
	req.Len(latest, 2)
	req.Contains(latest, last)
}

func Test_AdvanceStatus_Is_Monotonic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	m, err := repository.Persist(ctx, domain.Message{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	req.NoError(err)

	updated, advanced, err := repository.AdvanceStatus(ctx, m.ID, domain.StatusSeen)
	req.NoError(err)
	req.True(advanced)
	req.Equal(domain.StatusSeen, updated.Status)

	// Going back to delivered is ignored
	updated, advanced, err = repository.AdvanceStatus(ctx, m.ID, domain.StatusDelivered)
	req.NoError(err)
	req.False(advanced)
	req.Equal(domain.StatusSeen, updated.Status)

	fetched, err := repository.Get(ctx, m.ID)
	req.NoError(err)
	req.Equal(domain.StatusSeen, fetched.Status)
}

func Test_AdvanceStatus_Unknown_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	_, _, err := repository.AdvanceStatus(context.Background(), uuid.New(), domain.StatusSeen)
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Scan_Visits_Every_Conversation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	// Given one room message and one direct message
	at := time.Now().UTC()
	_, err := repository.Persist(ctx, domain.Message{SenderID: "alice", RoomID: "general", Content: "hi all", CreatedAt: at})
	req.NoError(err)
	_, err = repository.Persist(ctx, domain.Message{SenderID: "alice", ReceiverID: "bob", Content: "hi bob", CreatedAt: at})
	req.NoError(err)

	// When the store is scanned
	var contents []string
	err = repository.Scan(ctx, func(key string, m domain.Message) error {
		req.True(strings.HasPrefix(key, "msg:"))
		contents = append(contents, m.Content)
		return nil
	})

	// Then both messages are visited and the indexes are not
	req.NoError(err)
	req.ElementsMatch([]string{"hi all", "hi bob"}, contents)
}
