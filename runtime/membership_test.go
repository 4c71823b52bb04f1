package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"pulse-chat/mocks"
	"pulse-chat/repositories"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestIndex(t *testing.T) (*MembershipIndex, *repositories.RoomRepository) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewRoomRepository(openDB(t), log)
	return NewMembershipIndex(store, log), store
}

func TestMembership_CreateRoom(t *testing.T) {
	req := require.New(t)
	index, store := newTestIndex(t)
	ctx := context.Background()

	// When alice creates a room listing bob twice and herself
	room, err := index.CreateRoom(ctx, domain.CreateRoomCommand{
		CreatorID: "alice",
		Name:      "General",
		MemberIDs: []string{"bob", "alice", "bob", "carol"},
	})
	req.NoError(err)

	// Then she is the admin and duplicates are collapsed
	members, err := index.MembersOf(room.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "bob", "carol"}, members)
	req.Equal(domain.RoleAdmin, room.Members[0].Role)
	req.True(index.IsMember(room.ID, "carol"))

	// And the room is persisted
	stored, err := store.Get(ctx, room.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "bob", "carol"}, stored.MemberIDs())
}

func TestMembership_CreateRoom_Invalid(t *testing.T) {
	req := require.New(t)
	index, _ := newTestIndex(t)

	_, err := index.CreateRoom(context.Background(), domain.CreateRoomCommand{CreatorID: "alice", Name: "  "})
	req.ErrorIs(err, errors.ErrInvalidRoom)
}

func TestMembership_Join_And_Leave(t *testing.T) {
	req := require.New(t)
	index, _ := newTestIndex(t)
	ctx := context.Background()
	room, err := index.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "General"})
	req.NoError(err)

	// Join appends in join order
	req.NoError(index.Join(ctx, room.ID, "bob"))
	req.ErrorIs(index.Join(ctx, room.ID, "bob"), errors.ErrAlreadyMember)
	members, err := index.MembersOf(room.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, members)
	req.Len(index.RoomsFor("bob"), 1)

	// Leaving twice is the same as leaving once
	req.NoError(index.Leave(ctx, room.ID, "bob"))
	req.NoError(index.Leave(ctx, room.ID, "bob"))
	members, err = index.MembersOf(room.ID)
	req.NoError(err)
	req.Equal([]string{"alice"}, members)
	req.Empty(index.RoomsFor("bob"))

	// An empty room survives
	req.NoError(index.Leave(ctx, room.ID, "alice"))
	members, err = index.MembersOf(room.ID)
	req.NoError(err)
	req.Empty(members)
}

func TestMembership_Unknown_Room(t *testing.T) {
	req := require.New(t)
	index, _ := newTestIndex(t)
	ctx := context.Background()

	req.ErrorIs(index.Join(ctx, "nowhere", "bob"), errors.ErrNotFound)
	req.ErrorIs(index.Leave(ctx, "nowhere", "bob"), errors.ErrNotFound)
	_, err := index.MembersOf("nowhere")
	req.ErrorIs(err, errors.ErrNotFound)
	req.False(index.IsMember("nowhere", "bob"))
}

func TestMembership_Concurrent_Join_Same_User(t *testing.T) {
	req := require.New(t)
	index, _ := newTestIndex(t)
	ctx := context.Background()
	room, err := index.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "General"})
	req.NoError(err)

	// When x joins twice at the same time
	var success, already atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := index.Join(ctx, room.ID, "x"); {
			case err == nil:
				success.Add(1)
			case errors.Is(err, errors.ErrAlreadyMember):
				already.Add(1)
			}
		}()
	}
	wg.Wait()

	// Then exactly one join wins
	req.Equal(int32(1), success.Load())
	req.Equal(int32(1), already.Load())
	members, err := index.MembersOf(room.ID)
	req.NoError(err)
	req.Equal([]string{"alice", "x"}, members)
}

func TestMembership_Concurrent_Join_Different_Users(t *testing.T) {
	req := require.New(t)
	index, _ := newTestIndex(t)
	ctx := context.Background()
	room, err := index.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "General"})
	req.NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req.NoError(index.Join(ctx, room.ID, fmt.Sprintf("user-%d", i)))
		}(i)
	}
	wg.Wait()

	members, err := index.MembersOf(room.ID)
	req.NoError(err)
	req.Len(members, 21)
}

func TestMembership_Load_Rebuilds_From_Store(t *testing.T) {
	req := require.New(t)
	index, store := newTestIndex(t)
	ctx := context.Background()
	room, err := index.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "General", MemberIDs: []string{"bob"}})
	req.NoError(err)

	// Given a fresh index over the same store, as after a restart
	restarted := NewMembershipIndex(store, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.False(restarted.IsMember(room.ID, "bob"))

	req.NoError(restarted.Load(ctx))
	req.True(restarted.IsMember(room.ID, "bob"))
	req.Len(restarted.RoomsFor("alice"), 1)
}

// pausedRoomStore holds All open after its snapshot is taken until release is closed.
type pausedRoomStore struct {
	contract.IRoomStore
	read    chan struct{}
	release chan struct{}
}

func (s pausedRoomStore) All(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.IRoomStore.All(ctx)
	close(s.read)
	<-s.release
	return rooms, err
}

func TestMembership_Load_Keeps_Rooms_Committed_During_Load(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := pausedRoomStore{
		IRoomStore: repositories.NewRoomRepository(openDB(t), log),
		read:       make(chan struct{}),
		release:    make(chan struct{}),
	}
	index := NewMembershipIndex(store, log)
	ctx := context.Background()
	general, err := index.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "General"})
	req.NoError(err)

	// Given a load whose snapshot is already read
	done := make(chan error, 1)
	go func() { done <- index.Load(ctx) }()
	<-store.read

	// When a room is created and another is joined before the load applies
	created, err := index.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "Late"})
	req.NoError(err)
	req.NoError(index.Join(ctx, general.ID, "bob"))
	close(store.release)
	req.NoError(<-done)

	// Then neither commit is lost
	_, err = index.Room(created.ID)
	req.NoError(err)
	req.True(index.IsMember(created.ID, "alice"))
	req.True(index.IsMember(general.ID, "bob"))
	req.Len(index.RoomsFor("alice"), 2)
}

func TestMembership_Storage_Failure_Leaves_Index_Untouched(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIRoomStore(ctrl)
	index := NewMembershipIndex(store, logs.GetLoggerFromLevel(slog.LevelDebug))
	ctx := context.Background()

	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	room, err := index.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "General"})
	req.NoError(err)

	// Given the store fails on update
	store.EXPECT().Update(gomock.Any(), room.ID, gomock.Any()).Return(domain.Room{}, fmt.Errorf("disk full"))

	// When bob joins
	err = index.Join(ctx, room.ID, "bob")

	// Then the failure is a storage error and bob is not a member
	req.ErrorIs(err, errors.ErrStorage)
	req.False(index.IsMember(room.ID, "bob"))
}
