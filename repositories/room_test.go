package repositories

import (
	"context"
	"log/slog"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Room_Create_And_Get(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewRoomRepository(openDB(t), slog.Default())
	at := time.Now().UTC()

	room := domain.NewRoom("general", "General", "talk", "alice", []string{"bob"}, at)
	req.NoError(repository.Create(ctx, room))

	fetched, err := repository.Get(ctx, "general")
	req.NoError(err)
	req.Equal(room, fetched)

	// A second room with the same id is refused
	req.ErrorIs(repository.Create(ctx, room), errors.ErrInvalidRoom)
}

func Test_Room_Get_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewRoomRepository(openDB(t), slog.Default())

	_, err := repository.Get(context.Background(), "nowhere")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Room_Update_Maintains_Member_Index(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewRoomRepository(openDB(t), slog.Default())
	at := time.Now().UTC()

	req.NoError(repository.Create(ctx, domain.NewRoom("general", "General", "", "alice", []string{"bob"}, at)))
	req.NoError(repository.Create(ctx, domain.NewRoom("random", "Random", "", "bob", nil, at)))

	// When bob leaves general and carol joins
	updated, err := repository.Update(ctx, "general", func(room *domain.Room) error {
		room.Leave("bob", at)
		return room.Join("carol", at)
	})
	req.NoError(err)
	req.Equal([]string{"alice", "carol"}, updated.MemberIDs())

	// Then the reverse index follows
	rooms, err := repository.FindByMember(ctx, "bob")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(domain.RoomID("random"), rooms[0].ID)

	rooms, err = repository.FindByMember(ctx, "carol")
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(domain.RoomID("general"), rooms[0].ID)
}

func Test_Room_Update_Failure_Writes_Nothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewRoomRepository(openDB(t), slog.Default())
	at := time.Now().UTC()
	req.NoError(repository.Create(ctx, domain.NewRoom("general", "General", "", "alice", nil, at)))

	_, err := repository.Update(ctx, "general", func(room *domain.Room) error {
		return room.Join("alice", at)
	})
	req.ErrorIs(err, errors.ErrAlreadyMember)

	fetched, err := repository.Get(ctx, "general")
	req.NoError(err)
	req.Equal([]string{"alice"}, fetched.MemberIDs())
}

func Test_Room_All(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewRoomRepository(openDB(t), slog.Default())
	at := time.Now().UTC()

	req.NoError(repository.Create(ctx, domain.NewRoom("a", "A", "", "alice", nil, at)))
	req.NoError(repository.Create(ctx, domain.NewRoom("b", "B", "", "bob", nil, at)))

	rooms, err := repository.All(ctx)
	req.NoError(err)
	req.Len(rooms, 2)
}
