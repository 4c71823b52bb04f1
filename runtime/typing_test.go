package runtime

import (
	"context"
	"pulse-chat/domain"
	"pulse-chat/domain/event"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTyping_Direct(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	alice := h.connect("alice")
	bob := h.connect("bob")

	// When alice starts typing to bob
	delivered := h.typing.Signal(context.Background(), domain.TypingCommand{SenderID: "alice", ReceiverID: "bob", Typing: true})

	// Then bob is told and alice is not
	req.Equal(1, delivered)
	pushes := bob.EventsOf(event.TypingType)
	req.Len(pushes, 1)
	req.Equal(event.TypingChanged{UserID: "alice", ReceiverID: "bob", Typing: true}, pushes[0].Payload)
	req.Empty(alice.Events())
}

func TestTyping_Room(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	room, err := h.members.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "a", Name: "R", MemberIDs: []string{"b", "c"}})
	req.NoError(err)
	a := h.connect("a")
	b := h.connect("b")
	c := h.connect("c")
	outsider := h.connect("d")

	delivered := h.typing.Signal(ctx, domain.TypingCommand{SenderID: "a", RoomID: room.ID, Typing: true})

	req.Equal(2, delivered)
	req.Len(b.EventsOf(event.TypingType), 1)
	req.Len(c.EventsOf(event.TypingType), 1)
	req.Empty(a.Events())
	req.Empty(outsider.Events())
}

func TestTyping_Invalid_Signals_Are_Dropped(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	room, err := h.members.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "a", Name: "R", MemberIDs: []string{"b"}})
	req.NoError(err)
	b := h.connect("b")

	// A non member typing in the room
	req.Zero(h.typing.Signal(ctx, domain.TypingCommand{SenderID: "mallory", RoomID: room.ID, Typing: true}))
	// No destination at all
	req.Zero(h.typing.Signal(ctx, domain.TypingCommand{SenderID: "a", Typing: true}))

	req.Empty(b.Events())
}
