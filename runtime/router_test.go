package runtime

import (
	"context"
	"fmt"
	"pulse-chat/domain"
	"pulse-chat/domain/event"
	"pulse-chat/errors"
	"pulse-chat/mocks"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMessageOf(req *require.Assertions, evt event.Event) domain.Message {
	payload, ok := evt.Payload.(event.NewMessage)
	req.True(ok)
	return payload.Message
}

func TestRouter_Direct_Send_Reaches_Every_Connection(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	// Given bob has two devices connected
	device1 := h.connect("bob")
	device2 := h.connect("bob")

	// When alice sends him a message
	sent, err := h.router.Send(ctx, domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	req.NoError(err)
	req.Equal(domain.StatusSent, sent.Status)
	req.Equal(domain.KindText, sent.Kind)

	// Then each device gets exactly one push with the same message id
	for _, device := range []*fakeConnection{device1, device2} {
		pushes := device.EventsOf(event.NewMessageType)
		req.Len(pushes, 1)
		req.Equal(sent.ID, newMessageOf(req, pushes[0]).ID)
	}

	// And the history holds the message exactly once
	history, _, err := h.messages.Find(ctx, domain.Direct("bob", "alice"), domain.Page{})
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(sent, history[0])
}

func TestRouter_Offline_Receiver_Still_Persists(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()

	sent, err := h.router.Send(ctx, domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "are you there?"})
	req.NoError(err)

	history, _, err := h.messages.Find(ctx, domain.Direct("alice", "bob"), domain.Page{})
	req.NoError(err)
	req.Equal([]domain.Message{sent}, history)
}

func TestRouter_Invalid_Messages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  domain.SendMessageCommand
	}{
		{"empty content", domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "   "}},
		{"no destination", domain.SendMessageCommand{SenderID: "alice", Content: "hi"}},
		{"both destinations", domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", RoomID: "general", Content: "hi"}},
		{"unknown kind", domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hi", Kind: "sticker"}},
		{"no sender", domain.SendMessageCommand{ReceiverID: "bob", Content: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			bob := h.connect("bob")

			_, err := h.router.Send(ctx, tt.cmd)

			req.ErrorIs(err, errors.ErrInvalidMessage)
			req.Empty(bob.Events())
		})
	}
}

func TestRouter_Room_Send_By_Non_Member(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	room, err := h.members.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "alice", Name: "General", MemberIDs: []string{"bob"}})
	req.NoError(err)
	bob := h.connect("bob")

	// When mallory posts in a room she does not belong to
	_, err = h.router.Send(ctx, domain.SendMessageCommand{SenderID: "mallory", RoomID: room.ID, Content: "let me in"})

	// Then it fails and nothing is stored or pushed
	req.ErrorIs(err, errors.ErrNotAMember)
	history, _, err := h.messages.Find(ctx, domain.InRoom(room.ID), domain.Page{})
	req.NoError(err)
	req.Empty(history)
	req.Empty(bob.Events())

	// An unknown room is treated the same way
	_, err = h.router.Send(ctx, domain.SendMessageCommand{SenderID: "alice", RoomID: "nowhere", Content: "hello?"})
	req.ErrorIs(err, errors.ErrNotAMember)
}

func TestRouter_Room_Fanout_Targets_Other_Members(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	room, err := h.members.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "a", Name: "R", MemberIDs: []string{"b", "c"}})
	req.NoError(err)

	// Given a has two sessions, b is offline and c is online
	origin := h.connect("a")
	otherSession := h.connect("a")
	c := h.connect("c")

	// When a sends from its first session
	sent, err := h.router.Send(ctx, domain.SendMessageCommand{
		SenderID: "a", RoomID: room.ID, Content: "hello room", OriginID: origin.ID(),
	})
	req.NoError(err)

	// Then only c gets the new message
	req.Len(c.EventsOf(event.NewMessageType), 1)
	req.Empty(origin.Events())
	req.Empty(otherSession.EventsOf(event.NewMessageType))

	// And the other session of a gets the echo
	echoes := otherSession.EventsOf(event.MessageSentType)
	req.Len(echoes, 1)
	req.Equal(sent.ID, echoes[0].Payload.(event.MessageSent).Message.ID)

	// And b finds it in the history later
	history, _, err := h.messages.Find(ctx, domain.InRoom(room.ID), domain.Page{})
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(sent.ID, history[0].ID)

	// And the room remembers its last message
	updated, err := h.members.Room(room.ID)
	req.NoError(err)
	req.NotNil(updated.LastMessageID)
	req.Equal(sent.ID, *updated.LastMessageID)
}

func TestRouter_Self_Direct_Message_Is_Only_Echoed(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	origin := h.connect("alice")
	other := h.connect("alice")

	_, err := h.router.Send(context.Background(), domain.SendMessageCommand{
		SenderID: "alice", ReceiverID: "alice", Content: "note to self", OriginID: origin.ID(),
	})
	req.NoError(err)

	req.Empty(origin.Events())
	req.Empty(other.EventsOf(event.NewMessageType))
	req.Len(other.EventsOf(event.MessageSentType), 1)
}

func TestRouter_Sequential_Sends_Keep_Order(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	room, err := h.members.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "a", Name: "R", MemberIDs: []string{"b"}})
	req.NoError(err)
	b := h.connect("b")

	var sent []uuid.UUID
	for i := 0; i < 20; i++ {
		m, err := h.router.Send(ctx, domain.SendMessageCommand{SenderID: "a", RoomID: room.ID, Content: fmt.Sprintf("S%d", i)})
		req.NoError(err)
		sent = append(sent, m.ID)
	}

	var received []uuid.UUID
	for _, evt := range b.EventsOf(event.NewMessageType) {
		received = append(received, newMessageOf(req, evt).ID)
	}
	req.Equal(sent, received)
}

func TestRouter_Concurrent_Sends_Are_Observed_In_Persistence_Order(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	senders := []string{"a", "b", "c", "d"}
	room, err := h.members.CreateRoom(ctx, domain.CreateRoomCommand{CreatorID: "a", Name: "R", MemberIDs: append(senders, "watcher")})
	req.NoError(err)
	watcher := h.connect("watcher")
	other := h.connect("watcher")

	// When four members send at the same time
	var wg sync.WaitGroup
	for _, sender := range senders {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := h.router.Send(ctx, domain.SendMessageCommand{SenderID: sender, RoomID: room.ID, Content: "msg"})
				req.NoError(err)
			}
		}(sender)
	}
	wg.Wait()

	// Then both watcher sessions observe the persisted order
	history, _, err := h.messages.Find(ctx, domain.InRoom(room.ID), domain.Page{Limit: 50})
	req.NoError(err)
	req.Len(history, 40)
	var persisted []uuid.UUID
	for _, m := range history {
		persisted = append(persisted, m.ID)
	}
	for _, conn := range []*fakeConnection{watcher, other} {
		var received []uuid.UUID
		for _, evt := range conn.EventsOf(event.NewMessageType) {
			received = append(received, newMessageOf(req, evt).ID)
		}
		req.Equal(persisted, received)
	}
}

func TestRouter_Failed_Delivery_Does_Not_Fail_Send(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	closed := h.connect("bob")
	closed.err = errors.ErrConnectionClosed
	open := h.connect("bob")

	_, err := h.router.Send(context.Background(), domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hi"})

	req.NoError(err)
	req.Len(open.EventsOf(event.NewMessageType), 1)
}

func TestRouter_Storage_Failure_Fans_Out_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIMessageStore(ctrl)
	h := newHarnessWithStore(t, store)
	bob := h.connect("bob")
	alice := h.connect("alice")

	// Given the store is down
	store.EXPECT().Persist(gomock.Any(), gomock.Any()).Return(domain.Message{}, fmt.Errorf("disk full"))

	// When alice sends
	_, err := h.router.Send(context.Background(), domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hi"})

	// Then she gets a storage error and nobody hears about the message
	req.ErrorIs(err, errors.ErrStorage)
	req.Empty(bob.Events())
	req.Empty(alice.Events())
}

func TestRouter_Censors_Content(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	bob := h.connect("bob")

	sent, err := h.router.Send(context.Background(), domain.SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Content: "you b4dger", Mentions: []string{"bob", "bob"},
	})
	req.NoError(err)

	req.Equal("you ******", sent.Content)
	req.Equal([]string{"badger"}, sent.Censored)
	req.Equal([]string{"bob"}, sent.Mentions)
	req.Equal("you ******", newMessageOf(req, bob.EventsOf(event.NewMessageType)[0]).Content)
}

func TestRouter_AdvanceStatus(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	alice := h.connect("alice")

	sent, err := h.router.Send(ctx, domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	req.NoError(err)

	// When bob marks the message seen
	seen, err := h.router.AdvanceStatus(ctx, domain.AdvanceStatusCommand{UserID: "bob", MessageID: sent.ID.String(), Status: domain.StatusSeen})
	req.NoError(err)
	req.Equal(domain.StatusSeen, seen.Status)

	// Then going back to delivered is a no-op
	again, err := h.router.AdvanceStatus(ctx, domain.AdvanceStatusCommand{UserID: "bob", MessageID: sent.ID.String(), Status: domain.StatusDelivered})
	req.NoError(err)
	req.Equal(domain.StatusSeen, again.Status)

	// And alice was told once
	statuses := alice.EventsOf(event.MessageStatusType)
	req.Len(statuses, 1)
	req.Equal(event.MessageStatus{MessageID: sent.ID.String(), Status: domain.StatusSeen, UpdatedBy: "bob"}, statuses[0].Payload)
}

func TestRouter_AdvanceStatus_Refusals(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	sent, err := h.router.Send(ctx, domain.SendMessageCommand{SenderID: "alice", ReceiverID: "bob", Content: "hi"})
	req.NoError(err)

	// The sender cannot acknowledge its own message
	_, err = h.router.AdvanceStatus(ctx, domain.AdvanceStatusCommand{UserID: "alice", MessageID: sent.ID.String(), Status: domain.StatusSeen})
	req.ErrorIs(err, errors.ErrNotAMember)

	// Nor can a stranger
	_, err = h.router.AdvanceStatus(ctx, domain.AdvanceStatusCommand{UserID: "carol", MessageID: sent.ID.String(), Status: domain.StatusSeen})
	req.ErrorIs(err, errors.ErrNotAMember)

	_, err = h.router.AdvanceStatus(ctx, domain.AdvanceStatusCommand{UserID: "bob", MessageID: uuid.NewString(), Status: domain.StatusSeen})
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = h.router.AdvanceStatus(ctx, domain.AdvanceStatusCommand{UserID: "bob", MessageID: "not-a-uuid", Status: domain.StatusSeen})
	req.ErrorIs(err, errors.ErrInvalidMessage)
}
