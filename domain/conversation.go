package domain

import (
	"fmt"
	"strings"
	"time"
)

type ConversationKind int

const (
	ConversationDirect ConversationKind = iota + 1
	ConversationRoom
)

// Conversation identifies where a message lives.
// A direct conversation is the unordered pair of its two participants
// and only exists through its message history.
type Conversation struct {
	Kind  ConversationKind
	Room  RoomID
	Peers [2]string
}

// Direct builds the conversation between a and b, independent of argument order.
func Direct(a, b string) Conversation {
	if b < a {
		a, b = b, a
	}
	return Conversation{Kind: ConversationDirect, Peers: [2]string{a, b}}
}

func InRoom(id RoomID) Conversation {
	return Conversation{Kind: ConversationRoom, Room: id}
}

func (c Conversation) IsDirect() bool {
	return c.Kind == ConversationDirect
}

// Key is the stable storage and locking key of the conversation.
func (c Conversation) Key() string {
	if c.IsDirect() {
		return fmt.Sprintf("dm:%s:%s", c.Peers[0], c.Peers[1])
	}
	return fmt.Sprintf("room:%s", c.Room)
}

func (c Conversation) Includes(userID string) bool {
	return c.IsDirect() && (c.Peers[0] == userID || c.Peers[1] == userID)
}

// ParseConversation is the inverse of Key.
func ParseConversation(key string) (Conversation, error) {
	parts := strings.Split(key, ":")
	switch {
	case len(parts) == 3 && parts[0] == "dm":
		return Direct(parts[1], parts[2]), nil
	case len(parts) == 2 && parts[0] == "room":
		return InRoom(RoomID(parts[1])), nil
	default:
		return Conversation{}, fmt.Errorf("malformed conversation key %q", key)
	}
}

// Page selects a window of history walking back from Cursor (or from the newest message).
// Cursor is opaque and comes from a previous page.
type Page struct {
	Cursor *string
	Limit  int
}

// ConversationSummary is one line of a user's conversation list.
type ConversationSummary struct {
	Conversation Conversation
	PeerID       string
	Room         *Room
	LastMessage  *Message
}

// LastActivity is the time of the last message, or of the last room change when there is none.
func (s ConversationSummary) LastActivity() time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	if s.Room != nil {
		return s.Room.UpdatedAt
	}
	return time.Time{}
}
