// Package domain contains core concepts of the chat system.
// This file defines Message and its delivery status rules.
// Messages are immutable once persisted, only their status moves forward.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindFile  Kind = "file"
)

// Status is ordered: a message never goes back to a lower value.
type Status int

const (
	StatusSent Status = iota + 1
	StatusDelivered
	StatusSeen
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusSeen:
		return "seen"
	default:
		return "unknown"
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sent":
		return StatusSent, nil
	case "delivered":
		return StatusDelivered, nil
	case "seen":
		return StatusSeen, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

// Advance reports whether next moves the status forward.
func (s Status) Advance(next Status) bool {
	return next > s && next <= StatusSeen
}

// Message belongs to exactly one conversation:
// ReceiverID is set for a direct message, RoomID for a room message.
type Message struct {
	ID         uuid.UUID
	SenderID   string
	ReceiverID string
	RoomID     RoomID
	Content    string
	Kind       Kind
	Status     Status
	Mentions   []string
	Censored   []string
	Lang       string
	CreatedAt  time.Time
}

func (m Message) IsDirect() bool {
	return m.RoomID == ""
}

func (m Message) Conversation() Conversation {
	if m.IsDirect() {
		return Direct(m.SenderID, m.ReceiverID)
	}
	return InRoom(m.RoomID)
}

// Peer returns the other side of a direct message from userID's point of view.
func (m Message) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
