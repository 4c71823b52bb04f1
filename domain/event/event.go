// Package event defines what is pushed to live connections.
package event

import (
	"pulse-chat/domain"
	"time"
)

type Type string

const (
	NewMessageType    Type = "newMessage"
	MessageSentType   Type = "messageSent"
	MessageStatusType Type = "messageStatus"
	TypingType        Type = "userTyping"
	PresenceType      Type = "presence"
	ErrorType         Type = "messageError"
)

// Event is the envelope delivered to a connection.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

type NewMessage struct {
	Message domain.Message
}

// MessageSent echoes a message to the other sessions of its sender.
type MessageSent struct {
	Message domain.Message
}

type MessageStatus struct {
	MessageID string
	Status    domain.Status
	UpdatedBy string
}

type TypingChanged struct {
	UserID     string
	ReceiverID string
	RoomID     domain.RoomID
	Typing     bool
}

type PresenceChanged struct {
	UserID string
	Online bool
	At     time.Time
}

type ErrorNotice struct {
	Reason string
	Detail string
}

func New(t Type, payload any) Event {
	return Event{Type: t, CreatedAt: time.Now().UTC(), Payload: payload}
}

func NewMessageEvent(m domain.Message) Event {
	return New(NewMessageType, NewMessage{Message: m})
}

func MessageSentEvent(m domain.Message) Event {
	return New(MessageSentType, MessageSent{Message: m})
}

func StatusEvent(m domain.Message, by string) Event {
	return New(MessageStatusType, MessageStatus{MessageID: m.ID.String(), Status: m.Status, UpdatedBy: by})
}

func TypingEvent(cmd domain.TypingCommand) Event {
	return New(TypingType, TypingChanged{
		UserID:     cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		RoomID:     cmd.RoomID,
		Typing:     cmd.Typing,
	})
}

func PresenceEvent(t domain.Transition) Event {
	return New(PresenceType, PresenceChanged{UserID: t.UserID, Online: t.Online, At: t.At})
}

func ErrorEvent(reason, detail string) Event {
	return New(ErrorType, ErrorNotice{Reason: reason, Detail: detail})
}
