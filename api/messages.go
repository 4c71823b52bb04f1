package api

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

type Empty struct{}

type ConnectRequest struct{}

type SendMessageRequest struct {
	ReceiverID string   `json:"receiverId,omitempty"`
	RoomID     string   `json:"roomId,omitempty"`
	Content    string   `json:"content"`
	Kind       string   `json:"kind,omitempty"`
	Mentions   []string `json:"mentions,omitempty"`
	// OriginID is the connection the send comes from, it gets no echo.
	OriginID string `json:"originId,omitempty"`
}

type TypingRequest struct {
	ReceiverID string `json:"receiverId,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	Typing     bool   `json:"typing"`
}

type CreateRoomRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	MemberIDs   []string `json:"memberIds,omitempty"`
}

type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type AdvanceStatusRequest struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

type HistoryRequest struct {
	ReceiverID string  `json:"receiverId,omitempty"`
	RoomID     string  `json:"roomId,omitempty"`
	Cursor     *string `json:"cursor,omitempty"`
	Limit      int     `json:"limit,omitempty"`
}

type HistoryResponse struct {
	Messages []Message `json:"messages"`
	Cursor   *string   `json:"cursor,omitempty"`
}

type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type PresenceRequest struct {
	UserID string `json:"userId"`
}

type PresenceResponse struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	RoomID     string    `json:"roomId,omitempty"`
	Content    string    `json:"content"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Mentions   []string  `json:"mentions,omitempty"`
	Censored   []string  `json:"censored,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Member struct {
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Room struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CreatorID     string    `json:"creatorId"`
	Members       []Member  `json:"members"`
	LastMessageID string    `json:"lastMessageId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Conversation struct {
	Key         string   `json:"key"`
	Type        string   `json:"type"`
	PeerID      string   `json:"peerId,omitempty"`
	Room        *Room    `json:"room,omitempty"`
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// ServerEvent is one push on a live connection. Exactly one payload field is set, matching Type.
type ServerEvent struct {
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	Message   *Message        `json:"message,omitempty"`
	Status    *StatusChange   `json:"status,omitempty"`
	Typing    *TypingChange   `json:"typing,omitempty"`
	Presence  *PresenceChange `json:"presence,omitempty"`
	Error     *ErrorNotice    `json:"error,omitempty"`
}

type StatusChange struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	UpdatedBy string `json:"updatedBy"`
}

type TypingChange struct {
	UserID     string `json:"userId"`
	ReceiverID string `json:"receiverId,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	Typing     bool   `json:"typing"`
}

type PresenceChange struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

type ErrorNotice struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Frame types a WebSocket client may send.
const (
	FrameSendMessage   = "sendMessage"
	FrameTyping        = "typing"
	FrameAdvanceStatus = "advanceStatus"
)

// ClientFrame is one inbound WebSocket frame. The payload field matching Type is set.
type ClientFrame struct {
	Type    string                `json:"type"`
	Message *SendMessageRequest   `json:"message,omitempty"`
	Typing  *TypingRequest        `json:"typing,omitempty"`
	Status  *AdvanceStatusRequest `json:"status,omitempty"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
