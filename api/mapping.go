package api

import (
	"pulse-chat/domain"
	"pulse-chat/domain/event"

	"github.com/samber/lo"
)

func FromMessage(m domain.Message) Message {
	return Message{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		RoomID:     string(m.RoomID),
		Content:    m.Content,
		Kind:       string(m.Kind),
		Status:     m.Status.String(),
		Mentions:   m.Mentions,
		Censored:   m.Censored,
		Lang:       m.Lang,
		CreatedAt:  m.CreatedAt,
	}
}

func FromMessages(messages []domain.Message) []Message {
	return lo.Map(messages, func(m domain.Message, _ int) Message {
		return FromMessage(m)
	})
}

func FromRoom(r domain.Room) Room {
	room := Room{
		ID:          string(r.ID),
		Name:        r.Name,
		Description: r.Description,
		CreatorID:   r.CreatorID,
		Members: lo.Map(r.Members, func(m domain.Member, _ int) Member {
			return Member{UserID: m.UserID, Role: string(m.Role), JoinedAt: m.JoinedAt}
		}),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.LastMessageID != nil {
		room.LastMessageID = r.LastMessageID.String()
	}
	return room
}

func FromSummaries(summaries []domain.ConversationSummary) []Conversation {
	return lo.Map(summaries, func(s domain.ConversationSummary, _ int) Conversation {
		c := Conversation{Key: s.Conversation.Key(), Type: "direct", PeerID: s.PeerID}
		if s.Room != nil {
			c.Type = "room"
			c.Room = lo.ToPtr(FromRoom(*s.Room))
		}
		if s.LastMessage != nil {
			c.LastMessage = lo.ToPtr(FromMessage(*s.LastMessage))
		}
		return c
	})
}

// FromEvent converts a push event into its wire form.
// Unknown payloads keep only their type.
func FromEvent(evt event.Event) ServerEvent {
	out := ServerEvent{Type: string(evt.Type), CreatedAt: evt.CreatedAt}
	switch p := evt.Payload.(type) {
	case event.NewMessage:
		out.Message = lo.ToPtr(FromMessage(p.Message))
	case event.MessageSent:
		out.Message = lo.ToPtr(FromMessage(p.Message))
	case event.MessageStatus:
		out.Status = &StatusChange{MessageID: p.MessageID, Status: p.Status.String(), UpdatedBy: p.UpdatedBy}
	case event.TypingChanged:
		out.Typing = &TypingChange{UserID: p.UserID, ReceiverID: p.ReceiverID, RoomID: string(p.RoomID), Typing: p.Typing}
	case event.PresenceChanged:
		out.Presence = &PresenceChange{UserID: p.UserID, Online: p.Online, At: p.At}
	case event.ErrorNotice:
		out.Error = &ErrorNotice{Reason: p.Reason, Detail: p.Detail}
	}
	return out
}

// ToSendCommand builds the send intent of senderID.
func (r SendMessageRequest) ToSendCommand(senderID string) domain.SendMessageCommand {
	return domain.SendMessageCommand{
		SenderID:   senderID,
		ReceiverID: r.ReceiverID,
		RoomID:     domain.RoomID(r.RoomID),
		Content:    r.Content,
		Kind:       domain.Kind(r.Kind),
		Mentions:   r.Mentions,
		OriginID:   r.OriginID,
	}
}

func (r TypingRequest) ToTypingCommand(senderID string) domain.TypingCommand {
	return domain.TypingCommand{
		SenderID:   senderID,
		ReceiverID: r.ReceiverID,
		RoomID:     domain.RoomID(r.RoomID),
		Typing:     r.Typing,
	}
}

func (r CreateRoomRequest) ToCreateRoomCommand(creatorID string) domain.CreateRoomCommand {
	return domain.CreateRoomCommand{
		CreatorID:   creatorID,
		Name:        r.Name,
		Description: r.Description,
		MemberIDs:   r.MemberIDs,
	}
}

func (r HistoryRequest) ToHistoryCommand(userID string) domain.HistoryCommand {
	return domain.HistoryCommand{
		UserID:     userID,
		ReceiverID: r.ReceiverID,
		RoomID:     domain.RoomID(r.RoomID),
		Page:       domain.Page{Cursor: r.Cursor, Limit: r.Limit},
	}
}
