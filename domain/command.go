package domain

// SendMessageCommand is the intent of a user to post a message.
// Exactly one of ReceiverID and RoomID must be set.
// OriginID is the connection the intent came from, it is skipped by the self echo.
type SendMessageCommand struct {
	SenderID   string   `validate:"required"`
	ReceiverID string   `validate:"required_without=RoomID,excluded_with=RoomID"`
	RoomID     RoomID   `validate:"required_without=ReceiverID,excluded_with=ReceiverID"`
	Content    string   `validate:"required"`
	Kind       Kind     `validate:"omitempty,oneof=text image video file"`
	Mentions   []string `validate:"dive,required"`
	OriginID   string
}

func (c SendMessageCommand) Conversation() Conversation {
	if c.RoomID != "" {
		return InRoom(c.RoomID)
	}
	return Direct(c.SenderID, c.ReceiverID)
}

type TypingCommand struct {
	SenderID   string `validate:"required"`
	ReceiverID string `validate:"required_without=RoomID,excluded_with=RoomID"`
	RoomID     RoomID `validate:"required_without=ReceiverID,excluded_with=ReceiverID"`
	Typing     bool
}

type CreateRoomCommand struct {
	CreatorID   string   `validate:"required"`
	Name        string   `validate:"required,max=100"`
	Description string   `validate:"max=500"`
	MemberIDs   []string `validate:"dive,required"`
}

type AdvanceStatusCommand struct {
	UserID    string
	MessageID string
	Status    Status
}

type HistoryCommand struct {
	UserID     string
	ReceiverID string
	RoomID     RoomID
	Page       Page
}
