package services

import (
	"context"
	"pulse-chat/contract"
	"pulse-chat/domain"
	"pulse-chat/runtime"
)

// IChatService is what the transports expose to clients.
type IChatService interface {
	Connect(ctx context.Context, credential string, conn contract.Connection) (string, error)
	Disconnect(userID string, conn contract.Connection)
	IsOnline(userID string) bool
	CreateRoom(ctx context.Context, cmd domain.CreateRoomCommand) (domain.Room, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, userID string) error
	LeaveRoom(ctx context.Context, roomID domain.RoomID, userID string) error
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	Typing(ctx context.Context, cmd domain.TypingCommand)
	AdvanceStatus(ctx context.Context, cmd domain.AdvanceStatusCommand) (domain.Message, error)
	History(ctx context.Context, cmd domain.HistoryCommand) ([]domain.Message, *string, error)
	Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) Connect(ctx context.Context, credential string, conn contract.Connection) (string, error) {
	return s.orchestrator.Connect(ctx, credential, conn)
}

func (s *ChatService) Disconnect(userID string, conn contract.Connection) {
	s.orchestrator.Disconnect(userID, conn)
}

func (s *ChatService) IsOnline(userID string) bool {
	return s.orchestrator.IsOnline(userID)
}

func (s *ChatService) CreateRoom(ctx context.Context, cmd domain.CreateRoomCommand) (domain.Room, error) {
	return s.orchestrator.CreateRoom(ctx, cmd)
}

func (s *ChatService) JoinRoom(ctx context.Context, roomID domain.RoomID, userID string) error {
	return s.orchestrator.JoinRoom(ctx, roomID, userID)
}

func (s *ChatService) LeaveRoom(ctx context.Context, roomID domain.RoomID, userID string) error {
	return s.orchestrator.LeaveRoom(ctx, roomID, userID)
}

func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.orchestrator.Send(ctx, cmd)
}

func (s *ChatService) Typing(ctx context.Context, cmd domain.TypingCommand) {
	s.orchestrator.Typing(ctx, cmd)
}

func (s *ChatService) AdvanceStatus(ctx context.Context, cmd domain.AdvanceStatusCommand) (domain.Message, error) {
	return s.orchestrator.AdvanceStatus(ctx, cmd)
}

func (s *ChatService) History(ctx context.Context, cmd domain.HistoryCommand) ([]domain.Message, *string, error) {
	return s.orchestrator.History(ctx, cmd)
}

func (s *ChatService) Conversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return s.orchestrator.Conversations(ctx, userID)
}
