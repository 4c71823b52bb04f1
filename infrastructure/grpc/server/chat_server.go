package server

import (
	"context"
	"fmt"
	"log/slog"
	"pulse-chat/api"
	"pulse-chat/auth"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"pulse-chat/services"
	"pulse-chat/sink"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ConnectionIDHeader carries the id of a live connection back to its client,
// so the client can tag its sends and skip its own echo.
const ConnectionIDHeader = "x-connection-id"

type ChatServer struct {
	chatService          services.IChatService
	connectionBufferSize int
	log                  *slog.Logger
}

func NewChatServer(log *slog.Logger, chatService services.IChatService, connectionBufferSize int) *ChatServer {
	return &ChatServer{chatService: chatService, connectionBufferSize: connectionBufferSize, log: log}
}

// Connect opens the push stream of the caller.
// It blocks until the client goes away, the connection is deregistered on the way out.
func (s *ChatServer) Connect(_ *api.ConnectRequest, stream grpc.ServerStreamingServer[api.ServerEvent]) error {
	ctx := stream.Context()
	conn := sink.NewStreamConnection(s.log, s.connectionBufferSize)
	userID, err := s.chatService.Connect(ctx, credentialFrom(ctx), conn)
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	defer func() {
		s.chatService.Disconnect(userID, conn)
		conn.Close()
	}()

	if err := stream.SendHeader(metadata.Pairs(ConnectionIDHeader, conn.ID())); err != nil {
		return err
	}
	s.log.Info("Client connected", "user_id", userID, "connection_id", conn.ID())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Client disconnected", "user_id", userID, "connection_id", conn.ID())
			return nil
		case evt := <-conn.Events():
			if err := stream.Send(lo.ToPtr(api.FromEvent(evt))); err != nil {
				s.log.Error("failed to push event to stream",
					"user_id", userID,
					"connection_id", conn.ID(),
					"error", err)
				return err
			}
		}
	}
}

func (s *ChatServer) SendMessage(ctx context.Context, in *api.SendMessageRequest) (*api.Message, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	message, err := s.chatService.SendMessage(ctx, in.ToSendCommand(userID))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return lo.ToPtr(api.FromMessage(message)), nil
}

func (s *ChatServer) Typing(ctx context.Context, in *api.TypingRequest) (*api.Empty, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	s.chatService.Typing(ctx, in.ToTypingCommand(userID))
	return &api.Empty{}, nil
}

func (s *ChatServer) CreateRoom(ctx context.Context, in *api.CreateRoomRequest) (*api.Room, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	room, err := s.chatService.CreateRoom(ctx, in.ToCreateRoomCommand(userID))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return lo.ToPtr(api.FromRoom(room)), nil
}

func (s *ChatServer) JoinRoom(ctx context.Context, in *api.RoomRequest) (*api.Empty, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.chatService.JoinRoom(ctx, domain.RoomID(in.RoomID), userID); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.Empty{}, nil
}

func (s *ChatServer) LeaveRoom(ctx context.Context, in *api.RoomRequest) (*api.Empty, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.chatService.LeaveRoom(ctx, domain.RoomID(in.RoomID), userID); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.Empty{}, nil
}

func (s *ChatServer) AdvanceStatus(ctx context.Context, in *api.AdvanceStatusRequest) (*api.Message, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	next, err := domain.ParseStatus(in.Status)
	if err != nil {
		return nil, errors.MapToGRPCError(fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err))
	}
	message, err := s.chatService.AdvanceStatus(ctx, domain.AdvanceStatusCommand{
		UserID:    userID,
		MessageID: in.MessageID,
		Status:    next,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return lo.ToPtr(api.FromMessage(message)), nil
}

func (s *ChatServer) History(ctx context.Context, in *api.HistoryRequest) (*api.HistoryResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	messages, cursor, err := s.chatService.History(ctx, in.ToHistoryCommand(userID))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.HistoryResponse{Messages: api.FromMessages(messages), Cursor: cursor}, nil
}

func (s *ChatServer) Conversations(ctx context.Context, _ *api.Empty) (*api.ConversationsResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := s.chatService.Conversations(ctx, userID)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &api.ConversationsResponse{Conversations: api.FromSummaries(summaries)}, nil
}

func (s *ChatServer) IsOnline(ctx context.Context, in *api.PresenceRequest) (*api.PresenceResponse, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	return &api.PresenceResponse{UserID: in.UserID, Online: s.chatService.IsOnline(in.UserID)}, nil
}

func caller(ctx context.Context) (string, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "caller identity is missing")
	}
	return userID, nil
}

func credentialFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
