package server

import (
	"log/slog"
	"pulse-chat/api"
	"pulse-chat/auth"
	"pulse-chat/services"

	"google.golang.org/grpc"
)

// NewGRPCServer registers the account and chat services behind the JWT interceptors.
// Login and Register are open. Connect checks its own credential when the stream opens.
func NewGRPCServer(
	log *slog.Logger,
	authenticator *auth.Authenticator,
	authService services.IAuthService,
	chatService services.IChatService,
	connectionBufferSize int,
) *grpc.Server {
	interceptors := auth.NewInterceptors(authenticator,
		api.AuthService_Login_FullMethodName,
		api.AuthService_Register_FullMethodName,
		api.ChatService_Connect_FullMethodName,
	)
	s := grpc.NewServer(
		grpc.UnaryInterceptor(interceptors.Unary),
		grpc.StreamInterceptor(interceptors.Stream),
	)
	api.RegisterAuthServiceServer(s, NewAuthServer(authService))
	api.RegisterChatServiceServer(s, NewChatServer(log, chatService, connectionBufferSize))
	return s
}
