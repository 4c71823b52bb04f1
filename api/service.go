package api

import (
	"context"

	"google.golang.org/grpc"
)

const (
	AuthServiceName = "pulse.v1.AuthService"
	ChatServiceName = "pulse.v1.ChatService"
)

const (
	AuthService_Login_FullMethodName    = "/" + AuthServiceName + "/Login"
	AuthService_Register_FullMethodName = "/" + AuthServiceName + "/Register"

	ChatService_Connect_FullMethodName       = "/" + ChatServiceName + "/Connect"
	ChatService_SendMessage_FullMethodName   = "/" + ChatServiceName + "/SendMessage"
	ChatService_Typing_FullMethodName        = "/" + ChatServiceName + "/Typing"
	ChatService_CreateRoom_FullMethodName    = "/" + ChatServiceName + "/CreateRoom"
	ChatService_JoinRoom_FullMethodName      = "/" + ChatServiceName + "/JoinRoom"
	ChatService_LeaveRoom_FullMethodName     = "/" + ChatServiceName + "/LeaveRoom"
	ChatService_AdvanceStatus_FullMethodName = "/" + ChatServiceName + "/AdvanceStatus"
	ChatService_History_FullMethodName       = "/" + ChatServiceName + "/History"
	ChatService_Conversations_FullMethodName = "/" + ChatServiceName + "/Conversations"
	ChatService_IsOnline_FullMethodName      = "/" + ChatServiceName + "/IsOnline"
)

type AuthServiceServer interface {
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
}

type ChatServiceServer interface {
	Connect(*ConnectRequest, grpc.ServerStreamingServer[ServerEvent]) error
	SendMessage(context.Context, *SendMessageRequest) (*Message, error)
	Typing(context.Context, *TypingRequest) (*Empty, error)
	CreateRoom(context.Context, *CreateRoomRequest) (*Room, error)
	JoinRoom(context.Context, *RoomRequest) (*Empty, error)
	LeaveRoom(context.Context, *RoomRequest) (*Empty, error)
	AdvanceStatus(context.Context, *AdvanceStatusRequest) (*Message, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	Conversations(context.Context, *Empty) (*ConversationsResponse, error)
	IsOnline(context.Context, *PresenceRequest) (*PresenceResponse, error)
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(AuthServiceName, "Login", AuthServiceServer.Login),
		unary(AuthServiceName, "Register", AuthServiceServer.Register),
	},
}

var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ChatServiceName, "SendMessage", ChatServiceServer.SendMessage),
		unary(ChatServiceName, "Typing", ChatServiceServer.Typing),
		unary(ChatServiceName, "CreateRoom", ChatServiceServer.CreateRoom),
		unary(ChatServiceName, "JoinRoom", ChatServiceServer.JoinRoom),
		unary(ChatServiceName, "LeaveRoom", ChatServiceServer.LeaveRoom),
		unary(ChatServiceName, "AdvanceStatus", ChatServiceServer.AdvanceStatus),
		unary(ChatServiceName, "History", ChatServiceServer.History),
		unary(ChatServiceName, "Conversations", ChatServiceServer.Conversations),
		unary(ChatServiceName, "IsOnline", ChatServiceServer.IsOnline),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
		},
	},
}

// unary builds the descriptor of a request/response method from a method expression of the server interface.
func unary[S any, Req any, Res any](service, method string, call func(S, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	m := new(ConnectRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ChatServiceServer).Connect(m, &grpc.GenericServerStream[ConnectRequest, ServerEvent]{ServerStream: stream})
}

// AuthServiceClient calls the account endpoints.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func (c *AuthServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, AuthService_Login_FullMethodName, in, opts)
}

func (c *AuthServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, AuthService_Register_FullMethodName, in, opts)
}

// ChatServiceClient calls the chat endpoints. The caller adds the bearer token to the outgoing metadata.
type ChatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) *ChatServiceClient {
	return &ChatServiceClient{cc: cc}
}

func (c *ChatServiceClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ServerEvent], error) {
	stream, err := c.cc.NewStream(ctx, &ChatService_ServiceDesc.Streams[0], ChatService_Connect_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[ConnectRequest, ServerEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *ChatServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, ChatService_SendMessage_FullMethodName, in, opts)
}

func (c *ChatServiceClient) Typing(ctx context.Context, in *TypingRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_Typing_FullMethodName, in, opts)
}

func (c *ChatServiceClient) CreateRoom(ctx context.Context, in *CreateRoomRequest, opts ...grpc.CallOption) (*Room, error) {
	return invoke[Room](ctx, c.cc, ChatService_CreateRoom_FullMethodName, in, opts)
}

func (c *ChatServiceClient) JoinRoom(ctx context.Context, in *RoomRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_JoinRoom_FullMethodName, in, opts)
}

func (c *ChatServiceClient) LeaveRoom(ctx context.Context, in *RoomRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_LeaveRoom_FullMethodName, in, opts)
}

func (c *ChatServiceClient) AdvanceStatus(ctx context.Context, in *AdvanceStatusRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, ChatService_AdvanceStatus_FullMethodName, in, opts)
}

func (c *ChatServiceClient) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, ChatService_History_FullMethodName, in, opts)
}

func (c *ChatServiceClient) Conversations(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ConversationsResponse, error) {
	return invoke[ConversationsResponse](ctx, c.cc, ChatService_Conversations_FullMethodName, in, opts)
}

func (c *ChatServiceClient) IsOnline(ctx context.Context, in *PresenceRequest, opts ...grpc.CallOption) (*PresenceResponse, error) {
	return invoke[PresenceResponse](ctx, c.cc, ChatService_IsOnline_FullMethodName, in, opts)
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
