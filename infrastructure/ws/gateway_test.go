package ws_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"pulse-chat/api"
	"pulse-chat/auth"
	"pulse-chat/infrastructure/ws"
	"pulse-chat/moderation"
	"pulse-chat/repositories"
	"pulse-chat/runtime"
	"pulse-chat/runtime/workers"
	"pulse-chat/services"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const origin = "http://localhost:3000"

type gateway struct {
	url           string
	authenticator *auth.Authenticator
	orchestrator  *runtime.Orchestrator
}

func newGateway(t *testing.T, options ...func(*ws.Config)) gateway {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	authenticator := auth.NewAuthenticator("secret", "pulse-chat", time.Hour)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 0), authenticator,
		repositories.NewRoomRepository(db, log), repositories.NewMessageRepository(db, log, nil), moderator,
		runtime.Config{DeliveryTimeout: time.Second, TransitionBufferSize: 16})

	config := ws.Config{AllowedOrigins: []string{origin}, ConnectionBufferSize: 16}
	for _, option := range options {
		option(&config)
	}
	g := ws.NewGateway(log, authenticator,
		services.NewAuthService(repositories.NewUserRepository(db), authenticator),
		services.NewChatService(orchestrator),
		config)
	server := httptest.NewServer(g.Handler())
	t.Cleanup(server.Close)
	return gateway{url: server.URL, authenticator: authenticator, orchestrator: orchestrator}
}

// start runs the background workers, presence is only announced once they are up.
func (g gateway) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, g.orchestrator.Load(ctx))
	done := make(chan error, 1)
	go func() { done <- g.orchestrator.Start(ctx) }()
	t.Cleanup(func() {
		g.orchestrator.Stop()
		cancel()
		require.NoError(t, <-done)
	})
}

func (g gateway) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, g.url+path, &payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signUp returns the token and the user id of a fresh account.
func (g gateway) signUp(t *testing.T, email string) (string, string) {
	t.Helper()
	var resp api.AuthResponse
	status := g.do(t, http.MethodPost, "/api/auth/register", "", api.RegisterRequest{Email: email, Password: "ComplexPass123!"}, &resp)
	require.Equal(t, http.StatusCreated, status)
	claims, err := g.authenticator.ValidateToken(resp.Token)
	require.NoError(t, err)
	return resp.Token, claims.UserID
}

func (g gateway) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{"Origin": {origin}}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(g.url, "http")+"/ws?token="+token, header)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Connection-Id"))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func next(t *testing.T, conn *websocket.Conn) api.ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt api.ServerEvent
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestGateway_Http_Fallback_Send_Reaches_Socket(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	aliceToken, _ := g.signUp(t, "alice@example.com")
	bobToken, bobID := g.signUp(t, "bob@example.com")

	// Given bob has an open socket
	bob := g.dial(t, bobToken)

	// When alice posts over plain HTTP
	var sent api.Message
	status := g.do(t, http.MethodPost, "/api/messages", aliceToken, api.SendMessageRequest{ReceiverID: bobID, Content: "hello"}, &sent)
	req.Equal(http.StatusCreated, status)

	// Then the message is pushed to bob
	evt := next(t, bob)
	req.Equal("newMessage", evt.Type)
	req.Equal(sent.ID, evt.Message.ID)

	var presence api.PresenceResponse
	req.Equal(http.StatusOK, g.do(t, http.MethodGet, "/api/presence/"+bobID, aliceToken, nil, &presence))
	req.True(presence.Online)
}

func TestGateway_Socket_Frames(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	aliceToken, aliceID := g.signUp(t, "alice@example.com")
	bobToken, bobID := g.signUp(t, "bob@example.com")
	alice := g.dial(t, aliceToken)
	bob := g.dial(t, bobToken)

	// Typing then a message from alice's socket
	req.NoError(alice.WriteJSON(api.ClientFrame{Type: api.FrameTyping, Typing: &api.TypingRequest{ReceiverID: bobID, Typing: true}}))
	evt := next(t, bob)
	req.Equal("userTyping", evt.Type)
	req.Equal(aliceID, evt.Typing.UserID)

	req.NoError(alice.WriteJSON(api.ClientFrame{Type: api.FrameSendMessage, Message: &api.SendMessageRequest{ReceiverID: bobID, Content: "hi"}}))
	evt = next(t, bob)
	req.Equal("newMessage", evt.Type)
	messageID := evt.Message.ID

	// Alice's socket gets the stored message back
	evt = next(t, alice)
	req.Equal("messageSent", evt.Type)
	req.Equal(messageID, evt.Message.ID)
	req.Equal("hi", evt.Message.Content)
	req.False(evt.Message.CreatedAt.IsZero())

	// Bob acknowledges, alice hears about it
	req.NoError(bob.WriteJSON(api.ClientFrame{Type: api.FrameAdvanceStatus, Status: &api.AdvanceStatusRequest{MessageID: messageID, Status: "seen"}}))
	evt = next(t, alice)
	req.Equal("messageStatus", evt.Type)
	req.Equal("seen", evt.Status.Status)

	// A refused frame comes back as an error event
	req.NoError(alice.WriteJSON(api.ClientFrame{Type: api.FrameSendMessage, Message: &api.SendMessageRequest{ReceiverID: bobID, Content: "  "}}))
	evt = next(t, alice)
	req.Equal("messageError", evt.Type)
	req.Equal("INVALID_MESSAGE", evt.Error.Reason)

	req.NoError(alice.WriteJSON(api.ClientFrame{Type: "dance"}))
	evt = next(t, alice)
	req.Equal("messageError", evt.Type)
}

func TestGateway_Socket_Handshake_Refusals(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	token, _ := g.signUp(t, "alice@example.com")
	url := "ws" + strings.TrimPrefix(g.url, "http") + "/ws?token="

	_, resp, err := websocket.DefaultDialer.Dial(url+"forged", http.Header{"Origin": {origin}})
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+token, http.Header{"Origin": {"http://evil.example"}})
	req.Error(err)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestGateway_Rooms(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	aliceToken, _ := g.signUp(t, "alice@example.com")
	bobToken, _ := g.signUp(t, "bob@example.com")

	req.Equal(http.StatusUnauthorized, g.do(t, http.MethodGet, "/api/conversations", "", nil, nil))

	var room api.Room
	req.Equal(http.StatusCreated, g.do(t, http.MethodPost, "/api/rooms", aliceToken, api.CreateRoomRequest{Name: "General"}, &room))

	// Bob must join before posting
	req.Equal(http.StatusForbidden, g.do(t, http.MethodPost, "/api/messages", bobToken, api.SendMessageRequest{RoomID: room.ID, Content: "hey"}, nil))
	req.Equal(http.StatusNoContent, g.do(t, http.MethodPost, "/api/rooms/"+room.ID+"/join", bobToken, nil, nil))
	req.Equal(http.StatusConflict, g.do(t, http.MethodPost, "/api/rooms/"+room.ID+"/join", bobToken, nil, nil))
	req.Equal(http.StatusCreated, g.do(t, http.MethodPost, "/api/messages", bobToken, api.SendMessageRequest{RoomID: room.ID, Content: "hey"}, nil))

	var history api.HistoryResponse
	req.Equal(http.StatusOK, g.do(t, http.MethodGet, "/api/history?roomId="+room.ID+"&limit=10", aliceToken, nil, &history))
	req.Len(history.Messages, 1)
	req.Nil(history.Cursor)
	req.Equal(http.StatusBadRequest, g.do(t, http.MethodGet, "/api/history?roomId="+room.ID+"&limit=x", aliceToken, nil, nil))

	var conversations api.ConversationsResponse
	req.Equal(http.StatusOK, g.do(t, http.MethodGet, "/api/conversations", bobToken, nil, &conversations))
	req.Len(conversations.Conversations, 1)
	req.Equal("hey", conversations.Conversations[0].LastMessage.Content)

	req.Equal(http.StatusNoContent, g.do(t, http.MethodPost, "/api/rooms/"+room.ID+"/leave", bobToken, nil, nil))
	req.Equal(http.StatusNotFound, g.do(t, http.MethodPost, "/api/rooms/missing/join", bobToken, nil, nil))
}

func TestGateway_Socket_Frames_Are_Rate_Limited(t *testing.T) {
	req := require.New(t)
	g := newGateway(t, func(c *ws.Config) {
		c.FrameRate = 0.01
		c.FrameBurst = 1
	})
	aliceToken, _ := g.signUp(t, "alice@example.com")
	bobToken, bobID := g.signUp(t, "bob@example.com")
	alice := g.dial(t, aliceToken)
	bob := g.dial(t, bobToken)

	// When alice sends two frames in a row
	typing := api.ClientFrame{Type: api.FrameTyping, Typing: &api.TypingRequest{ReceiverID: bobID, Typing: true}}
	req.NoError(alice.WriteJSON(typing))
	req.NoError(alice.WriteJSON(typing))

	// Then the first one is relayed and the second one refused
	req.Equal("userTyping", next(t, bob).Type)
	evt := next(t, alice)
	req.Equal("messageError", evt.Type)
	req.Equal("RATE_LIMITED", evt.Error.Reason)
}

func TestGateway_Failed_Upgrade_Announces_No_Presence(t *testing.T) {
	req := require.New(t)
	g := newGateway(t)
	g.start(t)
	aliceToken, _ := g.signUp(t, "alice@example.com")
	bobToken, bobID := g.signUp(t, "bob@example.com")

	// Given bob is online and has talked with alice
	bob := g.dial(t, bobToken)
	req.Equal(http.StatusCreated, g.do(t, http.MethodPost, "/api/messages", aliceToken, api.SendMessageRequest{ReceiverID: bobID, Content: "hello"}, nil))
	req.Equal("newMessage", next(t, bob).Type)

	// When alice hits the socket endpoint without a WebSocket handshake
	request, err := http.NewRequest(http.MethodGet, g.url+"/ws?token="+aliceToken, nil)
	req.NoError(err)
	request.Header.Set("Origin", origin)
	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)

	// Then bob hears nothing about alice
	req.NoError(bob.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	var evt api.ServerEvent
	err = bob.ReadJSON(&evt)
	req.Error(err, "unexpected %s event", evt.Type)
}
