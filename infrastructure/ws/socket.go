package ws

import (
	"context"
	"fmt"
	"net/http"
	"pulse-chat/api"
	"pulse-chat/domain/event"
	"pulse-chat/errors"
	"pulse-chat/sink"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	connectionIDHeader = "X-Connection-Id"
	maxFrameSize       = 64 * 1024
)

// serveSocket authenticates the handshake, upgrades it, then registers the connection and runs its two pumps.
// The write pump owns every write on the socket, the read pump runs in the handler goroutine.
func (g *Gateway) serveSocket(w http.ResponseWriter, r *http.Request) {
	if !g.upgrader.CheckOrigin(r) {
		writeJSON(w, http.StatusForbidden, api.ErrorResponse{Error: errors.ReasonUnauthorized, Detail: "origin not allowed"})
		return
	}
	token := bearer(r)
	if _, err := g.authenticator.ValidateToken(token); err != nil {
		writeError(w, errors.ErrUnauthorized)
		return
	}
	conn := sink.NewStreamConnection(g.log, g.config.ConnectionBufferSize)
	defer conn.Close()

	socket, err := g.upgrader.Upgrade(w, r, http.Header{connectionIDHeader: {conn.ID()}})
	if err != nil {
		g.log.Warn("WebSocket upgrade failed", "connection_id", conn.ID(), "error", err)
		return
	}
	userID, err := g.chatService.Connect(r.Context(), token, conn)
	if err != nil {
		g.log.Warn("WebSocket registration refused", "connection_id", conn.ID(), "error", err)
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, errors.ReasonCode(err)),
			time.Now().Add(g.config.WriteTimeout))
		_ = socket.Close()
		return
	}
	defer g.chatService.Disconnect(userID, conn)
	g.log.Info("Client connected", "user_id", userID, "connection_id", conn.ID())

	go g.writePump(socket, conn)
	g.readPump(context.WithoutCancel(r.Context()), socket, userID, conn)
	g.log.Info("Client disconnected", "user_id", userID, "connection_id", conn.ID())
}

func (g *Gateway) readPump(ctx context.Context, socket *websocket.Conn, userID string, conn *sink.StreamConnection) {
	pongWait := 2 * g.config.PingInterval
	socket.SetReadLimit(maxFrameSize)
	_ = socket.SetReadDeadline(time.Now().Add(pongWait))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(g.config.FrameRate), g.config.FrameBurst)
	for {
		var frame api.ClientFrame
		if err := socket.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("WebSocket read failed", "user_id", userID, "error", err)
			}
			return
		}
		err := errors.ErrRateLimited
		if limiter.Allow() {
			err = g.handleFrame(ctx, userID, conn, frame)
		}
		if err != nil {
			g.log.Debug("Frame refused", "user_id", userID, "type", frame.Type, "error", err)
			g.reply(ctx, conn, event.ErrorEvent(errors.ReasonCode(err), err.Error()))
		}
	}
}

func (g *Gateway) handleFrame(ctx context.Context, userID string, conn *sink.StreamConnection, frame api.ClientFrame) error {
	switch {
	case frame.Type == api.FrameSendMessage && frame.Message != nil:
		cmd := frame.Message.ToSendCommand(userID)
		cmd.OriginID = conn.ID()
		message, err := g.chatService.SendMessage(ctx, cmd)
		if err != nil {
			return err
		}
		g.reply(ctx, conn, event.MessageSentEvent(message))
		return nil
	case frame.Type == api.FrameTyping && frame.Typing != nil:
		g.chatService.Typing(ctx, frame.Typing.ToTypingCommand(userID))
		return nil
	case frame.Type == api.FrameAdvanceStatus && frame.Status != nil:
		_, err := g.advance(ctx, userID, *frame.Status)
		return err
	default:
		return fmt.Errorf("%w: unknown frame %q", errors.ErrInvalidMessage, frame.Type)
	}
}

// reply pushes evt to the socket that sent the frame, giving up after the write timeout.
func (g *Gateway) reply(ctx context.Context, conn *sink.StreamConnection, evt event.Event) {
	ctx, cancel := context.WithTimeout(ctx, g.config.WriteTimeout)
	defer cancel()
	if err := conn.Send(ctx, evt); err != nil {
		g.log.Warn("Reply dropped", "connection_id", conn.ID(), "type", evt.Type, "error", err)
	}
}

// writePump drains the connection buffer into the socket and keeps it alive with pings.
func (g *Gateway) writePump(socket *websocket.Conn, conn *sink.StreamConnection) {
	ticker := time.NewTicker(g.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = socket.Close()
	}()

	for {
		select {
		case <-conn.Done():
			_ = socket.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(g.config.WriteTimeout))
			return
		case evt := <-conn.Events():
			_ = socket.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			if err := socket.WriteJSON(api.FromEvent(evt)); err != nil {
				g.log.Warn("WebSocket write failed", "connection_id", conn.ID(), "error", err)
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = socket.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
			if err := socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
