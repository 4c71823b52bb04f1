package ws

import (
	"context"
	"fmt"
	"net/http"
	"pulse-chat/api"
	"pulse-chat/domain"
	"pulse-chat/errors"
	"strconv"

	"github.com/gorilla/mux"
)

func (g *Gateway) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) register(w http.ResponseWriter, r *http.Request) {
	var in api.RegisterRequest
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	token, err := g.authService.Register(in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.AuthResponse{Token: token.String()})
}

func (g *Gateway) login(w http.ResponseWriter, r *http.Request) {
	var in api.LoginRequest
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	token, err := g.authService.Login(in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AuthResponse{Token: token.String()})
}

func (g *Gateway) conversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := g.chatService.Conversations(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ConversationsResponse{Conversations: api.FromSummaries(summaries)})
}

func (g *Gateway) history(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	in := api.HistoryRequest{ReceiverID: query.Get("receiverId"), RoomID: query.Get("roomId")}
	if cursor := query.Get("cursor"); cursor != "" {
		in.Cursor = &cursor
	}
	if limit := query.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: bad limit %q", errors.ErrInvalidMessage, limit))
			return
		}
		in.Limit = n
	}
	messages, cursor, err := g.chatService.History(r.Context(), in.ToHistoryCommand(userID(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.HistoryResponse{Messages: api.FromMessages(messages), Cursor: cursor})
}

// sendMessage is the HTTP fallback of the sendMessage frame.
func (g *Gateway) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in api.SendMessageRequest
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	message, err := g.chatService.SendMessage(r.Context(), in.ToSendCommand(userID(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromMessage(message))
}

func (g *Gateway) advanceStatus(w http.ResponseWriter, r *http.Request) {
	var in api.AdvanceStatusRequest
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	in.MessageID = mux.Vars(r)["id"]
	message, err := g.advance(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromMessage(message))
}

func (g *Gateway) advance(ctx context.Context, userID string, in api.AdvanceStatusRequest) (domain.Message, error) {
	next, err := domain.ParseStatus(in.Status)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	return g.chatService.AdvanceStatus(ctx, domain.AdvanceStatusCommand{
		UserID:    userID,
		MessageID: in.MessageID,
		Status:    next,
	})
}

func (g *Gateway) createRoom(w http.ResponseWriter, r *http.Request) {
	var in api.CreateRoomRequest
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	room, err := g.chatService.CreateRoom(r.Context(), in.ToCreateRoomCommand(userID(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromRoom(room))
}

func (g *Gateway) joinRoom(w http.ResponseWriter, r *http.Request) {
	if err := g.chatService.JoinRoom(r.Context(), domain.RoomID(mux.Vars(r)["id"]), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) leaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := g.chatService.LeaveRoom(r.Context(), domain.RoomID(mux.Vars(r)["id"]), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) presence(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userId"]
	writeJSON(w, http.StatusOK, api.PresenceResponse{UserID: id, Online: g.chatService.IsOnline(id)})
}
