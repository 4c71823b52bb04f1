// Package ws serves browsers: a WebSocket push channel and the REST endpoints around it.
package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"pulse-chat/api"
	"pulse-chat/auth"
	"pulse-chat/errors"
	"pulse-chat/services"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

type Config struct {
	AllowedOrigins       []string
	ConnectionBufferSize int
	WriteTimeout         time.Duration
	PingInterval         time.Duration
	// FrameRate and FrameBurst bound the inbound frames of one socket.
	FrameRate  float64
	FrameBurst int
}

type Gateway struct {
	log           *slog.Logger
	authenticator *auth.Authenticator
	authService   services.IAuthService
	chatService   services.IChatService
	upgrader      websocket.Upgrader
	config        Config
}

func NewGateway(
	log *slog.Logger,
	authenticator *auth.Authenticator,
	authService services.IAuthService,
	chatService services.IChatService,
	config Config,
) *Gateway {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.FrameRate <= 0 {
		config.FrameRate = 20
	}
	if config.FrameBurst <= 0 {
		config.FrameBurst = 2 * int(config.FrameRate)
	}
	return &Gateway{
		log:           log,
		authenticator: authenticator,
		authService:   authService,
		chatService:   chatService,
		upgrader:      newUpgrader(config.AllowedOrigins),
		config:        config,
	}
}

// newUpgrader accepts the listed origins only, "*" accepts any.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return allowed["*"] || allowed[r.Header.Get("Origin")]
		},
	}
}

// Handler is the router wrapped with CORS.
func (g *Gateway) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   g.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length", connectionIDHeader},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(g.Router())
}

func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", g.health).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/register", g.register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", g.login).Methods(http.MethodPost)
	r.HandleFunc("/ws", g.serveSocket).Methods(http.MethodGet)

	private := r.PathPrefix("/api").Subrouter()
	private.Use(g.authenticate)
	private.HandleFunc("/conversations", g.conversations).Methods(http.MethodGet)
	private.HandleFunc("/history", g.history).Methods(http.MethodGet)
	private.HandleFunc("/messages", g.sendMessage).Methods(http.MethodPost)
	private.HandleFunc("/messages/{id}/status", g.advanceStatus).Methods(http.MethodPost)
	private.HandleFunc("/rooms", g.createRoom).Methods(http.MethodPost)
	private.HandleFunc("/rooms/{id}/join", g.joinRoom).Methods(http.MethodPost)
	private.HandleFunc("/rooms/{id}/leave", g.leaveRoom).Methods(http.MethodPost)
	private.HandleFunc("/presence/{userId}", g.presence).Methods(http.MethodGet)
	return r
}

// authenticate resolves the bearer token into the request identity.
func (g *Gateway) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.authenticator.ValidateToken(bearer(r))
		if err != nil {
			writeError(w, errors.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), claims.UserID, claims.Roles)))
	})
}

// bearer reads the token from the Authorization header, or from the token query parameter
// since browsers cannot set headers on a WebSocket handshake.
func bearer(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.MapToHTTPStatus(err), api.ErrorResponse{Error: errors.ReasonCode(err), Detail: err.Error()})
}
