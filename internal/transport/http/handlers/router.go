package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/service"
	"github.com/nomance-app/nomance/internal/transport/http/middleware"
)

// Services groups what the router exposes.
type Services struct {
	Auth     *service.AuthService
	Matches  *service.MatchService
	Messages *service.MessageService
}

// NewRouter wires the REST API. ws is mounted at /ws when non-nil.
func NewRouter(svc Services, jwtSecret string, guestID uuid.UUID, ws http.Handler) http.Handler {
	authHandler := NewAuthHandler(svc.Auth)
	matchHandler := NewMatchHandler(svc.Matches)
	messageHandler := NewMessageHandler(svc.Messages)

	auth := middleware.Auth(jwtSecret, guestID)

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /api/v1/auth/me", auth(http.HandlerFunc(authHandler.Me)))

	// Matches
	mux.Handle("POST /api/v1/matches/like", auth(http.HandlerFunc(matchHandler.Like)))
	mux.Handle("GET /api/v1/matches", auth(http.HandlerFunc(matchHandler.List)))
	mux.Handle("GET /api/v1/matches/{id}", auth(http.HandlerFunc(matchHandler.Get)))

	// Messages
	mux.Handle("GET /api/v1/matches/{id}/messages", auth(http.HandlerFunc(messageHandler.List)))
	mux.Handle("POST /api/v1/matches/{id}/messages", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("POST /api/v1/matches/{id}/messages/read", auth(http.HandlerFunc(messageHandler.MarkRead)))
	mux.Handle("POST /api/v1/messages/{id}/read", auth(http.HandlerFunc(messageHandler.MarkMessageRead)))

	if ws != nil {
		mux.Handle("GET /ws", ws)
	}

	return middleware.CORS(mux)
}
