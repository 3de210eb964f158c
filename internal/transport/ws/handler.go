package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/service"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"nhooyr.io/websocket"
)

var ErrUnknownTopic = errors.New("unknown topic")

// Authorizer decides whether a user may join a topic.
type Authorizer interface {
	AuthorizeTopic(ctx context.Context, userID uuid.UUID, topic string) error
}

// MatchAuthorizer admits participants of accepted matches to "match:<id>"
// topics.
type MatchAuthorizer struct {
	Matches *service.MatchService
}

func (a MatchAuthorizer) AuthorizeTopic(ctx context.Context, userID uuid.UUID, topic string) error {
	raw, ok := strings.CutPrefix(topic, "match:")
	if !ok {
		return ErrUnknownTopic
	}
	matchID, err := uuid.Parse(raw)
	if err != nil {
		return ErrUnknownTopic
	}
	_, err = a.Matches.CheckConversation(ctx, userID, matchID)
	return err
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers);
// a missing token connects as the guest identity.
func ServeWS(ctx context.Context, hub *Hub, jwtSecret string, guestID uuid.UUID, authz Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := guestID
		if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
			id, err := service.ParseToken(tokenStr, []byte(jwtSecret))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			userID = id
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			jww.WARN.Printf("ws: accept error: %v", err)
			return
		}

		client := NewClient(hub, conn, userID, authz)
		if !submit(hub, hub.register, client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		// The request context ends when this handler returns.
		go client.WritePump(ctx)
		go client.ReadPump(ctx)
	}
}
