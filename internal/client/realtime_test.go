package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/realtime"
	"github.com/nomance-app/nomance/internal/transport/ws"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const jwtSecret = "realtime-test-secret"

var errDenied = errors.New("denied")

type topicAuthorizer map[string]bool

func (a topicAuthorizer) AuthorizeTopic(ctx context.Context, userID uuid.UUID, topic string) error {
	if !a[topic] {
		return errDenied
	}
	return nil
}

func tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return s
}

func startHub(t *testing.T, allowed ...string) (*ws.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	authz := topicAuthorizer{}
	for _, topic := range allowed {
		authz[topic] = true
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(ws.ServeWS(ctx, hub, jwtSecret, domain.GuestID, authz))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func channelFor(t *testing.T, url string, userID uuid.UUID, topic string) realtime.Channel {
	session := &MemorySession{}
	require.NoError(t, session.Save(tokenFor(t, userID)))
	return New("", url, WithSession(session)).Channel(topic, realtime.ChannelOptions{PresenceKey: userID.String()})
}

// next reads events until one of type T arrives.
func next[T realtime.Event](t *testing.T, events <-chan realtime.Event) T {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream closed")
			if v, ok := ev.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
		}
	}
}

func TestChannelRoundTrip(t *testing.T) {
	matchID := uuid.New()
	topic := domain.Topic(matchID)
	hub, url := startHub(t, topic)
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	chA := channelFor(t, url, alice, topic)
	chB := channelFor(t, url, bob, topic)
	defer chB.Unsubscribe()

	evA, err := chA.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusSubscribed, next[realtime.StatusChanged](t, evA).Status)

	evB, err := chB.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusSubscribed, next[realtime.StatusChanged](t, evB).Status)

	// Presence
	require.NoError(t, chA.Track(ctx, map[string]string{"user_id": alice.String()}))
	require.Eventually(t, func() bool {
		return next[realtime.PresenceSync](t, evB).Has(alice.String())
	}, 3*time.Second, 10*time.Millisecond)

	// Broadcast reaches the peer only
	require.NoError(t, chB.Broadcast(ctx, "typing", map[string]any{"user_id": bob.String(), "typing": true}))
	b := next[realtime.Broadcast](t, evA)
	assert.Equal(t, "typing", b.Event)
	var payload struct {
		Typing bool `json:"typing"`
	}
	require.NoError(t, b.Decode(&payload))
	assert.True(t, payload.Typing)

	// Row changes fan out to every subscriber
	record, _ := json.Marshal(domain.Message{ID: uuid.New(), MatchID: matchID, SenderID: alice, Content: "hi"})
	frame, err := realtime.NewFrame(realtime.FramePostgresChanges, topic, realtime.ChangePayload{
		Event: realtime.ChangeInsert, Table: "messages", Record: record,
	})
	require.NoError(t, err)
	hub.Publish(frame)

	for _, events := range []<-chan realtime.Event{evA, evB} {
		ins := next[realtime.RowInserted](t, events)
		var msg domain.Message
		require.NoError(t, ins.Decode(&msg))
		assert.Equal(t, "hi", msg.Content)
	}

	// Leaving drops alice from the presence set
	require.NoError(t, chA.Unsubscribe())
	require.NoError(t, chA.Unsubscribe())
	require.Eventually(t, func() bool {
		return !next[realtime.PresenceSync](t, evB).Has(alice.String())
	}, 3*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, chA.Track(ctx, nil), ErrChannelClosed)
}

func TestChannelJoinRejected(t *testing.T) {
	_, url := startHub(t)
	ch := channelFor(t, url, uuid.New(), domain.Topic(uuid.New()))
	defer ch.Unsubscribe()

	events, err := ch.Subscribe(context.Background())
	require.NoError(t, err)

	st := next[realtime.StatusChanged](t, events)
	assert.Equal(t, realtime.StatusChannelError, st.Status)
	assert.True(t, errors.Is(st.Err, errJoinRejected))
}

func TestJoinErrorWithMalformedPayload(t *testing.T) {
	logs := captureDebug(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		var join realtime.Frame
		if err := wsjson.Read(r.Context(), conn, &join); err != nil {
			return
		}
		wsjson.Write(r.Context(), conn, realtime.Frame{
			Type:    realtime.FrameJoinError,
			Topic:   join.Topic,
			Payload: json.RawMessage(`"denied"`),
		})
		conn.Read(r.Context())
	}))
	defer srv.Close()

	ch := New("", "ws"+strings.TrimPrefix(srv.URL, "http")).Channel("match:x", realtime.ChannelOptions{})
	events, err := ch.Subscribe(context.Background())
	require.NoError(t, err)

	st := next[realtime.StatusChanged](t, events)
	assert.Equal(t, realtime.StatusChannelError, st.Status)
	assert.ErrorIs(t, st.Err, errJoinRejected)
	assert.Contains(t, logs.String(), "bad join.error payload")
	require.NoError(t, ch.Unsubscribe())
}
