package conversation

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/client"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/repository/memory"
	"github.com/nomance-app/nomance/internal/service"
	"github.com/nomance-app/nomance/internal/transport/http/handlers"
	"github.com/nomance-app/nomance/internal/transport/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const e2eSecret = "e2e-secret"

// platform runs the full backing server on the in-memory store.
type platform struct {
	api, realtime string
}

func startPlatform(t *testing.T) platform {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := memory.New()
	matches := service.NewMatchService(store.Matches(), store.Users())
	messages := service.NewMessageService(store.Messages(), matches)

	hub := ws.NewHub()
	go hub.Run(ctx)
	messages.SetNotifier(ws.NewHubNotifier(hub))

	wsHandler := ws.ServeWS(ctx, hub, e2eSecret, domain.GuestID, ws.MatchAuthorizer{Matches: matches})
	router := handlers.NewRouter(handlers.Services{
		Auth:     service.NewAuthService(store.Users(), e2eSecret),
		Matches:  matches,
		Messages: messages,
	}, e2eSecret, domain.GuestID, wsHandler)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return platform{
		api:      srv.URL,
		realtime: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

type participant struct {
	user   *domain.User
	client *client.Client
	ui     *spyUI
}

func (p platform) join(t *testing.T, name string) *participant {
	t.Helper()
	c := client.New(p.api, p.realtime, client.WithSession(&client.MemorySession{}))
	u, err := c.SignUp(context.Background(), client.SignUpInput{
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: name,
		Password:    "Secret123",
	})
	require.NoError(t, err)
	return &participant{user: u, client: c, ui: &spyUI{}}
}

func (p *participant) open(t *testing.T, matchID uuid.UUID) *View {
	t.Helper()
	v := Open(context.Background(), Config{
		MatchID:     matchID,
		Identity:    domain.Authenticated(p.user),
		Store:       p.client,
		Realtime:    p.client,
		Navigator:   p.ui,
		Toaster:     p.ui,
		Render:      p.ui.render,
		QuietPeriod: 150 * time.Millisecond,
	})
	t.Cleanup(v.Close)
	return v
}

func withContent(msgs []domain.Message, content string) []domain.Message {
	var out []domain.Message
	for _, m := range msgs {
		if m.Content == content {
			out = append(out, m)
		}
	}
	return out
}

func TestConversationAgainstPlatform(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a server")
	}
	const wait = 5 * time.Second
	ctx := context.Background()

	p := startPlatform(t)
	ana, bo := p.join(t, "ana"), p.join(t, "bobo")

	_, err := ana.client.Like(ctx, bo.user.ID)
	require.NoError(t, err)
	m, err := bo.client.Like(ctx, ana.user.ID)
	require.NoError(t, err)
	require.True(t, m.Accepted())

	early, err := bo.client.InsertMessage(ctx, domain.NewMessage{MatchID: m.ID, Content: "hello", Nonce: uuid.New()})
	require.NoError(t, err)

	anaView := ana.open(t, m.ID)
	require.Eventually(t, func() bool {
		msgs, err := bo.client.ListMessages(ctx, m.ID)
		return err == nil && len(msgs) == 1 && msgs[0].ID == early.ID && msgs[0].ReadAt != nil
	}, wait, tick, "loading the conversation marks the peer's message read")

	boView := bo.open(t, m.ID)
	require.Eventually(t, func() bool {
		return anaView.Snapshot().PeerOnline && boView.Snapshot().PeerOnline
	}, wait, tick)

	boView.Keystroke("h")
	require.Eventually(t, func() bool { return anaView.Snapshot().PeerTyping }, wait, tick)
	require.Eventually(t, func() bool { return !anaView.Snapshot().PeerTyping }, wait, tick,
		"typing clears after the quiet period")

	anaView.Send("hi")
	require.Eventually(t, func() bool {
		got := withContent(boView.Snapshot().Messages, "hi")
		return len(got) == 1 && got[0].SenderID == ana.user.ID
	}, wait, tick)
	require.Eventually(t, func() bool {
		got := withContent(anaView.Snapshot().Messages, "hi")
		return len(got) == 1 && !got[0].Pending && got[0].ReadAt != nil
	}, wait, tick, "sender sees one confirmed copy, read by the peer")
	assert.Len(t, anaView.Snapshot().Messages, 2)

	boView.Close()
	require.Eventually(t, func() bool { return !anaView.Snapshot().PeerOnline }, wait, tick)
	assert.Empty(t, ana.ui.toasts())
	assert.Empty(t, ana.ui.redirected())
}

func TestConversationRejectsOutsider(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a server")
	}
	ctx := context.Background()

	p := startPlatform(t)
	ana, bo, cy := p.join(t, "ana"), p.join(t, "bobo"), p.join(t, "cyra")
	_, err := ana.client.Like(ctx, bo.user.ID)
	require.NoError(t, err)
	m, err := bo.client.Like(ctx, ana.user.ID)
	require.NoError(t, err)

	v := cy.open(t, m.ID)
	select {
	case <-v.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("view stayed open for a non-participant")
	}
	assert.Equal(t, []redirect{{MatchesPath, errNotParticipant.Error()}}, cy.ui.redirected())
	assert.Equal(t, []string{errNotParticipant.Error()}, cy.ui.toasts())
}

func TestConversationRejectsPendingMatch(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a server")
	}
	ctx := context.Background()

	p := startPlatform(t)
	ana, bo := p.join(t, "ana"), p.join(t, "bobo")
	m, err := ana.client.Like(ctx, bo.user.ID)
	require.NoError(t, err)
	require.False(t, m.Accepted())

	for _, who := range []*participant{ana, bo} {
		v := who.open(t, m.ID)
		select {
		case <-v.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("view stayed open for a pending match")
		}
	}
	for _, who := range []*participant{ana, bo} {
		assert.Equal(t, []redirect{{MatchesPath, errMatchNotAccepted.Error()}}, who.ui.redirected())
		assert.Equal(t, []string{errMatchNotAccepted.Error()}, who.ui.toasts())
	}
}
