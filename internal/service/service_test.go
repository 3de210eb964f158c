package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/repository/memory"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "service-test-secret"

type spyNotifier struct {
	mu       sync.Mutex
	inserted []domain.Message
	updated  []domain.Message
}

func (n *spyNotifier) NotifyMessageInserted(msg *domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inserted = append(n.inserted, *msg)
}

func (n *spyNotifier) NotifyMessageUpdated(msg *domain.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, *msg)
}

type fixture struct {
	auth     *AuthService
	matches  *MatchService
	messages *MessageService
	notifier *spyNotifier
}

func newFixture() *fixture {
	store := memory.New()
	matches := NewMatchService(store.Matches(), store.Users())
	messages := NewMessageService(store.Messages(), matches)
	notifier := &spyNotifier{}
	messages.SetNotifier(notifier)
	return &fixture{
		auth:     NewAuthService(store.Users(), testSecret),
		matches:  matches,
		messages: messages,
		notifier: notifier,
	}
}

func (f *fixture) register(t *testing.T, name string) *domain.User {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), RegisterInput{
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: strings.ToUpper(name[:1]) + name[1:],
		Password:    "Secret123",
	})
	require.NoError(t, err)
	return resp.User
}

// matched returns two users with an accepted match between them.
func (f *fixture) matched(t *testing.T) (*domain.User, *domain.User, *domain.Match) {
	t.Helper()
	ctx := context.Background()
	a, b := f.register(t, "ana"), f.register(t, "bobo")
	_, err := f.matches.Like(ctx, a.ID, b.ID)
	require.NoError(t, err)
	m, err := f.matches.Like(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.True(t, m.Accepted())
	return a, b, m
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.auth.Register(ctx, RegisterInput{Email: "ana@example.com", Username: "ana", DisplayName: "Ana", Password: "Secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.User.PasswordHash)

	id, err := ParseToken(resp.AccessToken, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, id)

	_, err = f.auth.Register(ctx, RegisterInput{Email: "ana@example.com", Username: "other", Password: "Secret123"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = f.auth.Register(ctx, RegisterInput{Email: "other@example.com", Username: "ana", Password: "Secret123"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCreds)

	login, err := f.auth.Login(ctx, LoginInput{Email: "ana@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	me, err := f.auth.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", me.Username)

	_, err = f.auth.Me(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestParseTokenRejectsOtherSecret(t *testing.T) {
	f := newFixture()
	resp, err := f.auth.Register(context.Background(), RegisterInput{Email: "a@b.io", Username: "ab", Password: "Secret123"})
	require.NoError(t, err)

	_, err = ParseToken(resp.AccessToken, []byte("another-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseToken("garbage", []byte(testSecret))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLikeLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, b := f.register(t, "ana"), f.register(t, "bobo")

	_, err := f.matches.Like(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrCannotLikeSelf)

	_, err = f.matches.Like(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	m, err := f.matches.Like(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPending, m.Status)
	assert.Equal(t, a.ID, m.InitiatorID)
	assert.True(t, m.User1ID.String() < m.User2ID.String(), "canonical order")

	_, err = f.matches.Like(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, ErrAlreadyLiked)

	_, err = f.matches.CheckConversation(ctx, a.ID, m.ID)
	assert.ErrorIs(t, err, ErrMatchNotAccepted)

	accepted, err := f.matches.Like(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, accepted.ID)
	assert.True(t, accepted.Accepted())

	_, err = f.matches.Like(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, ErrAlreadyMatched)

	list, err := f.matches.ListMatches(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].OtherProfile(b.ID).DisplayName)
}

func TestGetMatchAccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, _, m := f.matched(t)
	stranger := f.register(t, "cyra")

	d, err := f.matches.GetMatch(ctx, a.ID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, d.ID)

	_, err = f.matches.GetMatch(ctx, stranger.ID, m.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.matches.GetMatch(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrMatchNotFound)

	_, err = f.matches.CheckConversation(ctx, domain.GuestID, m.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, _, m := f.matched(t)
	nonce := uuid.New()

	msg, err := f.messages.Send(ctx, a.ID, m.ID, SendMessageInput{Content: "  hi  ", Nonce: &nonce})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	require.NotNil(t, msg.Nonce)
	assert.Equal(t, nonce, *msg.Nonce)

	retry, err := f.messages.Send(ctx, a.ID, m.ID, SendMessageInput{Content: "hi", Nonce: &nonce})
	require.NoError(t, err)
	assert.Equal(t, msg.ID, retry.ID, "nonce makes the write idempotent")

	msgs, err := f.messages.List(ctx, a.ID, m.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	f.notifier.mu.Lock()
	assert.NotEmpty(t, f.notifier.inserted)
	assert.Equal(t, m.ID, f.notifier.inserted[0].MatchID)
	f.notifier.mu.Unlock()

	_, err = f.messages.Send(ctx, a.ID, m.ID, SendMessageInput{Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = f.messages.Send(ctx, a.ID, m.ID, SendMessageInput{Content: strings.Repeat("x", 2001)})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestSendRequiresAcceptedMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, b := f.register(t, "ana"), f.register(t, "bobo")
	m, err := f.matches.Like(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.messages.Send(ctx, a.ID, m.ID, SendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrMatchNotAccepted)

	_, err = f.messages.List(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestMarkRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, b, m := f.matched(t)

	fromA, err := f.messages.Send(ctx, a.ID, m.ID, SendMessageInput{Content: "hey"})
	require.NoError(t, err)
	fromB, err := f.messages.Send(ctx, b.ID, m.ID, SendMessageInput{Content: "hello"})
	require.NoError(t, err)

	updated, err := f.messages.MarkRead(ctx, b.ID, m.ID, MarkReadInput{IDs: []uuid.UUID{fromA.ID, fromB.ID}})
	require.NoError(t, err)
	require.Len(t, updated, 1, "own messages are not marked")
	assert.Equal(t, fromA.ID, updated[0].ID)
	assert.NotNil(t, updated[0].ReadAt)

	again, err := f.messages.MarkRead(ctx, b.ID, m.ID, MarkReadInput{})
	require.NoError(t, err)
	assert.Empty(t, again)

	f.notifier.mu.Lock()
	assert.Len(t, f.notifier.updated, 1)
	f.notifier.mu.Unlock()
}

func TestMarkMessageRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a, b, m := f.matched(t)

	msg, err := f.messages.Send(ctx, a.ID, m.ID, SendMessageInput{Content: "hey"})
	require.NoError(t, err)

	require.NoError(t, f.messages.MarkMessageRead(ctx, a.ID, msg.ID), "own message is a no-op")
	require.NoError(t, f.messages.MarkMessageRead(ctx, b.ID, msg.ID))
	require.NoError(t, f.messages.MarkMessageRead(ctx, b.ID, msg.ID))

	f.notifier.mu.Lock()
	assert.Len(t, f.notifier.updated, 1)
	f.notifier.mu.Unlock()

	err = f.messages.MarkMessageRead(ctx, b.ID, uuid.New())
	assert.True(t, errors.Is(err, ErrMessageNotFound))
}
