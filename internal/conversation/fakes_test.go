package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/realtime"
	"github.com/pkg/errors"
)

var errStoreDown = errors.New("store unavailable")

type insertResult struct {
	msg *domain.Message
	err error
}

type fakeStore struct {
	mu sync.Mutex

	match      *domain.MatchDetail
	matchErr   error
	history    []domain.Message
	historyErr error

	// matchGate and historyGate, when set, hold the reads until closed.
	matchGate    chan struct{}
	historyGate  chan struct{}
	historyReads int

	// inserts receives every write; when gate is set the write blocks until a
	// result is sent on it.
	inserts []domain.NewMessage
	gate    chan insertResult
	failAll error

	markReads    [][]uuid.UUID
	markMessages []uuid.UUID
}

func (s *fakeStore) GetMatch(ctx context.Context, matchID uuid.UUID) (*domain.MatchDetail, error) {
	s.mu.Lock()
	gate := s.matchGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match, s.matchErr
}

func (s *fakeStore) ListMessages(ctx context.Context, matchID uuid.UUID) ([]domain.Message, error) {
	s.mu.Lock()
	s.historyReads++
	gate := s.historyGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.history...), s.historyErr
}

func (s *fakeStore) historyReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyReads
}

func (s *fakeStore) InsertMessage(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	s.mu.Lock()
	s.inserts = append(s.inserts, msg)
	gate, failAll := s.gate, s.failAll
	s.mu.Unlock()

	if gate != nil {
		r := <-gate
		return r.msg, r.err
	}
	if failAll != nil {
		return nil, failAll
	}
	return durable(msg), nil
}

func (s *fakeStore) MarkRead(ctx context.Context, matchID uuid.UUID, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markReads = append(s.markReads, ids)
	return nil
}

func (s *fakeStore) MarkMessageRead(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markMessages = append(s.markMessages, id)
	return nil
}

func (s *fakeStore) insertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserts)
}

func (s *fakeStore) lastInsert() domain.NewMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts[len(s.inserts)-1]
}

func (s *fakeStore) reads() ([][]uuid.UUID, []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]uuid.UUID(nil), s.markReads...), append([]uuid.UUID(nil), s.markMessages...)
}

// durable is the row the platform stores for msg.
func durable(msg domain.NewMessage) *domain.Message {
	nonce := msg.Nonce
	return &domain.Message{
		ID:        uuid.New(),
		MatchID:   msg.MatchID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Nonce:     &nonce,
		CreatedAt: time.Now().UTC(),
	}
}

type sentBroadcast struct {
	event   string
	payload typingPayload
}

type fakeChannel struct {
	topic string
	opts  realtime.ChannelOptions

	events chan realtime.Event

	mu           sync.Mutex
	subscribed   bool
	broadcasts   []sentBroadcast
	tracks       []presencePayload
	unsubscribed int
	closeOnce    sync.Once
}

func (c *fakeChannel) Subscribe(ctx context.Context) (<-chan realtime.Event, error) {
	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()
	return c.events, nil
}

func (c *fakeChannel) Broadcast(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts = append(c.broadcasts, sentBroadcast{event: event, payload: payload.(typingPayload)})
	return nil
}

func (c *fakeChannel) Track(ctx context.Context, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, payload.(presencePayload))
	return nil
}

func (c *fakeChannel) Unsubscribe() error {
	c.mu.Lock()
	c.unsubscribed++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.events) })
	return nil
}

// deliver pushes an event as if it came from the platform. Events sent
// after Unsubscribe are discarded.
func (c *fakeChannel) deliver(ev realtime.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribed > 0 {
		return
	}
	c.events <- ev
}

func (c *fakeChannel) typingSignals() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bool, 0, len(c.broadcasts))
	for _, b := range c.broadcasts {
		out = append(out, b.payload.Typing)
	}
	return out
}

func (c *fakeChannel) trackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tracks)
}

func (c *fakeChannel) unsubscribeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribed
}

type fakeRealtime struct {
	mu       sync.Mutex
	channels []*fakeChannel
}

func (r *fakeRealtime) Channel(topic string, opts realtime.ChannelOptions) realtime.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := &fakeChannel{topic: topic, opts: opts, events: make(chan realtime.Event, 64)}
	r.channels = append(r.channels, ch)
	return ch
}

func (r *fakeRealtime) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func (r *fakeRealtime) channel(i int) *fakeChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[i]
}

type redirect struct {
	path, reason string
}

type spyUI struct {
	mu        sync.Mutex
	redirects []redirect
	errors    []string
	renders   int
}

func (u *spyUI) Redirect(path, reason string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.redirects = append(u.redirects, redirect{path, reason})
}

func (u *spyUI) Error(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errors = append(u.errors, message)
}

func (u *spyUI) render(Snapshot) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.renders++
}

func (u *spyUI) renderCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.renders
}

func (u *spyUI) toasts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.errors...)
}

func (u *spyUI) redirected() []redirect {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]redirect(nil), u.redirects...)
}

func inserted(msg domain.Message) realtime.Event {
	data, _ := json.Marshal(msg)
	return realtime.RowInserted{Table: "messages", Record: data}
}

func updated(msg domain.Message) realtime.Event {
	data, _ := json.Marshal(msg)
	return realtime.RowUpdated{Table: "messages", Record: data}
}

func typing(userID uuid.UUID, on bool) realtime.Event {
	data, _ := json.Marshal(typingPayload{UserID: userID, Typing: on})
	return realtime.Broadcast{Event: "typing", Payload: data}
}

func presence(keys ...uuid.UUID) realtime.Event {
	members := make(map[string][]json.RawMessage)
	for _, k := range keys {
		members[k.String()] = []json.RawMessage{json.RawMessage(`{}`)}
	}
	return realtime.PresenceSync{Members: members}
}
