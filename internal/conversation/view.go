// Package conversation implements the live conversation view between two
// matched users: loading the history, following the match channel,
// optimistic sends, typing signals and read receipts.
package conversation

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/realtime"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	messagesTable  = "messages"
	typingEvent    = "typing"
	eventBufSize   = 128
	outboundBuffer = 32
)

var (
	errMatchMissing     = errors.New("conversation not found")
	errMatchNotAccepted = errors.New("this match is not accepted yet")
	errNotParticipant   = errors.New("you are not part of this conversation")
)

type Config struct {
	MatchID  uuid.UUID
	Identity domain.Identity

	Store     Store
	Realtime  Realtime
	Navigator Navigator
	Toaster   Toaster
	Render    RenderFunc

	Clock       clock.Clock
	QuietPeriod time.Duration
}

// Snapshot is the rendered state of a view.
type Snapshot struct {
	Loading    bool
	Match      *domain.MatchDetail
	Messages   []domain.Message
	Input      string
	PeerTyping bool
	PeerOnline bool
}

// Peer returns the other participant's profile, or false while loading.
func (s Snapshot) Peer(self uuid.UUID) (domain.Profile, bool) {
	if s.Match == nil {
		return domain.Profile{}, false
	}
	return s.Match.OtherProfile(self), true
}

type typingPayload struct {
	UserID uuid.UUID `json:"user_id"`
	Typing bool      `json:"typing"`
}

type presencePayload struct {
	UserID   uuid.UUID `json:"user_id"`
	OnlineAt time.Time `json:"online_at"`
}

// View is one open conversation. All state is owned by a single goroutine;
// the exported methods only post events to it.
type View struct {
	cfg  Config
	self uuid.UUID

	// ctx carries requests. chanCtx is cancelled when the view tears down.
	ctx        context.Context
	chanCtx    context.Context
	chanCancel context.CancelFunc

	events   chan event
	outbound chan func(context.Context)
	done     chan struct{}
	exited   chan struct{}
	closed   atomic.Bool
	stopOnce sync.Once

	mu   sync.Mutex
	last Snapshot

	// Loop-owned state.
	loading    bool
	match      *domain.MatchDetail
	timeline   *Timeline
	input      string
	peerTyping bool
	peerOnline bool
	channel    realtime.Channel
	channelGen uint64
	typing     *Debouncer
}

// Open starts a view and bootstraps it in the background. Requests run with
// ctx; the view's channel is released on Close.
func Open(ctx context.Context, cfg Config) *View {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Render == nil {
		cfg.Render = func(Snapshot) {}
	}

	v := &View{
		cfg:      cfg,
		self:     cfg.Identity.UserID,
		ctx:      ctx,
		events:   make(chan event, eventBufSize),
		outbound: make(chan func(context.Context), outboundBuffer),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		loading:  true,
		timeline: NewTimeline(),
	}
	v.chanCtx, v.chanCancel = context.WithCancel(context.WithoutCancel(ctx))
	v.typing = NewDebouncer(cfg.Clock, cfg.QuietPeriod, v.announceTyping, func(fn func()) {
		v.post(invoke{fn: fn})
	})
	v.last = Snapshot{Loading: true}

	go v.run()
	go v.sendOutbound()
	go v.bootstrap()
	return v
}

// Keystroke sets the input text and counts as typing activity.
func (v *View) Keystroke(text string) {
	v.post(keystroke{text: text})
}

// Submit sends the current input.
func (v *View) Submit() {
	v.post(submit{fromInput: true})
}

// Send sends text without touching the input.
func (v *View) Send(text string) {
	v.post(submit{text: text})
}

// Resubscribe re-establishes the channel and re-runs the read pass.
func (v *View) Resubscribe() {
	v.post(resubscribe{})
}

// Snapshot returns the last published state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// Done is closed once the view has stopped, either through Close or because
// the conversation could not be opened.
func (v *View) Done() <-chan struct{} {
	return v.exited
}

// Close tears the view down and waits for it. No render happens after Close
// returns. Close must not be called from a Render or Navigator callback.
func (v *View) Close() {
	v.stop()
	<-v.exited
}

func (v *View) stop() {
	v.stopOnce.Do(func() {
		v.closed.Store(true)
		close(v.done)
	})
}

// post queues an event for the loop. It reports false once the view is
// stopping.
func (v *View) post(ev event) bool {
	if v.closed.Load() {
		return false
	}
	select {
	case v.events <- ev:
		return true
	case <-v.done:
		return false
	}
}

func (v *View) run() {
	defer close(v.exited)
	for {
		select {
		case <-v.done:
			v.teardown()
			return
		case ev := <-v.events:
			v.dispatch(ev)
		}
	}
}

func (v *View) dispatch(ev event) {
	switch ev := ev.(type) {
	case bootstrapped:
		v.onBootstrapped(ev)
	case keystroke:
		v.input = ev.text
		v.typing.Keystroke()
		v.render()
	case submit:
		v.onSubmit(ev)
	case writeDone:
		v.onWriteDone(ev)
	case channelEvent:
		if ev.gen != v.channelGen {
			return
		}
		v.onChannelEvent(ev.ev)
	case channelFailed:
		if ev.gen == v.channelGen {
			jww.WARN.Printf("conversation %s: subscribe failed: %v", v.cfg.MatchID, ev.err)
		}
	case resubscribe:
		if v.match == nil {
			return
		}
		v.subscribe()
		v.markUnread()
	case invoke:
		ev.fn()
	}
}

func (v *View) render() {
	if v.closed.Load() {
		return
	}
	snap := Snapshot{
		Loading:    v.loading,
		Match:      v.match,
		Messages:   v.timeline.Messages(),
		Input:      v.input,
		PeerTyping: v.peerTyping,
		PeerOnline: v.peerOnline,
	}
	v.mu.Lock()
	v.last = snap
	v.mu.Unlock()
	v.cfg.Render(snap)
}

// --- Bootstrap ---

// bootstrap reads the match, and the history only once the match is one the
// acting user may open.
func (v *View) bootstrap() {
	var ev bootstrapped
	ev.match, ev.matchErr = v.cfg.Store.GetMatch(v.ctx, v.cfg.MatchID)
	if ev.matchErr == nil && v.validateMatch(ev.match) == nil && !v.closed.Load() {
		ev.history, ev.historyErr = v.cfg.Store.ListMessages(v.ctx, v.cfg.MatchID)
	}
	v.post(ev)
}

func (v *View) onBootstrapped(ev bootstrapped) {
	if reason, err := v.checkMatch(ev); err != nil {
		jww.WARN.Printf("conversation %s: cannot open: %v", v.cfg.MatchID, err)
		v.cfg.Navigator.Redirect(MatchesPath, reason)
		if v.cfg.Toaster != nil {
			v.cfg.Toaster.Error(reason)
		}
		v.stop()
		return
	}

	v.match = ev.match
	v.timeline.Load(ev.history)
	v.loading = false
	v.render()

	v.markUnread()
	v.subscribe()
}

// checkMatch returns the user-facing reason a conversation cannot be shown.
func (v *View) checkMatch(ev bootstrapped) (string, error) {
	const loadFailed = "could not load this conversation"
	switch {
	case errors.Is(ev.matchErr, domain.ErrForbidden):
		return errNotParticipant.Error(), errors.Wrap(ev.matchErr, "loading match")
	case ev.matchErr != nil:
		return loadFailed, errors.Wrap(ev.matchErr, "loading match")
	}
	if err := v.validateMatch(ev.match); err != nil {
		return err.Error(), err
	}
	if ev.historyErr != nil {
		return loadFailed, errors.Wrap(ev.historyErr, "loading messages")
	}
	return "", nil
}

func (v *View) validateMatch(m *domain.MatchDetail) error {
	switch {
	case m == nil:
		return errMatchMissing
	case !m.HasParticipant(v.self):
		return errNotParticipant
	case !m.Accepted():
		return errMatchNotAccepted
	}
	return nil
}

func (v *View) peer() uuid.UUID {
	return v.match.Other(v.self)
}

// --- Subscription ---

func (v *View) subscribe() {
	v.unsubscribe()

	v.channelGen++
	gen := v.channelGen
	ch := v.cfg.Realtime.Channel(domain.Topic(v.cfg.MatchID), realtime.ChannelOptions{
		BroadcastSelf: false,
		PresenceKey:   v.self.String(),
	})
	v.channel = ch

	go func() {
		events, err := ch.Subscribe(v.chanCtx)
		if err != nil {
			v.post(channelFailed{gen: gen, err: err})
			return
		}
		for ev := range events {
			if !v.post(channelEvent{gen: gen, ev: ev}) {
				return
			}
		}
	}()
}

func (v *View) unsubscribe() {
	if v.channel == nil {
		return
	}
	ch := v.channel
	v.channel = nil
	v.peerTyping = false
	v.peerOnline = false
	if err := ch.Unsubscribe(); err != nil {
		jww.WARN.Printf("conversation %s: unsubscribe: %v", v.cfg.MatchID, err)
	}
}

func (v *View) teardown() {
	v.typing.Stop()
	v.unsubscribe()
	v.chanCancel()
	jww.DEBUG.Printf("conversation %s: closed", v.cfg.MatchID)
}

func (v *View) onChannelEvent(ev realtime.Event) {
	switch ev := ev.(type) {
	case realtime.StatusChanged:
		if ev.Status != realtime.StatusSubscribed {
			jww.WARN.Printf("conversation %s: channel %s: %v", v.cfg.MatchID, ev.Status, ev.Err)
			return
		}
		jww.DEBUG.Printf("conversation %s: subscribed", v.cfg.MatchID)
		ch := v.channel
		payload := presencePayload{UserID: v.self, OnlineAt: v.cfg.Clock.Now().UTC()}
		v.enqueue(func(ctx context.Context) {
			if err := ch.Track(ctx, payload); err != nil {
				jww.WARN.Printf("conversation %s: presence track: %v", v.cfg.MatchID, err)
			}
		})

	case realtime.RowInserted:
		if ev.Table != messagesTable {
			return
		}
		var msg domain.Message
		if err := ev.Decode(&msg); err != nil {
			jww.WARN.Printf("conversation %s: bad insert: %v", v.cfg.MatchID, err)
			return
		}
		if msg.MatchID != v.cfg.MatchID || !v.timeline.Insert(msg) {
			return
		}
		v.render()
		if msg.SenderID != v.self && msg.ReadAt == nil {
			v.markOne(msg.ID)
		}

	case realtime.RowUpdated:
		if ev.Table != messagesTable {
			return
		}
		var msg domain.Message
		if err := ev.Decode(&msg); err != nil {
			jww.WARN.Printf("conversation %s: bad update: %v", v.cfg.MatchID, err)
			return
		}
		if v.timeline.Update(msg) {
			v.render()
		}

	case realtime.Broadcast:
		if ev.Event != typingEvent {
			return
		}
		var p typingPayload
		if err := ev.Decode(&p); err != nil {
			jww.WARN.Printf("conversation %s: bad typing payload: %v", v.cfg.MatchID, err)
			return
		}
		if p.UserID == v.self || p.Typing == v.peerTyping {
			return
		}
		v.peerTyping = p.Typing
		v.render()

	case realtime.PresenceSync:
		online := ev.Has(v.peer().String())
		if online == v.peerOnline {
			return
		}
		v.peerOnline = online
		v.render()
	}
}

// enqueue hands channel work to the outbound goroutine, preserving order.
// Work is dropped when the queue is full.
func (v *View) enqueue(fn func(context.Context)) {
	select {
	case v.outbound <- fn:
	default:
		jww.WARN.Printf("conversation %s: outbound queue full, dropping", v.cfg.MatchID)
	}
}

func (v *View) sendOutbound() {
	for {
		select {
		case <-v.done:
			return
		case fn := <-v.outbound:
			fn(v.chanCtx)
		}
	}
}

// announceTyping runs on the loop, called by the debouncer.
func (v *View) announceTyping(typing bool) {
	ch := v.channel
	if ch == nil {
		return
	}
	payload := typingPayload{UserID: v.self, Typing: typing}
	v.enqueue(func(ctx context.Context) {
		if err := ch.Broadcast(ctx, typingEvent, payload); err != nil {
			jww.DEBUG.Printf("conversation %s: typing broadcast: %v", v.cfg.MatchID, err)
		}
	})
}

// --- Send pipeline ---

func (v *View) onSubmit(ev submit) {
	text := ev.text
	if ev.fromInput {
		text = v.input
	}
	content := strings.TrimSpace(text)
	if content == "" || v.match == nil {
		return
	}

	tempID := uuid.New()
	v.timeline.Stage(domain.Message{
		ID:        tempID,
		MatchID:   v.cfg.MatchID,
		SenderID:  v.self,
		Content:   content,
		Nonce:     &tempID,
		CreatedAt: v.cfg.Clock.Now().UTC(),
	}, text)
	if ev.fromInput {
		v.input = ""
	}
	v.typing.Flush()
	v.render()

	write := domain.NewMessage{
		MatchID:  v.cfg.MatchID,
		SenderID: v.self,
		Content:  content,
		Nonce:    tempID,
	}
	go func() {
		msg, err := v.cfg.Store.InsertMessage(v.ctx, write)
		v.post(writeDone{tempID: tempID, msg: msg, err: err})
	}()
}

func (v *View) onWriteDone(ev writeDone) {
	if ev.err != nil {
		text, ok := v.timeline.Rollback(ev.tempID)
		if !ok {
			jww.DEBUG.Printf("conversation %s: late failure for confirmed send %s: %v", v.cfg.MatchID, ev.tempID, ev.err)
			return
		}
		jww.WARN.Printf("conversation %s: send failed: %v", v.cfg.MatchID, ev.err)
		if v.input == "" {
			v.input = text
		} else {
			v.input = text + " " + v.input
		}
		if v.cfg.Toaster != nil {
			v.cfg.Toaster.Error("Message failed to send")
		}
		v.render()
		return
	}
	if ev.msg != nil && v.timeline.Confirm(ev.tempID, *ev.msg) {
		v.render()
	}
}

// --- Read receipts ---

func (v *View) markUnread() {
	ids := v.timeline.Unread(v.self)
	if len(ids) == 0 {
		return
	}
	matchID := v.cfg.MatchID
	go func() {
		if err := v.cfg.Store.MarkRead(v.ctx, matchID, ids); err != nil {
			jww.WARN.Printf("conversation %s: mark read: %v", matchID, err)
		}
	}()
}

func (v *View) markOne(id uuid.UUID) {
	go func() {
		if err := v.cfg.Store.MarkMessageRead(v.ctx, id); err != nil {
			jww.WARN.Printf("conversation %s: mark message %s read: %v", v.cfg.MatchID, id, err)
		}
	}()
}
