package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nomance-app/nomance/internal/realtime"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	eventBufSize = 64
	leaveTimeout = 2 * time.Second
)

var (
	ErrChannelClosed   = errors.New("channel closed")
	ErrNotSubscribed   = errors.New("channel not subscribed")
	ErrAlreadyJoined   = errors.New("channel already subscribed")
	errJoinRejected    = errors.New("join rejected")
	errConnectionReset = errors.New("realtime connection lost")
)

// wsChannel is a realtime.Channel backed by one websocket connection.
type wsChannel struct {
	url     string
	session SessionStore
	topic   string
	opts    realtime.ChannelOptions

	ref atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	joining bool
	closed  bool
}

func newWSChannel(rawURL string, session SessionStore, topic string, opts realtime.ChannelOptions) *wsChannel {
	return &wsChannel{url: rawURL, session: session, topic: topic, opts: opts}
}

func (c *wsChannel) Subscribe(ctx context.Context) (<-chan realtime.Event, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, ErrChannelClosed
	case c.conn != nil || c.joining:
		c.mu.Unlock()
		return nil, ErrAlreadyJoined
	}
	c.joining = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.joining = false
	if err != nil {
		return nil, err
	}
	if c.closed {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, ErrChannelClosed
	}

	rctx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel

	events := make(chan realtime.Event, eventBufSize)
	go c.readPump(rctx, conn, events)
	return events, nil
}

// dial connects and sends the join frame. It runs without holding mu so an
// Unsubscribe during a slow dial does not block.
func (c *wsChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dialing realtime")
	}

	join, err := c.frame(realtime.FrameJoin, realtime.JoinPayload{Config: c.opts})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}
	if err := wsjson.Write(ctx, conn, join); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, errors.Wrap(err, "joining "+c.topic)
	}
	return conn, nil
}

func (c *wsChannel) Broadcast(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding broadcast")
	}
	return c.write(ctx, realtime.FrameBroadcast, realtime.BroadcastPayload{Event: event, Payload: data})
}

func (c *wsChannel) Track(ctx context.Context, payload any) error {
	return c.write(ctx, realtime.FramePresenceTrack, payload)
}

func (c *wsChannel) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if leave, err := c.frame(realtime.FrameLeave, nil); err == nil {
		wsjson.Write(ctx, c.conn, leave)
	}
	if err := c.conn.Close(websocket.StatusNormalClosure, ""); err != nil {
		jww.DEBUG.Printf("realtime %s: close: %v", c.topic, err)
	}
	c.cancel()
	return nil
}

func (c *wsChannel) readPump(ctx context.Context, conn *websocket.Conn, events chan<- realtime.Event) {
	defer close(events)

	emit := func(ev realtime.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		var frame realtime.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if ctx.Err() == nil {
				jww.WARN.Printf("realtime %s: read error: %v", c.topic, err)
				emit(realtime.StatusChanged{Status: realtime.StatusChannelError, Err: errors.Wrap(errConnectionReset, err.Error())})
			}
			return
		}
		if frame.Topic != "" && frame.Topic != c.topic {
			continue
		}

		switch frame.Type {
		case realtime.FrameJoinError:
			p := c.errorPayload(&frame)
			emit(realtime.StatusChanged{Status: realtime.StatusChannelError, Err: errors.Wrap(errJoinRejected, p.Message)})
			continue
		case realtime.FrameError:
			p := c.errorPayload(&frame)
			jww.WARN.Printf("realtime %s: server error %s: %s", c.topic, p.Code, p.Message)
			continue
		}

		ev, err := realtime.EventFromFrame(&frame)
		if err != nil {
			jww.WARN.Printf("realtime %s: bad %s frame: %v", c.topic, frame.Type, err)
			continue
		}
		if ev == nil {
			continue
		}
		if !emit(ev) {
			return
		}
	}
}

func (c *wsChannel) errorPayload(frame *realtime.Frame) realtime.ErrorPayload {
	var p realtime.ErrorPayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		jww.DEBUG.Printf("realtime %s: bad %s payload: %v", c.topic, frame.Type, err)
	}
	return p
}

func (c *wsChannel) write(ctx context.Context, frameType string, payload any) error {
	c.mu.Lock()
	conn, closed := c.conn, c.closed
	c.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}
	if conn == nil {
		return ErrNotSubscribed
	}

	f, err := c.frame(frameType, payload)
	if err != nil {
		return err
	}
	return errors.Wrap(wsjson.Write(ctx, conn, f), frameType)
}

func (c *wsChannel) frame(frameType string, payload any) (*realtime.Frame, error) {
	f, err := realtime.NewFrame(frameType, c.topic, payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding frame")
	}
	f.Ref = strconv.FormatUint(c.ref.Add(1), 10)
	return f, nil
}

func (c *wsChannel) endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", errors.Wrap(err, "parsing realtime url")
	}
	token, err := c.session.Load()
	if err != nil {
		return "", errors.Wrap(err, "loading session")
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
