package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/realtime"
	jww "github.com/spf13/jwalterweatherman"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 8192
	sendBufSize    = 256
	joinTimeout    = 5 * time.Second
)

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	authz  Authorizer

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, authz Authorizer) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		authz:  authz,
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

// ReadPump reads frames from the WebSocket and routes them to the Hub.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		submit(c.hub, c.hub.unregister, c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var frame realtime.Frame
		err := wsjson.Read(ctx, c.conn, &frame)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				jww.DEBUG.Printf("ws: client %s disconnected", c.userID)
			} else {
				jww.WARN.Printf("ws: read error from %s: %v", c.userID, err)
			}
			return
		}

		c.handleFrame(ctx, &frame)
	}
}

// WritePump writes queued frames to the WebSocket.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				jww.WARN.Printf("ws: write error to %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(wctx)
			cancel()
			if err != nil {
				jww.WARN.Printf("ws: ping error to %s: %v", c.userID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleFrame routes an incoming client frame.
func (c *Client) handleFrame(ctx context.Context, frame *realtime.Frame) {
	switch frame.Type {
	case realtime.FrameJoin:
		var p realtime.JoinPayload
		if len(frame.Payload) > 0 {
			if err := json.Unmarshal(frame.Payload, &p); err != nil {
				c.sendFrame(realtime.FrameJoinError, frame.Topic, frame.Ref, realtime.ErrorPayload{Code: "INVALID_PAYLOAD", Message: "invalid join payload"})
				return
			}
		}
		actx, cancel := context.WithTimeout(ctx, joinTimeout)
		err := c.authz.AuthorizeTopic(actx, c.userID, frame.Topic)
		cancel()
		if err != nil {
			jww.INFO.Printf("ws: %s denied %s: %v", c.userID, frame.Topic, err)
			c.sendFrame(realtime.FrameJoinError, frame.Topic, frame.Ref, realtime.ErrorPayload{Code: "FORBIDDEN", Message: "cannot join topic"})
			return
		}
		submit(c.hub, c.hub.join, &joinRequest{client: c, topic: frame.Topic, ref: frame.Ref, opts: p.Config})
		jww.DEBUG.Printf("ws: %s joined %s", c.userID, frame.Topic)

	case realtime.FrameLeave:
		submit(c.hub, c.hub.leave, &topicRequest{client: c, topic: frame.Topic})

	case realtime.FrameBroadcast:
		data, err := json.Marshal(realtime.Frame{
			Type:      realtime.FrameBroadcast,
			Topic:     frame.Topic,
			Payload:   frame.Payload,
			Timestamp: time.Now().Unix(),
		})
		if err != nil {
			return
		}
		submit(c.hub, c.hub.broadcast, &broadcastMsg{topic: frame.Topic, data: data, sender: c})

	case realtime.FramePresenceTrack:
		submit(c.hub, c.hub.track, &trackRequest{client: c, topic: frame.Topic, payload: frame.Payload})

	case realtime.FramePing:
		c.sendFrame(realtime.FramePong, "", frame.Ref, nil)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown frame type: "+frame.Type)
	}
}

// sendFrame queues a frame without blocking; it is dropped if the buffer is
// full.
func (c *Client) sendFrame(frameType, topic, ref string, payload any) {
	frame, err := realtime.NewFrame(frameType, topic, payload)
	if err != nil {
		return
	}
	frame.Ref = ref
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	c.sendFrame(realtime.FrameError, "", "", realtime.ErrorPayload{Code: code, Message: message})
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
