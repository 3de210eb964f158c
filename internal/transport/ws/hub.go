package ws

import (
	"context"
	"encoding/json"

	"github.com/nomance-app/nomance/internal/realtime"
	jww "github.com/spf13/jwalterweatherman"
)

// Hub manages all active WebSocket clients and routes frames between topic
// subscribers. All routing state is owned by the Run loop.
type Hub struct {
	clients map[*Client]struct{}
	// topics maps topic → subscriber → subscription.
	topics map[string]map[*Client]*subscription

	register   chan *Client
	unregister chan *Client
	join       chan *joinRequest
	leave      chan *topicRequest
	track      chan *trackRequest
	broadcast  chan *broadcastMsg

	done chan struct{}
}

type subscription struct {
	opts     realtime.ChannelOptions
	presence json.RawMessage
	tracked  bool
}

type joinRequest struct {
	client *Client
	topic  string
	ref    string
	opts   realtime.ChannelOptions
}

type topicRequest struct {
	client *Client
	topic  string
}

type trackRequest struct {
	client  *Client
	topic   string
	payload json.RawMessage
}

type broadcastMsg struct {
	topic  string
	data   []byte
	sender *Client // optional: skipped unless it asked for its own broadcasts
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		topics:     make(map[string]map[*Client]*subscription),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan *joinRequest),
		leave:      make(chan *topicRequest),
		track:      make(chan *trackRequest),
		broadcast:  make(chan *broadcastMsg, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			jww.INFO.Printf("ws hub: user %s connected (%d total)", client.userID, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				jww.INFO.Printf("ws hub: user %s disconnected (%d total)", client.userID, len(h.clients))
			}

		case req := <-h.join:
			if _, ok := h.clients[req.client]; !ok {
				continue
			}
			subs, ok := h.topics[req.topic]
			if !ok {
				subs = make(map[*Client]*subscription)
				h.topics[req.topic] = subs
			}
			subs[req.client] = &subscription{opts: req.opts}
			req.client.sendFrame(realtime.FrameJoinOK, req.topic, req.ref, nil)
			req.client.sendFrame(realtime.FramePresenceSync, req.topic, "", h.presenceOf(req.topic))

		case req := <-h.leave:
			h.removeSubscription(req.client, req.topic)

		case req := <-h.track:
			sub, ok := h.topics[req.topic][req.client]
			if !ok {
				req.client.sendError("NOT_JOINED", "join the topic before tracking presence")
				continue
			}
			sub.presence = req.payload
			sub.tracked = true
			h.syncPresence(req.topic)

		case msg := <-h.broadcast:
			subs := h.topics[msg.topic]
			if msg.sender != nil {
				if _, joined := subs[msg.sender]; !joined {
					msg.sender.sendError("NOT_JOINED", "join the topic before broadcasting")
					continue
				}
			}
			for client, sub := range subs {
				if client == msg.sender && !sub.opts.BroadcastSelf {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full - disconnect
					h.drop(client)
				}
			}
		}
	}
}

// Publish sends a frame to every subscriber of its topic.
func (h *Hub) Publish(frame *realtime.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		jww.ERROR.Printf("ws hub: marshal error: %v", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMsg{topic: frame.Topic, data: data}:
	case <-h.done:
	}
}

// submit hands a request to the Run loop unless the hub has stopped.
func submit[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.done:
		return false
	}
}

// drop removes a client from every topic and closes its queues.
func (h *Hub) drop(client *Client) {
	for topic := range h.topics {
		h.removeSubscription(client, topic)
	}
	delete(h.clients, client)
	client.close()
}

func (h *Hub) removeSubscription(client *Client, topic string) {
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	sub, ok := subs[client]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.topics, topic)
		return
	}
	if sub.tracked {
		h.syncPresence(topic)
	}
}

func (h *Hub) presenceOf(topic string) realtime.PresenceSyncPayload {
	members := make(map[string][]json.RawMessage)
	for client, sub := range h.topics[topic] {
		if !sub.tracked {
			continue
		}
		key := sub.opts.PresenceKey
		if key == "" {
			key = client.userID.String()
		}
		members[key] = append(members[key], sub.presence)
	}
	return realtime.PresenceSyncPayload{Members: members}
}

// syncPresence sends the full presence set to every subscriber of topic.
func (h *Hub) syncPresence(topic string) {
	frame, err := realtime.NewFrame(realtime.FramePresenceSync, topic, h.presenceOf(topic))
	if err != nil {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	for client := range h.topics[topic] {
		select {
		case client.send <- data:
		default:
		}
	}
}
