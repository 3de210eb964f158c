// Package realtime defines the channel protocol spoken between the backing
// platform and its clients, and the typed events clients consume.
package realtime

import (
	"encoding/json"
	"time"
)

// Frame types - Client → Server
const (
	FrameJoin          = "join"
	FrameLeave         = "leave"
	FrameBroadcast     = "broadcast"
	FramePresenceTrack = "presence.track"
	FramePing          = "ping"
)

// Frame types - Server → Client
const (
	FrameJoinOK          = "join.ok"
	FrameJoinError       = "join.error"
	FramePostgresChanges = "postgres_changes"
	FramePresenceSync    = "presence.sync"
	FramePong            = "pong"
	FrameError           = "error"
)

// Change events carried by postgres_changes frames.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
)

// Frame is the envelope for every websocket message.
type Frame struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Ref       string          `json:"ref,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type JoinPayload struct {
	Config ChannelOptions `json:"config"`
}

// ChannelOptions configure a subscription.
type ChannelOptions struct {
	// BroadcastSelf delivers the subscriber's own broadcasts back to it.
	BroadcastSelf bool `json:"broadcast_self"`
	// PresenceKey identifies the subscriber in the presence set.
	PresenceKey string `json:"presence_key,omitempty"`
}

// --- Shared payloads ---

type BroadcastPayload struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Server → Client payloads ---

type ChangePayload struct {
	Event  string          `json:"event"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

type PresenceSyncPayload struct {
	Members map[string][]json.RawMessage `json:"members"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrame builds a frame with the current timestamp.
func NewFrame(frameType, topic string, payload any) (*Frame, error) {
	f := &Frame{
		Type:      frameType,
		Topic:     topic,
		Timestamp: time.Now().Unix(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Payload = data
	}
	return f, nil
}
