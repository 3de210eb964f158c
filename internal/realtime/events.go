package realtime

import (
	"context"
	"encoding/json"
)

// Event is the tagged union of everything a subscribed channel delivers.
type Event interface {
	isEvent()
}

// Status of a channel subscription.
type Status int

const (
	StatusSubscribed Status = iota + 1
	StatusChannelError
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusSubscribed:
		return "SUBSCRIBED"
	case StatusChannelError:
		return "CHANNEL_ERROR"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// StatusChanged reports a subscription lifecycle transition.
type StatusChanged struct {
	Status Status
	Err    error
}

// RowInserted is a committed insert on Table.
type RowInserted struct {
	Table  string
	Record json.RawMessage
}

// RowUpdated is a committed update on Table.
type RowUpdated struct {
	Table  string
	Record json.RawMessage
}

// Broadcast is an ephemeral named message.
type Broadcast struct {
	Event   string
	Payload json.RawMessage
}

// PresenceSync carries the full presence set keyed by presence key.
type PresenceSync struct {
	Members map[string][]json.RawMessage
}

func (StatusChanged) isEvent() {}
func (RowInserted) isEvent()   {}
func (RowUpdated) isEvent()    {}
func (Broadcast) isEvent()     {}
func (PresenceSync) isEvent()  {}

// Decode unmarshals the inserted record.
func (e RowInserted) Decode(v any) error { return json.Unmarshal(e.Record, v) }

// Decode unmarshals the updated record.
func (e RowUpdated) Decode(v any) error { return json.Unmarshal(e.Record, v) }

// Decode unmarshals the broadcast payload.
func (e Broadcast) Decode(v any) error { return json.Unmarshal(e.Payload, v) }

// Has reports whether key is in the presence set.
func (e PresenceSync) Has(key string) bool {
	_, ok := e.Members[key]
	return ok
}

// Channel is one live subscription to a topic.
type Channel interface {
	// Subscribe performs the join handshake. Events, including the
	// StatusChanged that confirms the join, arrive on the returned channel
	// until Unsubscribe is called or the connection drops.
	Subscribe(ctx context.Context) (<-chan Event, error)
	Broadcast(ctx context.Context, event string, payload any) error
	Track(ctx context.Context, payload any) error
	// Unsubscribe releases the whole channel. It is safe to call twice.
	Unsubscribe() error
}

// EventFromFrame converts a server frame into a typed event. Frames that do
// not map to an event return nil.
func EventFromFrame(f *Frame) (Event, error) {
	switch f.Type {
	case FrameJoinOK:
		return StatusChanged{Status: StatusSubscribed}, nil

	case FramePostgresChanges:
		var p ChangePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, err
		}
		switch p.Event {
		case ChangeInsert:
			return RowInserted{Table: p.Table, Record: p.Record}, nil
		case ChangeUpdate:
			return RowUpdated{Table: p.Table, Record: p.Record}, nil
		}
		return nil, nil

	case FrameBroadcast:
		var p BroadcastPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, err
		}
		return Broadcast{Event: p.Event, Payload: p.Payload}, nil

	case FramePresenceSync:
		var p PresenceSyncPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, err
		}
		return PresenceSync{Members: p.Members}, nil
	}
	return nil, nil
}
