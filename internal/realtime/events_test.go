package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFromFrame(t *testing.T) {
	record := json.RawMessage(`{"id":"x"}`)

	f, err := NewFrame(FramePostgresChanges, "match:1", ChangePayload{Event: ChangeInsert, Table: "messages", Record: record})
	require.NoError(t, err)
	ev, err := EventFromFrame(f)
	require.NoError(t, err)
	assert.Equal(t, RowInserted{Table: "messages", Record: record}, ev)

	f, _ = NewFrame(FramePostgresChanges, "match:1", ChangePayload{Event: ChangeUpdate, Table: "messages", Record: record})
	ev, _ = EventFromFrame(f)
	assert.IsType(t, RowUpdated{}, ev)

	f, _ = NewFrame(FrameBroadcast, "match:1", BroadcastPayload{Event: "typing", Payload: json.RawMessage(`{"is_typing":true}`)})
	ev, _ = EventFromFrame(f)
	var typing struct {
		IsTyping bool `json:"is_typing"`
	}
	require.NoError(t, ev.(Broadcast).Decode(&typing))
	assert.True(t, typing.IsTyping)

	f, _ = NewFrame(FramePresenceSync, "match:1", PresenceSyncPayload{Members: map[string][]json.RawMessage{"b": nil}})
	ev, _ = EventFromFrame(f)
	assert.True(t, ev.(PresenceSync).Has("b"))
	assert.False(t, ev.(PresenceSync).Has("a"))

	ev, _ = EventFromFrame(&Frame{Type: FrameJoinOK})
	assert.Equal(t, StatusChanged{Status: StatusSubscribed}, ev)

	ev, err = EventFromFrame(&Frame{Type: FramePong})
	assert.NoError(t, err)
	assert.Nil(t, ev)
}
