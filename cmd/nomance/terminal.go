package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aquilax/truncate"
	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/conversation"
	"github.com/nomance-app/nomance/internal/domain"
)

const previewLen = 40

// terminal prints a conversation incrementally: each message once when it
// is confirmed, plus changes to the peer's status.
type terminal struct {
	out  io.Writer
	self uuid.UUID

	mu         sync.Mutex
	started    bool
	peer       string
	printed    map[uuid.UUID]bool
	sending    map[uuid.UUID]bool
	lastShown  time.Time
	peerTyping bool
	peerOnline bool
	unsent     string
}

func newTerminal(out io.Writer, self uuid.UUID) *terminal {
	return &terminal{
		out:     out,
		self:    self,
		printed: make(map[uuid.UUID]bool),
		sending: make(map[uuid.UUID]bool),
	}
}

func (t *terminal) Render(s conversation.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Loading {
		return
	}
	if !t.started {
		t.started = true
		if p, ok := s.Peer(t.self); ok {
			t.peer = p.DisplayName
		}
		fmt.Fprintf(t.out, "Chatting with %s. Type a message and press enter; /retry resends a failed message, /reconnect rejoins, /quit leaves.\n", t.peer)
	}

	for _, row := range domain.WithDividers(s.Messages) {
		m := row.Message
		if m.Pending {
			if !t.sending[m.ID] {
				t.sending[m.ID] = true
				fmt.Fprintf(t.out, "  ... sending %q\n", truncate.Truncate(m.Content, previewLen, "...", truncate.PositionEnd))
			}
			continue
		}
		if t.printed[m.ID] {
			continue
		}
		t.printed[m.ID] = true
		if row.Divider && m.CreatedAt.Sub(t.lastShown) >= domain.DividerGap {
			fmt.Fprintf(t.out, "-- %s --\n", m.CreatedAt.Local().Format("Mon Jan 2 15:04"))
		}
		t.lastShown = m.CreatedAt
		fmt.Fprintf(t.out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), t.name(m.SenderID), m.Content)
	}

	// Input is only ever filled by a failed send handing its text back.
	if s.Input != t.unsent {
		t.unsent = s.Input
		if s.Input != "" {
			fmt.Fprintf(t.out, "! unsent: %q (/retry to send it again)\n", s.Input)
		}
	}

	if s.PeerOnline != t.peerOnline {
		t.peerOnline = s.PeerOnline
		if s.PeerOnline {
			fmt.Fprintf(t.out, "* %s is online\n", t.peer)
		} else {
			fmt.Fprintf(t.out, "* %s went offline\n", t.peer)
		}
	}
	if s.PeerTyping != t.peerTyping {
		t.peerTyping = s.PeerTyping
		if s.PeerTyping {
			fmt.Fprintf(t.out, "* %s is typing...\n", t.peer)
		}
	}
}

func (t *terminal) name(sender uuid.UUID) string {
	if sender == t.self {
		return "you"
	}
	return t.peer
}

func (t *terminal) Redirect(path, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "Leaving conversation (%s). See: nomance matches\n", reason)
}

func (t *terminal) Error(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "! %s\n", message)
}
