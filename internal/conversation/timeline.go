package conversation

import (
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
)

type sendPhase int

const (
	phasePending sendPhase = iota
	phaseConfirmed
	phaseRolledBack
)

type outboxEntry struct {
	phase sendPhase
	text  string
}

// Timeline is the ordered message list of one conversation together with
// the outbox of optimistic sends. A temporary message ID doubles as the
// nonce of its write, so the durable echo can claim it.
//
// Durable messages are kept in CreatedAt order, ties in arrival order.
// Pending messages have no server time yet and trail them in send order.
//
// Timeline is not safe for concurrent use.
type Timeline struct {
	msgs   []domain.Message
	outbox map[uuid.UUID]*outboxEntry
}

func NewTimeline() *Timeline {
	return &Timeline{outbox: make(map[uuid.UUID]*outboxEntry)}
}

// Load replaces the history. A history row carrying the nonce of a pending
// send confirms it; sends still pending are kept at the end.
func (t *Timeline) Load(history []domain.Message) {
	history = slices.Clone(history)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})

	msgs := make([]domain.Message, 0, len(history))
	seen := make(map[uuid.UUID]struct{}, len(history))
	for _, m := range history {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if m.Nonce != nil {
			if e := t.outbox[*m.Nonce]; e != nil && e.phase == phasePending {
				e.phase = phaseConfirmed
			}
		}
		m.Pending = false
		msgs = append(msgs, m)
	}
	for _, m := range t.msgs {
		if e := t.outbox[m.ID]; e != nil && e.phase == phasePending {
			msgs = append(msgs, m)
		}
	}
	t.msgs = msgs
}

// Stage appends an unconfirmed message. text is what gets handed back on
// rollback.
func (t *Timeline) Stage(temp domain.Message, text string) {
	temp.Pending = true
	t.msgs = append(t.msgs, temp)
	t.outbox[temp.ID] = &outboxEntry{phase: phasePending, text: text}
}

// Confirm swaps a pending temporary message for its durable record. It
// reports false when the send was already settled.
func (t *Timeline) Confirm(tempID uuid.UUID, durable domain.Message) bool {
	e := t.outbox[tempID]
	if e == nil || e.phase != phasePending {
		return false
	}
	e.phase = phaseConfirmed
	durable.Pending = false

	if i := t.index(tempID); i >= 0 {
		t.remove(i)
	}
	if t.index(durable.ID) < 0 {
		t.place(durable)
	}
	return true
}

// Rollback removes a pending temporary message and returns its text. A send
// that was already confirmed stays confirmed.
func (t *Timeline) Rollback(tempID uuid.UUID) (string, bool) {
	e := t.outbox[tempID]
	if e == nil || e.phase != phasePending {
		return "", false
	}
	e.phase = phaseRolledBack
	if i := t.index(tempID); i >= 0 {
		t.remove(i)
	}
	return e.text, true
}

// Insert applies a durable insert seen on the channel. Known IDs are
// ignored; an insert carrying the nonce of a pending send confirms it.
func (t *Timeline) Insert(msg domain.Message) bool {
	if t.index(msg.ID) >= 0 {
		return false
	}
	if msg.Nonce != nil {
		if e := t.outbox[*msg.Nonce]; e != nil && e.phase == phasePending {
			return t.Confirm(*msg.Nonce, msg)
		}
	}
	msg.Pending = false
	t.place(msg)
	return true
}

// Update replaces the message with the same ID.
func (t *Timeline) Update(msg domain.Message) bool {
	i := t.index(msg.ID)
	if i < 0 {
		return false
	}
	msg.Pending = false
	t.msgs[i] = msg
	return true
}

// Messages returns a copy in display order.
func (t *Timeline) Messages() []domain.Message {
	out := make([]domain.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Unread lists durable messages from other participants that have no read
// timestamp.
func (t *Timeline) Unread(self uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, m := range t.msgs {
		if m.Pending || m.SenderID == self || m.ReadAt != nil {
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}

func (t *Timeline) Len() int { return len(t.msgs) }

func (t *Timeline) index(id uuid.UUID) int {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// place inserts a durable message after every durable message not newer
// than it and ahead of the pending tail.
func (t *Timeline) place(m domain.Message) {
	i := len(t.msgs)
	for i > 0 && (t.msgs[i-1].Pending || t.msgs[i-1].CreatedAt.After(m.CreatedAt)) {
		i--
	}
	t.msgs = slices.Insert(t.msgs, i, m)
}

func (t *Timeline) remove(i int) {
	t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
}
