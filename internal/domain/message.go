package domain

import (
	"time"

	"github.com/google/uuid"
)

// DividerGap is the quiet time between two messages that earns a timestamp
// divider in the rendered conversation.
const DividerGap = 30 * time.Minute

type Message struct {
	ID        uuid.UUID  `json:"id"`
	MatchID   uuid.UUID  `json:"match_id"`
	SenderID  uuid.UUID  `json:"sender_id"`
	Content   string     `json:"content"`
	Nonce     *uuid.UUID `json:"nonce,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`

	// Pending is only ever set on the client for unconfirmed sends.
	Pending bool `json:"-"`
}

// NewMessage is the durable write issued by a sender.
type NewMessage struct {
	MatchID  uuid.UUID `json:"match_id"`
	SenderID uuid.UUID `json:"sender_id"`
	Content  string    `json:"content"`
	Nonce    uuid.UUID `json:"nonce"`
}

// Row is one line of a rendered conversation: a message, optionally preceded
// by a timestamp divider.
type Row struct {
	Divider bool
	Message Message
}

// WithDividers interleaves timestamp dividers wherever two consecutive
// messages are at least DividerGap apart. The first message always gets one.
func WithDividers(msgs []Message) []Row {
	rows := make([]Row, 0, len(msgs))
	for i, m := range msgs {
		divider := i == 0 || m.CreatedAt.Sub(msgs[i-1].CreatedAt) >= DividerGap
		rows = append(rows, Row{Divider: divider, Message: m})
	}
	return rows
}
