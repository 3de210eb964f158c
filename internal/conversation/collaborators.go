package conversation

import (
	"context"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/realtime"
)

// Store is the row storage the view reads from and writes to.
type Store interface {
	// GetMatch returns nil when the match does not exist, and an error
	// matching domain.ErrForbidden when the acting user may not read it.
	GetMatch(ctx context.Context, matchID uuid.UUID) (*domain.MatchDetail, error)
	ListMessages(ctx context.Context, matchID uuid.UUID) ([]domain.Message, error)
	InsertMessage(ctx context.Context, msg domain.NewMessage) (*domain.Message, error)
	MarkRead(ctx context.Context, matchID uuid.UUID, ids []uuid.UUID) error
	MarkMessageRead(ctx context.Context, messageID uuid.UUID) error
}

// Realtime opens channels on the platform.
type Realtime interface {
	Channel(topic string, opts realtime.ChannelOptions) realtime.Channel
}

type Navigator interface {
	Redirect(path, reason string)
}

type Toaster interface {
	Error(message string)
}

// RenderFunc receives every published state of the view.
type RenderFunc func(Snapshot)

// MatchesPath is where a view sends the user when the conversation cannot be
// shown.
const MatchesPath = "/matches"
