package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type MatchRepository interface {
	Create(ctx context.Context, match *domain.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error)
	GetByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Match, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*domain.MatchDetail, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.MatchDetail, error)
	Accept(ctx context.Context, id uuid.UUID) error
}

type MessageRepository interface {
	// Create inserts the message and fills in the stored row. A repeated nonce
	// returns the row stored for it the first time.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.Message, error)
	// MarkRead sets read_at on unread messages of matchID not sent by
	// readerID, optionally restricted to ids, and returns the changed rows.
	MarkRead(ctx context.Context, matchID, readerID uuid.UUID, ids []uuid.UUID) ([]domain.Message, error)
}
