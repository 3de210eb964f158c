package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/repository"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

var (
	ErrCannotLikeSelf   = errors.New("cannot like yourself")
	ErrAlreadyLiked     = errors.New("you already liked this user")
	ErrAlreadyMatched   = errors.New("you are already matched")
	ErrMatchNotFound    = errors.New("match not found")
	ErrNotParticipant   = errors.New("you are not a participant of this match")
	ErrMatchNotAccepted = errors.New("match has not been accepted")
)

type MatchService struct {
	matchRepo repository.MatchRepository
	userRepo  repository.UserRepository
}

func NewMatchService(matchRepo repository.MatchRepository, userRepo repository.UserRepository) *MatchService {
	return &MatchService{
		matchRepo: matchRepo,
		userRepo:  userRepo,
	}
}

// Like records the actor's interest in target. The first like creates a
// pending match; a like from the other side promotes it to accepted.
func (s *MatchService) Like(ctx context.Context, actorID, targetID uuid.UUID) (*domain.Match, error) {
	if actorID == targetID {
		return nil, ErrCannotLikeSelf
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "looking up user")
	}
	if target == nil {
		return nil, ErrUserNotFound
	}

	u1, u2 := domain.CanonicalPair(actorID, targetID)

	existing, err := s.matchRepo.GetByUsers(ctx, u1, u2)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		switch {
		case existing.Accepted():
			return nil, ErrAlreadyMatched
		case existing.InitiatorID == actorID:
			return nil, ErrAlreadyLiked
		}

		// Reverse interest observed: promote.
		if err := s.matchRepo.Accept(ctx, existing.ID); err != nil {
			return nil, err
		}
		existing.Status = domain.MatchAccepted
		jww.INFO.Printf("match %s accepted", existing.ID)
		return existing, nil
	}

	match := &domain.Match{
		ID:          uuid.New(),
		User1ID:     u1,
		User2ID:     u2,
		InitiatorID: actorID,
		Status:      domain.MatchPending,
		CreatedAt:   time.Now(),
	}
	if err := s.matchRepo.Create(ctx, match); err != nil {
		return nil, errors.Wrap(err, "creating match")
	}

	return match, nil
}

// ListMatches returns every match the user takes part in.
func (s *MatchService) ListMatches(ctx context.Context, userID uuid.UUID) ([]domain.MatchDetail, error) {
	matches, err := s.matchRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []domain.MatchDetail{}
	}
	return matches, nil
}

// GetMatch returns a match with both profiles, visible to participants only.
func (s *MatchService) GetMatch(ctx context.Context, userID, matchID uuid.UUID) (*domain.MatchDetail, error) {
	d, err := s.matchRepo.GetDetail(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrMatchNotFound
	}
	if !d.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return d, nil
}

// CheckConversation verifies the user may exchange messages in the match.
func (s *MatchService) CheckConversation(ctx context.Context, userID, matchID uuid.UUID) (*domain.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMatchNotFound
	}
	if !m.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	if !m.Accepted() {
		return nil, ErrMatchNotAccepted
	}
	return m, nil
}
