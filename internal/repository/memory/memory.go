// Package memory implements the repositories in process memory. It backs
// the server when no database is configured and the service tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/pkg/errors"
)

var ErrDuplicate = errors.New("duplicate key")

// Store holds every table behind one lock.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	matches  map[uuid.UUID]domain.Match
	messages []domain.Message
}

func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]domain.User),
		matches: make(map[uuid.UUID]domain.Match),
	}
}

func (s *Store) Users() *UserRepo       { return &UserRepo{s} }
func (s *Store) Matches() *MatchRepo    { return &MatchRepo{s} }
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s} }

// --- Users ---

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return ErrDuplicate
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *UserRepo) find(pred func(domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if pred(u) {
			return &u, nil
		}
	}
	return nil, nil
}

// --- Matches ---

type MatchRepo struct{ s *Store }

func (r *MatchRepo) Create(ctx context.Context, match *domain.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.matches {
		if m.User1ID == match.User1ID && m.User2ID == match.User2ID {
			return ErrDuplicate
		}
	}
	r.s.matches[match.ID] = *match
	return nil
}

func (r *MatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MatchRepo) GetByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.matches {
		if m.User1ID == user1ID && m.User2ID == user2ID {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *MatchRepo) GetDetail(ctx context.Context, id uuid.UUID) (*domain.MatchDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, nil
	}
	d := r.detail(m)
	return &d, nil
}

func (r *MatchRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.MatchDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.MatchDetail
	for _, m := range r.s.matches {
		if m.HasParticipant(userID) {
			out = append(out, r.detail(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MatchRepo) Accept(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil
	}
	m.Status = domain.MatchAccepted
	r.s.matches[id] = m
	return nil
}

// detail must be called with the lock held.
func (r *MatchRepo) detail(m domain.Match) domain.MatchDetail {
	d := domain.MatchDetail{Match: m}
	if u, ok := r.s.users[m.User1ID]; ok {
		d.User1 = u.Profile()
	}
	if u, ok := r.s.users[m.User2ID]; ok {
		d.User2 = u.Profile()
	}
	return d
}

// --- Messages ---

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg.Nonce != nil {
		for _, m := range r.s.messages {
			if m.Nonce != nil && *m.Nonce == *msg.Nonce {
				*msg = m
				return nil
			}
		}
	}
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.messages {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

func (r *MessageRepo) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Message
	for _, m := range r.s.messages {
		if m.MatchID == matchID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, matchID, readerID uuid.UUID, ids []uuid.UUID) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	var changed []domain.Message
	for i, m := range r.s.messages {
		if m.MatchID != matchID || m.SenderID == readerID || m.ReadAt != nil {
			continue
		}
		if ids != nil && !slices.Contains(ids, m.ID) {
			continue
		}
		r.s.messages[i].ReadAt = &now
		changed = append(changed, r.s.messages[i])
	}
	return changed, nil
}
