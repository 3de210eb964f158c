package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/pkg/errors"
)

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

const detailQuery = `
	SELECT m.id, m.user1_id, m.user2_id, m.initiator_id, m.status, m.created_at,
		u1.id, u1.username, u1.display_name, u1.bio, u1.avatar_url,
		u2.id, u2.username, u2.display_name, u2.bio, u2.avatar_url
	FROM matches m
	JOIN users u1 ON m.user1_id = u1.id
	JOIN users u2 ON m.user2_id = u2.id`

func (r *MatchRepo) Create(ctx context.Context, match *domain.Match) error {
	query := `
		INSERT INTO matches (id, user1_id, user2_id, initiator_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query,
		match.ID, match.User1ID, match.User2ID, match.InitiatorID, match.Status, match.CreatedAt,
	)
	return errors.Wrap(err, "inserting match")
}

func (r *MatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	return r.scanMatch(ctx, `
		SELECT id, user1_id, user2_id, initiator_id, status, created_at
		FROM matches
		WHERE id = $1`, id)
}

func (r *MatchRepo) GetByUsers(ctx context.Context, user1ID, user2ID uuid.UUID) (*domain.Match, error) {
	return r.scanMatch(ctx, `
		SELECT id, user1_id, user2_id, initiator_id, status, created_at
		FROM matches
		WHERE user1_id = $1 AND user2_id = $2`, user1ID, user2ID)
}

func (r *MatchRepo) GetDetail(ctx context.Context, id uuid.UUID) (*domain.MatchDetail, error) {
	d, err := scanDetail(r.pool.QueryRow(ctx, detailQuery+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *MatchRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.MatchDetail, error) {
	rows, err := r.pool.Query(ctx, detailQuery+`
		WHERE m.user1_id = $1 OR m.user2_id = $1
		ORDER BY m.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.MatchDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *d)
	}
	return matches, rows.Err()
}

func (r *MatchRepo) Accept(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE matches SET status = $1 WHERE id = $2`, domain.MatchAccepted, id)
	return errors.Wrap(err, "accepting match")
}

func (r *MatchRepo) scanMatch(ctx context.Context, query string, args ...any) (*domain.Match, error) {
	var m domain.Match
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&m.ID, &m.User1ID, &m.User2ID, &m.InitiatorID, &m.Status, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanDetail(row pgx.Row) (*domain.MatchDetail, error) {
	var d domain.MatchDetail
	err := row.Scan(
		&d.ID, &d.User1ID, &d.User2ID, &d.InitiatorID, &d.Status, &d.CreatedAt,
		&d.User1.ID, &d.User1.Username, &d.User1.DisplayName, &d.User1.Bio, &d.User1.AvatarURL,
		&d.User2.ID, &d.User2.Username, &d.User2.DisplayName, &d.User2.Bio, &d.User2.AvatarURL,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
