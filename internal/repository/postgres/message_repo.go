package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/pkg/errors"
)

const messageColumns = `id, match_id, sender_id, content, client_nonce, created_at, read_at`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	// A retried write with the same nonce must not produce a second row.
	query := `
		INSERT INTO messages (id, match_id, sender_id, content, client_nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_nonce) WHERE client_nonce IS NOT NULL
		DO UPDATE SET client_nonce = EXCLUDED.client_nonce
		RETURNING ` + messageColumns
	row := r.pool.QueryRow(ctx, query,
		msg.ID, msg.MatchID, msg.SenderID, msg.Content, msg.Nonce, msg.CreatedAt,
	)
	return errors.Wrap(scanMessage(row, msg), "inserting message")
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var msg domain.Message
	err := scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id), &msg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepo) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE match_id = $1
		ORDER BY created_at ASC, id ASC`, matchID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func (r *MessageRepo) MarkRead(ctx context.Context, matchID, readerID uuid.UUID, ids []uuid.UUID) ([]domain.Message, error) {
	query := `
		UPDATE messages SET read_at = now()
		WHERE match_id = $1 AND sender_id <> $2 AND read_at IS NULL`
	args := []any{matchID, readerID}
	if ids != nil {
		query += ` AND id = ANY($3)`
		args = append(args, ids)
	}
	query += ` RETURNING ` + messageColumns

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessage(row pgx.Row, msg *domain.Message) error {
	return row.Scan(
		&msg.ID, &msg.MatchID, &msg.SenderID, &msg.Content,
		&msg.Nonce, &msg.CreatedAt, &msg.ReadAt,
	)
}
