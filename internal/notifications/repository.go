package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markato-labs/markato/internal/platform/httpx"
)

type Repository interface {
	Create(ctx context.Context, n Notification) error
	Find(ctx context.Context, id string) (*Notification, error)
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, id string) (*Notification, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = "id, user_id, type, message, read, created_at"

func (r *PGRepository) Create(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, message, read, created_at)
		VALUES ($1, $2, $3, $4, false, now())`,
		n.ID, n.UserID, n.Type, n.Message)
	if err != nil {
		return fmt.Errorf("notifications: create: %w", err)
	}
	return nil
}

func (r *PGRepository) Find(ctx context.Context, id string) (*Notification, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+columns+" FROM notifications WHERE id = $1", id)
	return scan(row)
}

func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+columns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notifications: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PGRepository) MarkRead(ctx context.Context, id string) (*Notification, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications SET read = true
		WHERE id = $1
		RETURNING `+columns, id)
	return scan(row)
}

func scan(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: notification", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("notifications: scan: %w", err)
	}
	return &n, nil
}
