package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"edvora-attempt-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptArchive appends submitted attempts to a Postgres table. It is a
// server-side audit trail next to the session store's per-user history;
// rows are insert-only.
type AttemptArchive struct {
	pool *pgxpool.Pool
}

func NewAttemptArchive(pool *pgxpool.Pool) *AttemptArchive {
	return &AttemptArchive{pool: pool}
}

func (a *AttemptArchive) Archive(ctx context.Context, userID string, record domain.AttemptRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO attempts (user_id, quiz_id, data, attempted_at) VALUES ($1, $2, $3::jsonb, $4)`,
		userID, record.QuizID, string(data), record.AttemptedAt)
	if err != nil {
		return fmt.Errorf("archive attempt: %w", err)
	}
	return nil
}
