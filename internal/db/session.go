package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// SessionValid reports whether vKey is a current validation key for userID.
// Every privileged store operation re-checks this, not just the handshake.
func SessionValid(ctx context.Context, pool PgxPool, userID int, vKey string) (bool, error) {
	const q = `SELECT id FROM validation_keys WHERE user_id = $1 AND vkey = $2 AND expires_at > now()`
	var id int
	err := pool.QueryRow(ctx, q, userID, vKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LogError appends a line to the persistent error log. Best effort.
func LogError(ctx context.Context, pool PgxPool, message string) {
	_, _ = pool.Exec(ctx, `INSERT INTO errors (message) VALUES ($1)`, message)
}
