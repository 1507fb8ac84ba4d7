package user

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/max0n1x/IIS/internal/db"
	"github.com/max0n1x/IIS/internal/errs"
)

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

// LogError appends a line to the persistent error log. Best effort.
func (r *Repository) LogError(ctx context.Context, message string) {
	db.LogError(ctx, r.db.Pool, message)
}

// EnsureAdmin upserts the bootstrap admin account.
func (r *Repository) EnsureAdmin(ctx context.Context, passwordHash string) error {
	const q = `
INSERT INTO users (username, password_hash, email, role)
VALUES ('admin', $1, 'admin', 'admin')
ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash`
	_, err := r.db.Pool.Exec(ctx, q, passwordHash)
	return err
}

// EmailTaken reports whether an active account already uses the address.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var id int
	err := r.db.Pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpsertPending stores a registration awaiting its verification code,
// replacing any previous pending registration for the address.
func (r *Repository) UpsertPending(ctx context.Context, code, email, username, passwordHash string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM codes WHERE email = $1`, email); err != nil {
		return err
	}
	const q = `
INSERT INTO codes (code, email, username, password_hash, expires_at)
VALUES ($1, $2, $3, $4, now() + interval '1 hour')`
	_, err := r.db.Pool.Exec(ctx, q, code, email, username, passwordHash)
	return err
}

// GetPending returns the pending registration for the address.
func (r *Repository) GetPending(ctx context.Context, email string) (username, passwordHash string, err error) {
	const q = `SELECT username, password_hash FROM codes WHERE email = $1 AND expires_at > now()`
	err = r.db.Pool.QueryRow(ctx, q, email).Scan(&username, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", errs.ErrNotFound
	}
	return username, passwordHash, err
}

// Verify promotes a pending registration to a full account if the code matches.
func (r *Repository) Verify(ctx context.Context, email, code string) error {
	var username, passwordHash string
	const sel = `
SELECT username, password_hash FROM codes
WHERE email = $1 AND code = $2 AND expires_at > now()`
	err := r.db.Pool.QueryRow(ctx, sel, email, code).Scan(&username, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3)`,
		username, passwordHash, email)
	if db.IsUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	_, err = r.db.Pool.Exec(ctx, `DELETE FROM codes WHERE email = $1`, email)
	return err
}

// GetByEmail loads the account for login. The bootstrap admin logs in by
// username since it has no real mailbox.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	q := `SELECT id, username, password_hash, role, status, banned_at, ban_duration FROM users WHERE email = $1`
	if email == "admin" {
		q = `SELECT id, username, password_hash, role, status, banned_at, ban_duration FROM users WHERE username = $1`
	}
	u := &User{Email: email}
	err := r.db.Pool.QueryRow(ctx, q, email).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Status, &u.BannedAt, &u.BanDuration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID returns the full profile of an account.
func (r *Repository) GetByID(ctx context.Context, id int) (*User, error) {
	const q = `
SELECT id, username, name, surname, email, phone, address, date_of_birth, role
FROM users WHERE id = $1`
	u := &User{}
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&u.ID, &u.Username, &u.Name, &u.Surname, &u.Email, &u.Phone, &u.Address, &u.DateOfBirth, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetPublicUsername resolves a user id to its public display name.
func (r *Repository) GetPublicUsername(ctx context.Context, id int) (string, error) {
	var username string
	err := r.db.Pool.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, id).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errs.ErrNotFound
	}
	return username, err
}

// UpdateProfile overwrites the mutable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, req *UpdateRequest) error {
	const q = `
UPDATE users SET name = $1, surname = $2, phone = $3, address = $4, date_of_birth = $5
WHERE id = $6`
	tag, err := r.db.Pool.Exec(ctx, q, req.Name, req.Surname, req.Phone, req.Address, req.DateOfBirth, req.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the account together with every chat it participates in,
// those chats' messages, and every item it listed (reports cascade with the
// items, validation keys with the user row).
func (r *Repository) Delete(ctx context.Context, userID int) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const affected = `
SELECT chat_id FROM chats
WHERE user_from = $1 OR user_to = $1
   OR item_id IN (SELECT id FROM items WHERE author_id = $1)`
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id IN (`+affected+`)`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
DELETE FROM chats
WHERE user_from = $1 OR user_to = $1
   OR item_id IN (SELECT id FROM items WHERE author_id = $1)`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM items WHERE author_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertValidationKey rotates the session credential for a user: any previous
// keys are dropped and the new one expires after ttl.
func (r *Repository) InsertValidationKey(ctx context.Context, userID int, vKey string, ttl time.Duration) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM validation_keys WHERE user_id = $1`, userID); err != nil {
		return err
	}
	const q = `
INSERT INTO validation_keys (user_id, vkey, expires_at)
VALUES ($1, $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, userID, vKey, time.Now().Add(ttl))
	return err
}

// CheckValidationKey reports whether the key is current for the user.
func (r *Repository) CheckValidationKey(ctx context.Context, userID int, vKey string) (bool, error) {
	return db.SessionValid(ctx, r.db.Pool, userID, vKey)
}

// Logout drops the validation key, ending the session everywhere.
func (r *Repository) Logout(ctx context.Context, userID int, vKey string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM validation_keys WHERE user_id = $1 AND vkey = $2`, userID, vKey)
	return err
}

// UpdatePasswordByEmail replaces the password hash after a reset.
func (r *Repository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE email = $2`, passwordHash, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// CountVisitor records an anonymous page visit.
func (r *Repository) CountVisitor(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO unauthorized_users DEFAULT VALUES`)
	return err
}

// Sweep purges expired validation keys and registration codes and lifts bans
// whose duration has elapsed.
func (r *Repository) Sweep(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM validation_keys WHERE expires_at < now()`); err != nil {
		return err
	}
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM codes WHERE expires_at < now()`); err != nil {
		return err
	}
	const unban = `
UPDATE users SET status = 'active', banned_at = NULL, ban_duration = -1
WHERE status = 'banned' AND ban_duration > 0
  AND banned_at + make_interval(hours => ban_duration) < now()`
	_, err := r.db.Pool.Exec(ctx, unban)
	return err
}
