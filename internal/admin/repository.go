package admin

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/max0n1x/IIS/internal/db"
	"github.com/max0n1x/IIS/internal/errs"
	"github.com/max0n1x/IIS/internal/item"
)

type Repository struct {
	db *db.DB
}

func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database}
}

// requireRole checks the session and that the caller holds one of the roles.
func (r *Repository) requireRole(ctx context.Context, userID int, vKey string, roles ...string) error {
	ok, err := db.SessionValid(ctx, r.db.Pool, userID, vKey)
	if err != nil {
		return err
	}
	if !ok {
		db.LogError(ctx, r.db.Pool, "Unauthorized")
		return errs.ErrUnauthorized
	}

	var role string
	err = r.db.Pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrUnauthorized
	}
	if err != nil {
		return err
	}
	for _, want := range roles {
		if role == want {
			return nil
		}
	}
	db.LogError(ctx, r.db.Pool, "Unauthorized")
	return errs.ErrUnauthorized
}

// GetStats aggregates the admin dashboard counters.
func (r *Repository) GetStats(ctx context.Context, userID int, vKey string) (*Stats, error) {
	if err := r.requireRole(ctx, userID, vKey, "admin"); err != nil {
		return nil, err
	}

	s := &Stats{}
	counts := []struct {
		q    string
		dest *int
	}{
		{`SELECT COUNT(*) FROM users`, &s.Users},
		{`SELECT COUNT(*) FROM items`, &s.Items},
		{`SELECT COUNT(*) FROM unauthorized_users`, &s.Visitors},
		{`SELECT COUNT(*) FROM unauthorized_users WHERE time > now() - interval '1 day'`, &s.VisitorsDay},
		{`SELECT COUNT(*) FROM errors`, &s.Errors},
	}
	for _, c := range counts {
		if err := r.db.Pool.QueryRow(ctx, c.q).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ListUsers returns every manageable account.
func (r *Repository) ListUsers(ctx context.Context, userID int, vKey string) ([]*UserRow, error) {
	if err := r.requireRole(ctx, userID, vKey, "admin"); err != nil {
		return nil, err
	}

	const q = `
SELECT id, username, email, role, status, banned_at, ban_duration
FROM users WHERE role != 'admin'`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*UserRow{}
	for rows.Next() {
		u := &UserRow{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.Status, &u.BannedAt, &u.BanDuration); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// BanUser suspends an account for duration hours (negative means forever)
// and revokes its sessions.
func (r *Repository) BanUser(ctx context.Context, adminID int, vKey string, userID, duration int) error {
	if err := r.requireRole(ctx, adminID, vKey, "admin"); err != nil {
		return err
	}
	if _, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET status = 'banned', ban_duration = $1, banned_at = now() WHERE id = $2`,
		duration, userID); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM validation_keys WHERE user_id = $1`, userID)
	return err
}

// UnbanUser lifts a suspension.
func (r *Repository) UnbanUser(ctx context.Context, adminID int, vKey string, userID int) error {
	if err := r.requireRole(ctx, adminID, vKey, "admin"); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET status = 'active', ban_duration = -1, banned_at = NULL WHERE id = $1`, userID)
	return err
}

// SetRole promotes or demotes an account.
func (r *Repository) SetRole(ctx context.Context, adminID int, vKey string, userID int, role string) error {
	if err := r.requireRole(ctx, adminID, vKey, "admin"); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, userID)
	return err
}

// UpdateEmail changes an account's address on the user's behalf.
func (r *Repository) UpdateEmail(ctx context.Context, adminID int, vKey string, userID int, email string) error {
	if err := r.requireRole(ctx, adminID, vKey, "admin"); err != nil {
		return err
	}
	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET email = $1 WHERE id = $2`, email, userID)
	return err
}

// ListReports returns the moderation queue. Moderators see it too.
func (r *Repository) ListReports(ctx context.Context, userID int, vKey string) ([]*Report, error) {
	if err := r.requireRole(ctx, userID, vKey, "admin", "moderator"); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, `SELECT id, time, reason, item_id FROM reports`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []*Report{}
	for rows.Next() {
		rep := &Report{}
		if err := rows.Scan(&rep.ID, &rep.Time, &rep.Reason, &rep.ItemID); err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// GetReport returns one report.
func (r *Repository) GetReport(ctx context.Context, reportID, userID int, vKey string) (*Report, error) {
	if err := r.requireRole(ctx, userID, vKey, "admin", "moderator"); err != nil {
		return nil, err
	}

	rep := &Report{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, time, reason, item_id FROM reports WHERE id = $1`, reportID).
		Scan(&rep.ID, &rep.Time, &rep.Reason, &rep.ItemID)
	if errors.Is(err, pgx.ErrNoRows) {
		db.LogError(ctx, r.db.Pool, "Report not found")
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// ResolveReport closes a report, optionally deleting the reported item or
// banning its author for banDuration hours. The item cascade also clears
// any remaining reports against it.
func (r *Repository) ResolveReport(ctx context.Context, reportID, userID int, vKey, action string, banDuration int) error {
	if err := r.requireRole(ctx, userID, vKey, "admin", "moderator"); err != nil {
		return err
	}

	var itemID int
	err := r.db.Pool.QueryRow(ctx, `SELECT item_id FROM reports WHERE id = $1`, reportID).Scan(&itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		db.LogError(ctx, r.db.Pool, "Report not found")
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}

	switch action {
	case "delete":
		if err := item.CascadeDelete(ctx, r.db.Pool, itemID); err != nil {
			return err
		}
	case "ban":
		if _, err := r.db.Pool.Exec(ctx, `
UPDATE users SET status = 'banned', ban_duration = $1, banned_at = now()
WHERE id = (SELECT author_id FROM items WHERE id = $2)`, banDuration, itemID); err != nil {
			return err
		}
		if err := item.CascadeDelete(ctx, r.db.Pool, itemID); err != nil {
			return err
		}
	}

	_, err = r.db.Pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, reportID)
	return err
}

// ItemAction lets a moderator delete an item or ban its author directly,
// without a report.
func (r *Repository) ItemAction(ctx context.Context, itemID, userID int, vKey, action string) error {
	if err := r.requireRole(ctx, userID, vKey, "admin", "moderator"); err != nil {
		return err
	}

	switch action {
	case "delete":
		return item.CascadeDelete(ctx, r.db.Pool, itemID)
	case "ban":
		if _, err := r.db.Pool.Exec(ctx, `
UPDATE users SET status = 'banned', ban_duration = 1, banned_at = now()
WHERE id = (SELECT author_id FROM items WHERE id = $1)`, itemID); err != nil {
			return err
		}
		return item.CascadeDelete(ctx, r.db.Pool, itemID)
	default:
		return errs.ErrInvalid
	}
}
