package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/max0n1x/IIS/internal/db"
	"github.com/max0n1x/IIS/internal/errs"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(&db.DB{Pool: mock}), mock
}

func TestVerifyPromotesPendingRegistration(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT username, password_hash FROM codes`)).
		WithArgs("alice@example.com", "abc123").
		WillReturnRows(pgxmock.NewRows([]string{"username", "password_hash"}).
			AddRow("alice", "$2a$hash"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3)`)).
		WithArgs("alice", "$2a$hash", "alice@example.com").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM codes WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.Verify(context.Background(), "alice@example.com", "abc123")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT username, password_hash FROM codes`)).
		WithArgs("alice@example.com", "wrong1").
		WillReturnError(pgx.ErrNoRows)

	err := repo.Verify(context.Background(), "alice@example.com", "wrong1")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyMapsDuplicateUsername(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT username, password_hash FROM codes`)).
		WithArgs("alice@example.com", "abc123").
		WillReturnRows(pgxmock.NewRows([]string{"username", "password_hash"}).
			AddRow("alice", "$2a$hash"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("alice", "$2a$hash", "alice@example.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Verify(context.Background(), "alice@example.com", "abc123")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertValidationKeyRotatesPreviousKeys(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM validation_keys WHERE user_id = $1`)).
		WithArgs(1).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO validation_keys (user_id, vkey, expires_at)`)).
		WithArgs(1, "deadbeef", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.InsertValidationKey(context.Background(), 1, "deadbeef", 4*time.Hour)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET name = $1, surname = $2, phone = $3, address = $4, date_of_birth = $5`)).
		WithArgs((*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), 99).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateProfile(context.Background(), &UpdateRequest{UserID: 99})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascadesChatsMessagesAndItems(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM messages WHERE chat_id IN`).
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 10))
	mock.ExpectExec(`DELETE FROM chats`).
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM items WHERE author_id = $1`)).
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmailResolvesAdminByUsername(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, username, password_hash, role, status, banned_at, ban_duration FROM users WHERE username = \$1`).
		WithArgs("admin").
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "username", "password_hash", "role", "status", "banned_at", "ban_duration"}).
			AddRow(1, "admin", "$2a$hash", RoleAdmin, StatusActive, nil, -1))

	u, err := repo.GetByEmail(context.Background(), "admin")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, u.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepPurgesExpiredCredentialsAndLiftsBans(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM validation_keys WHERE expires_at < now()`)).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM codes WHERE expires_at < now()`)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE users SET status = 'active'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Sweep(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
