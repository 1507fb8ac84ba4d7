package admin

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
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

func expectRole(mock pgxmock.PgxPoolIface, userID int, vKey, role string) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM validation_keys`)).
		WithArgs(userID, vKey).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT role FROM users WHERE id = $1`)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(role))
}

func TestGetStatsRequiresAdminRole(t *testing.T) {
	repo, mock := newMockRepo(t)

	expectRole(mock, 2, "k", "moderator")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO errors`)).
		WithArgs("Unauthorized").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := repo.GetStats(context.Background(), 2, "k")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatsAggregatesCounters(t *testing.T) {
	repo, mock := newMockRepo(t)

	expectRole(mock, 1, "k", "admin")
	for _, n := range []int{10, 25, 300, 12, 4} {
		mock.ExpectQuery(`SELECT COUNT`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(n))
	}

	s, err := repo.GetStats(context.Background(), 1, "k")
	require.NoError(t, err)
	require.Equal(t, 10, s.Users)
	require.Equal(t, 25, s.Items)
	require.Equal(t, 300, s.Visitors)
	require.Equal(t, 12, s.VisitorsDay)
	require.Equal(t, 4, s.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBanUserRevokesSessions(t *testing.T) {
	repo, mock := newMockRepo(t)

	expectRole(mock, 1, "k", "admin")
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET status = 'banned', ban_duration = $1, banned_at = now() WHERE id = $2`)).
		WithArgs(24, 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM validation_keys WHERE user_id = $1`)).
		WithArgs(7).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.BanUser(context.Background(), 1, "k", 7, 24)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListReportsOpenToModerators(t *testing.T) {
	repo, mock := newMockRepo(t)

	expectRole(mock, 2, "k", "moderator")
	filed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, time, reason, item_id FROM reports`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "time", "reason", "item_id"}).
			AddRow(1, filed, "spam", 5))

	reports, err := repo.ListReports(context.Background(), 2, "k")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, 5, reports[0].ItemID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReportDeleteCascadesItem(t *testing.T) {
	repo, mock := newMockRepo(t)

	expectRole(mock, 1, "k", "admin")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT item_id FROM reports WHERE id = $1`)).
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"item_id"}).AddRow(5))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM messages WHERE chat_id IN`).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chats WHERE item_id = $1`)).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reports WHERE item_id = $1`)).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM items WHERE id = $1`)).
		WithArgs(5).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM reports WHERE id = $1`)).
		WithArgs(3).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.ResolveReport(context.Background(), 3, 1, "k", "delete", 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReportUnknownReport(t *testing.T) {
	repo, mock := newMockRepo(t)

	expectRole(mock, 1, "k", "admin")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT item_id FROM reports WHERE id = $1`)).
		WithArgs(99).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO errors`)).
		WithArgs("Report not found").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.ResolveReport(context.Background(), 99, 1, "k", "delete", 0)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemActionRejectsUnknownVerb(t *testing.T) {
	repo, mock := newMockRepo(t)

	expectRole(mock, 2, "k", "moderator")

	err := repo.ItemAction(context.Background(), 5, 2, "k", "shadowban")
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}
