package user

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/max0n1x/IIS/internal/crypto"
	"github.com/max0n1x/IIS/internal/db"
	"github.com/max0n1x/IIS/internal/errs"
)

// recordingMailer captures outgoing mail instead of sending it.
type recordingMailer struct {
	codes map[string]string
	links map[string]string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{codes: map[string]string{}, links: map[string]string{}}
}

func (m *recordingMailer) SendCode(to, code string) error {
	m.codes[to] = code
	return nil
}

func (m *recordingMailer) SendResetLink(to, link string) error {
	m.links[to] = link
	return nil
}

func newTestService(t *testing.T) (*Service, pgxmock.PgxPoolIface, *recordingMailer) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mailer := newRecordingMailer()
	svc := NewService(NewRepository(&db.DB{Pool: mock}), crypto.NewHasher("test-pepper"),
		mailer, "test-secret", 4*time.Hour, zap.NewNop())
	return svc, mock, mailer
}

func loginRow(t *testing.T, id int, password, status string, banDuration int) *pgxmock.Rows {
	t.Helper()
	hash, err := crypto.NewHasher("test-pepper").HashPassword(password)
	require.NoError(t, err)
	return pgxmock.
		NewRows([]string{"id", "username", "password_hash", "role", "status", "banned_at", "ban_duration"}).
		AddRow(id, "alice", hash, RoleUser, status, nil, banDuration)
}

func TestLoginMintsValidationKey(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash, role, status, banned_at, ban_duration FROM users WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnRows(loginRow(t, 1, "secret", StatusActive, -1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM validation_keys WHERE user_id = $1`)).
		WithArgs(1).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO validation_keys`)).
		WithArgs(1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.UserID)
	require.Len(t, resp.VKey, 128)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash`)).
		WithArgs("alice@example.com").
		WillReturnRows(loginRow(t, 1, "secret", StatusActive, -1))

	_, err := svc.Login(context.Background(), &LoginRequest{Email: "alice@example.com", Password: "nope"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginRejectsBannedAccount(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash`)).
		WithArgs("alice@example.com").
		WillReturnRows(loginRow(t, 1, "secret", StatusBanned, 24))

	_, err := svc.Login(context.Background(), &LoginRequest{Email: "alice@example.com", Password: "secret"})
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash`)).
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Login(context.Background(), &LoginRequest{Email: "ghost@example.com", Password: "x"})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Register(context.Background(), &RegisterRequest{Username: "alice"})
	require.ErrorIs(t, err, errs.ErrInvalid)
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(1))

	err := svc.Register(context.Background(), &RegisterRequest{
		Username: "alice", Password: "secret", Email: "alice@example.com",
	})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterMailsCodeAndStoresPending(t *testing.T) {
	svc, mock, mailer := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM users WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM codes WHERE email = $1`)).
		WithArgs("alice@example.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO codes`)).
		WithArgs(pgxmock.AnyArg(), "alice@example.com", "alice", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := svc.Register(context.Background(), &RegisterRequest{
		Username: "alice", Password: "secret", Email: "alice@example.com",
	})
	require.NoError(t, err)
	require.Len(t, mailer.codes["alice@example.com"], 6)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForgotPasswordLinkRoundTrips(t *testing.T) {
	svc, mock, mailer := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, password_hash`)).
		WithArgs("alice@example.com").
		WillReturnRows(loginRow(t, 1, "secret", StatusActive, -1))

	err := svc.ForgotPassword(context.Background(), "alice@example.com", "https://garage-sale.cz")
	require.NoError(t, err)

	link := mailer.links["alice@example.com"]
	require.True(t, strings.HasPrefix(link, "https://garage-sale.cz/reset-password/?token="))

	token := strings.TrimPrefix(link, "https://garage-sale.cz/reset-password/?token=")
	email, err := svc.VerifyResetToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyResetTokenRejectsExpired(t *testing.T) {
	svc, _, _ := newTestService(t)

	past := time.Now().Add(-time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, resetClaims{
		Email: "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyResetToken(signed)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestVerifyResetTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newTestService(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, resetClaims{
		Email: "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyResetToken(signed)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestGetRequiresCurrentKey(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM validation_keys`)).
		WithArgs(1, "stale").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO errors`)).
		WithArgs("Unauthorized").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, err := svc.Get(context.Background(), &Credentials{UserID: 1, VKey: "stale"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}
