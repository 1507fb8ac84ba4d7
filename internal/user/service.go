package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/max0n1x/IIS/internal/crypto"
	"github.com/max0n1x/IIS/internal/errs"
	"github.com/max0n1x/IIS/internal/mail"
)

// resetTokenTTL bounds password-reset links.
const resetTokenTTL = 15 * time.Minute

type Service struct {
	repo        *Repository
	hasher      *crypto.Hasher
	mailer      mail.Mailer
	resetSecret []byte
	sessionTTL  time.Duration
	log         *zap.Logger
}

type resetClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func NewService(repo *Repository, hasher *crypto.Hasher, mailer mail.Mailer,
	resetSecret string, sessionTTL time.Duration, log *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		mailer:      mailer,
		resetSecret: []byte(resetSecret),
		sessionTTL:  sessionTTL,
		log:         log,
	}
}

// Register begins a registration: the account is only created once the mailed
// code is verified.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) error {
	if req.Username == "" || req.Password == "" || req.Email == "" {
		return fmt.Errorf("%w: empty username, password or email", errs.ErrInvalid)
	}
	taken, err := s.repo.EmailTaken(ctx, req.Email)
	if err != nil {
		return err
	}
	if taken {
		return errs.ErrAlreadyExists
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return err
	}
	code, err := crypto.NewCode()
	if err != nil {
		return err
	}
	if err := s.mailer.SendCode(req.Email, code); err != nil {
		s.repo.LogError(ctx, "Cannot send code")
		return err
	}
	return s.repo.UpsertPending(ctx, code, req.Email, req.Username, hash)
}

// Verify activates a pending registration.
func (s *Service) Verify(ctx context.Context, req *VerifyRequest) error {
	return s.repo.Verify(ctx, req.Email, req.Code)
}

// ResendCode rotates the verification code of a pending registration.
func (s *Service) ResendCode(ctx context.Context, email string) error {
	username, hash, err := s.repo.GetPending(ctx, email)
	if err != nil {
		return err
	}
	code, err := crypto.NewCode()
	if err != nil {
		return err
	}
	if err := s.repo.UpsertPending(ctx, code, email, username, hash); err != nil {
		return err
	}
	if err := s.mailer.SendCode(email, code); err != nil {
		s.repo.LogError(ctx, "Cannot send code")
		return err
	}
	return nil
}

// Login authenticates and issues a fresh validation key.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	u, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if u.Status != StatusActive {
		return nil, errs.ErrForbidden
	}
	if !s.hasher.VerifyPassword(u.PasswordHash, req.Password) {
		return nil, errs.ErrUnauthorized
	}

	vKey, err := crypto.NewValidationKey()
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertValidationKey(ctx, u.ID, vKey, s.sessionTTL); err != nil {
		return nil, err
	}
	return &LoginResponse{UserID: u.ID, VKey: vKey}, nil
}

// Logout invalidates the session key.
func (s *Service) Logout(ctx context.Context, cred *Credentials) error {
	return s.repo.Logout(ctx, cred.UserID, cred.VKey)
}

// Get returns the caller's own profile.
func (s *Service) Get(ctx context.Context, cred *Credentials) (*User, error) {
	if err := s.requireSession(ctx, cred); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, cred.UserID)
}

// GetPublic returns the public view of any account.
func (s *Service) GetPublic(ctx context.Context, userID int) (map[string]string, error) {
	username, err := s.repo.GetPublicUsername(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"username": username}, nil
}

// Update overwrites the caller's profile fields.
func (s *Service) Update(ctx context.Context, req *UpdateRequest) error {
	if err := s.requireSession(ctx, &Credentials{UserID: req.UserID, VKey: req.VKey}); err != nil {
		return err
	}
	return s.repo.UpdateProfile(ctx, req)
}

// Delete removes the caller's account and everything it owns.
func (s *Service) Delete(ctx context.Context, cred *Credentials) error {
	if err := s.requireSession(ctx, cred); err != nil {
		return err
	}
	return s.repo.Delete(ctx, cred.UserID)
}

// ForgotPassword mails a signed reset link. The token is self-contained, so
// no server-side state outlives the mail.
func (s *Service) ForgotPassword(ctx context.Context, email, origin string) error {
	if email == "" {
		return fmt.Errorf("%w: empty email", errs.ErrInvalid)
	}
	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		return err
	}

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, resetClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(resetTokenTTL)),
		},
	})
	signed, err := tok.SignedString(s.resetSecret)
	if err != nil {
		return err
	}
	link := origin + "/reset-password/?token=" + signed
	if err := s.mailer.SendResetLink(email, link); err != nil {
		s.repo.LogError(ctx, "Cannot send reset link")
		return err
	}
	return nil
}

// ResetPassword validates the reset token and stores the new hash.
func (s *Service) ResetPassword(ctx context.Context, req *ResetRequest) error {
	email, err := s.VerifyResetToken(req.Token)
	if err != nil {
		return err
	}
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordByEmail(ctx, email, hash)
}

// VerifyResetToken returns the email a valid reset token was issued for.
func (s *Service) VerifyResetToken(token string) (string, error) {
	claims := &resetClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.resetSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", errs.ErrUnauthorized
	}
	return claims.Email, nil
}

// CountVisitor records an anonymous visit for the admin statistics.
func (s *Service) CountVisitor(ctx context.Context) error {
	return s.repo.CountVisitor(ctx)
}

// RunJanitor sweeps expired credentials and bans until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.repo.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("janitor sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) requireSession(ctx context.Context, cred *Credentials) error {
	ok, err := s.repo.CheckValidationKey(ctx, cred.UserID, cred.VKey)
	if err != nil {
		return err
	}
	if !ok {
		s.repo.LogError(ctx, "Unauthorized")
		return errs.ErrUnauthorized
	}
	return nil
}
