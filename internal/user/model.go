package user

import "time"

type User struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Name         *string    `json:"name"`
	Surname      *string    `json:"surname"`
	Email        string     `json:"email"`
	Phone        *string    `json:"phone"`
	Address      *string    `json:"address"`
	DateOfBirth  *string    `json:"date_of_birth"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	BanDuration  int        `json:"ban_duration,omitempty"`
}

// Roles and account states.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"

	StatusActive = "active"
	StatusBanned = "banned"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Credentials accompany every authenticated request body, mirroring the
// login cookies the frontend stores.
type Credentials struct {
	UserID int    `json:"user_id"`
	VKey   string `json:"vKey"`
}

type UpdateRequest struct {
	UserID      int     `json:"user_id"`
	VKey        string  `json:"vKey"`
	Name        *string `json:"name"`
	Surname     *string `json:"surname"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	DateOfBirth *string `json:"date_of_birth"`
}

type ResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID int    `json:"user_id"`
	VKey   string `json:"vKey"`
}
