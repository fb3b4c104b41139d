package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account row. PasswordHash is a bcrypt hash; the plaintext
// password never leaves the login handler.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Session proves a prior successful authentication, time-bounded. Callers
// hold only the signed token; the session row itself never leaves the
// session store's ownership.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Username  string
	Device    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given
// instant. Validation never extends expiry (no sliding window).
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserInfo is the caller-visible account summary returned on login.
type UserInfo struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	LoginTime   string   `json:"login_time"`
}

// LoginResult carries the issued token and its lifetime in seconds. Session
// is the row the token references, for orchestrators that keep per-connection
// authentication state.
type LoginResult struct {
	Token     string
	ExpiresIn int64
	User      UserInfo
	Session   *Session
}
