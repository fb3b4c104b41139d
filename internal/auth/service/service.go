// Package service implements the session lifecycle: credential verification,
// session issuance, token validation, and expiry sweeping. It is the only
// writer of the session table.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"idwallet/internal/audit"
	"idwallet/internal/auth/models"
	"idwallet/internal/auth/store"
	jwttoken "idwallet/internal/jwt_token"
	"idwallet/internal/platform/metrics"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/sentinel"
)

// Service owns sessions and accounts. Stores are injected so the in-memory,
// Redis, and Postgres variants are interchangeable.
type Service struct {
	users    store.UserStore
	sessions store.SessionStore
	tokens   *jwttoken.JWTService
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger

	sessionTTL    time.Duration
	sweepInterval time.Duration
}

func New(
	users store.UserStore,
	sessions store.SessionStore,
	tokens *jwttoken.JWTService,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	sessionTTL time.Duration,
	sweepInterval time.Duration,
) *Service {
	return &Service{
		users:         users,
		sessions:      sessions,
		tokens:        tokens,
		auditor:       auditor,
		metrics:       m,
		logger:        logger,
		sessionTTL:    sessionTTL,
		sweepInterval: sweepInterval,
	}
}

// RegisterRequest carries a new account. Password is hashed here and
// discarded; only the hash is stored.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

func (r *RegisterRequest) validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "username is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	if len(r.Password) < 8 {
		return dErrors.New(dErrors.CodeBadRequest, "password must be at least 8 characters")
	}
	return nil
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if err := req.validate(); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "hash password", err)
	}

	user := models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         "User",
		CreatedAt:    time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "username, email, or phone already registered")
		}
		return dErrors.Wrap(dErrors.CodePersistence, "create user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "username", req.Username)
	return nil
}

// Login verifies credentials and issues a fresh session. Concurrent logins
// for the same user produce independent sessions.
func (s *Service) Login(ctx context.Context, login, password, device string) (*models.LoginResult, error) {
	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.rejectLogin(ctx, login, "unknown account")
		}
		return nil, dErrors.Wrap(dErrors.CodePersistence, "find user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, s.rejectLogin(ctx, login, "wrong password")
	}

	now := time.Now()
	session := models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Username:  user.Username,
		Device:    device,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(dErrors.CodePersistence, "save session", err)
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, session.ID, s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "issue token", err)
	}

	if s.metrics != nil {
		s.metrics.LoginsTotal.Inc()
	}
	s.auditor.Emit(audit.Event{
		UserID:   user.ID.String(),
		Action:   audit.ActionLoginSuccess,
		Metadata: map[string]string{"device": device},
	})
	s.logger.InfoContext(ctx, "login succeeded",
		"username", user.Username,
		"session_id", session.ID.String(),
	)

	return &models.LoginResult{
		Token:     token,
		ExpiresIn: int64(s.sessionTTL.Seconds()),
		Session:   &session,
		User: models.UserInfo{
			Username:    user.Username,
			Role:        user.Role,
			Permissions: permissionsFor(user.Role),
			LoginTime:   now.UTC().Format(time.RFC3339),
		},
	}, nil
}

// rejectLogin records the failure without telling the caller which half of
// the credential pair was wrong.
func (s *Service) rejectLogin(ctx context.Context, login, reason string) error {
	if s.metrics != nil {
		s.metrics.LoginFailures.Inc()
	}
	s.auditor.Emit(audit.Event{
		UserID:   login,
		Action:   audit.ActionLoginFailure,
		Metadata: map[string]string{"reason": reason},
	})
	s.logger.WarnContext(ctx, "login rejected", "login", login, "reason", reason)
	return dErrors.New(dErrors.CodeUnauthenticated, "invalid credentials")
}

func permissionsFor(role string) []string {
	if role == "Admin" {
		return []string{"read", "write", "admin"}
	}
	return []string{"read", "write"}
}

// ValidateToken checks the token signature, then the session row. Lookup
// never extends expiry; expired rows are evicted lazily here.
func (s *Service) ValidateToken(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidToken, "session revoked or unknown")
		}
		return nil, dErrors.Wrap(dErrors.CodePersistence, "find session", err)
	}

	if session.Expired(time.Now()) {
		_ = s.sessions.Delete(ctx, session.ID)
		return nil, dErrors.New(dErrors.CodeSessionExpired, "session expired")
	}

	return &session, nil
}

// User loads the account behind a session for profile display. The password
// hash never leaves this layer.
func (s *Service) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(dErrors.CodePersistence, "find user", err)
	}
	user.PasswordHash = ""
	return &user, nil
}

// Logout removes the session named by the token. Idempotent: an already
// invalid token logs out successfully.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return dErrors.Wrap(dErrors.CodePersistence, "delete session", err)
	}
	s.auditor.Emit(audit.Event{
		UserID: claims.UserID,
		Action: audit.ActionLogout,
	})
	return nil
}

// Run sweeps expired sessions periodically until ctx is done, bounding the
// session table even when no one looks expired sessions up. Each pass also
// resets the live-session gauge from the store, the only count that stays
// honest when the backend evicts rows on its own (Redis TTLs).
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := s.sessions.DeleteExpired(ctx, time.Now())
			if err != nil {
				s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				s.logger.DebugContext(ctx, "swept expired sessions", "count", swept)
			}
			if s.metrics != nil {
				live, err := s.sessions.Count(ctx)
				if err != nil {
					s.logger.ErrorContext(ctx, "session count failed", "error", err)
					continue
				}
				s.metrics.ActiveSessions.Set(float64(live))
			}
		}
	}
}
