package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"idwallet/internal/audit"
	"idwallet/internal/auth/store"
	jwttoken "idwallet/internal/jwt_token"
	"idwallet/internal/platform/metrics"
	dErrors "idwallet/pkg/domain-errors"
)

type AuthServiceSuite struct {
	suite.Suite
	users    *store.InMemoryUserStore
	sessions *store.InMemorySessionStore
	inbox    chan audit.Event
	svc      *Service
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.users = store.NewInMemoryUserStore()
	s.sessions = store.NewInMemorySessionStore()
	s.inbox = make(chan audit.Event, 64)
	logger := slog.New(slog.DiscardHandler)
	s.svc = New(
		s.users,
		s.sessions,
		jwttoken.NewJWTService("test-key", "idwallet"),
		audit.NewPublisher(s.inbox, logger),
		nil,
		logger,
		24*time.Hour,
		time.Minute,
	)
}

func (s *AuthServiceSuite) register(username string) {
	err := s.svc.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Phone:    "07" + username,
		Password: "correct-horse",
	})
	s.Require().NoError(err)
}

func (s *AuthServiceSuite) TestRegister() {
	s.Run("valid request creates account", func() {
		s.register("ana")
		user, err := s.users.FindByLogin(context.Background(), "ana")
		s.Require().NoError(err)
		s.Equal("ana", user.Username)
		s.NotEqual("correct-horse", user.PasswordHash)
	})

	s.Run("rejects short password", func() {
		err := s.svc.Register(context.Background(), RegisterRequest{
			Username: "bob", Email: "bob@example.com", Password: "short",
		})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	})

	s.Run("duplicate login is a conflict", func() {
		s.register("carol")
		err := s.svc.Register(context.Background(), RegisterRequest{
			Username: "carol", Email: "other@example.com", Password: "correct-horse",
		})
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeConflict))
	})
}

func (s *AuthServiceSuite) TestLogin() {
	s.Run("valid credentials issue a working token", func() {
		s.register("ana")
		result, err := s.svc.Login(context.Background(), "ana", "correct-horse", "test")
		s.Require().NoError(err)
		s.NotEmpty(result.Token)
		s.EqualValues(86400, result.ExpiresIn)
		s.Equal("ana", result.User.Username)

		session, err := s.svc.ValidateToken(context.Background(), result.Token)
		s.Require().NoError(err)
		s.Equal("ana", session.Username)
	})

	s.Run("login by email resolves the same account", func() {
		s.register("dan")
		result, err := s.svc.Login(context.Background(), "dan@example.com", "correct-horse", "test")
		s.Require().NoError(err)
		s.Equal("dan", result.User.Username)
	})

	s.Run("unknown account is rejected", func() {
		_, err := s.svc.Login(context.Background(), "ghost", "whatever-pass", "test")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
	})

	s.Run("wrong password is rejected with the same error", func() {
		s.register("eve")
		_, err := s.svc.Login(context.Background(), "eve", "wrong-password", "test")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeUnauthenticated))
	})

	s.Run("concurrent logins produce independent sessions", func() {
		s.register("fred")
		first, err := s.svc.Login(context.Background(), "fred", "correct-horse", "a")
		s.Require().NoError(err)
		second, err := s.svc.Login(context.Background(), "fred", "correct-horse", "b")
		s.Require().NoError(err)

		s.Require().NoError(s.svc.Logout(context.Background(), first.Token))
		_, err = s.svc.ValidateToken(context.Background(), second.Token)
		s.NoError(err)
	})
}

func (s *AuthServiceSuite) TestValidateToken() {
	s.Run("garbage token is invalid", func() {
		_, err := s.svc.ValidateToken(context.Background(), "garbage")
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvalidToken))
	})

	s.Run("logout then validate fails", func() {
		s.register("gina")
		result, err := s.svc.Login(context.Background(), "gina", "correct-horse", "test")
		s.Require().NoError(err)

		s.Require().NoError(s.svc.Logout(context.Background(), result.Token))
		_, err = s.svc.ValidateToken(context.Background(), result.Token)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeInvalidToken))
	})

	s.Run("logout is idempotent on unknown tokens", func() {
		s.NoError(s.svc.Logout(context.Background(), "garbage"))
	})

	s.Run("expired session row is rejected and evicted", func() {
		s.register("hugo")
		result, err := s.svc.Login(context.Background(), "hugo", "correct-horse", "test")
		s.Require().NoError(err)

		// Back-date the row past expiry; the signed token is still valid.
		session, err := s.svc.ValidateToken(context.Background(), result.Token)
		s.Require().NoError(err)
		session.ExpiresAt = time.Now().Add(-time.Minute)
		s.Require().NoError(s.sessions.Save(context.Background(), *session))

		_, err = s.svc.ValidateToken(context.Background(), result.Token)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeSessionExpired))

		// Lazy eviction removed the row.
		_, err = s.sessions.FindByID(context.Background(), session.ID)
		s.Error(err)
	})
}

func (s *AuthServiceSuite) TestUser() {
	s.Run("returns the account without its password hash", func() {
		s.register("ana")
		stored, err := s.users.FindByLogin(context.Background(), "ana")
		s.Require().NoError(err)

		user, err := s.svc.User(context.Background(), stored.ID)
		s.Require().NoError(err)
		s.Equal("ana", user.Username)
		s.Equal("ana@example.com", user.Email)
		s.Empty(user.PasswordHash)
	})

	s.Run("unknown id maps to not_found", func() {
		_, err := s.svc.User(context.Background(), uuid.New())
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *AuthServiceSuite) TestSweep() {
	s.register("ivy")
	result, err := s.svc.Login(context.Background(), "ivy", "correct-horse", "test")
	s.Require().NoError(err)

	session, err := s.svc.ValidateToken(context.Background(), result.Token)
	s.Require().NoError(err)
	session.ExpiresAt = time.Now().Add(-time.Minute)
	s.Require().NoError(s.sessions.Save(context.Background(), *session))

	swept, err := s.sessions.DeleteExpired(context.Background(), time.Now())
	s.Require().NoError(err)
	s.Equal(1, swept)
}

// Registered once: promauto collectors are process-global.
var testMetrics = metrics.New()

func (s *AuthServiceSuite) TestSweepResetsSessionGauge() {
	logger := slog.New(slog.DiscardHandler)
	svc := New(
		s.users,
		s.sessions,
		jwttoken.NewJWTService("test-key", "idwallet"),
		audit.NewPublisher(s.inbox, logger),
		testMetrics,
		logger,
		24*time.Hour,
		20*time.Millisecond,
	)

	s.register("kim")
	live, err := svc.Login(context.Background(), "kim", "correct-horse", "a")
	s.Require().NoError(err)
	stale, err := svc.Login(context.Background(), "kim", "correct-horse", "b")
	s.Require().NoError(err)

	session, err := svc.ValidateToken(context.Background(), stale.Token)
	s.Require().NoError(err)
	session.ExpiresAt = time.Now().Add(-time.Minute)
	s.Require().NoError(s.sessions.Save(context.Background(), *session))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	// The sweeper counts the store each pass, so the gauge settles on the
	// one session that is still live.
	s.Require().Eventually(func() bool {
		return testutil.ToFloat64(testMetrics.ActiveSessions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = svc.ValidateToken(context.Background(), live.Token)
	s.NoError(err)
}

func (s *AuthServiceSuite) TestAuditEvents() {
	s.register("jon")
	_, err := s.svc.Login(context.Background(), "jon", "correct-horse", "test")
	s.Require().NoError(err)
	_, err = s.svc.Login(context.Background(), "jon", "bad-password", "test")
	s.Require().Error(err)

	var actions []audit.Action
	for len(s.inbox) > 0 {
		actions = append(actions, (<-s.inbox).Action)
	}
	s.Contains(actions, audit.ActionLoginSuccess)
	s.Contains(actions, audit.ActionLoginFailure)
}
