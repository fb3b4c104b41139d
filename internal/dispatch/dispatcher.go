// Package dispatch routes parsed commands to handlers, enforcing the
// session gate. Both transports share one Dispatcher, so the gating policy
// cannot drift between them.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"idwallet/internal/audit"
	authmodels "idwallet/internal/auth/models"
	authservice "idwallet/internal/auth/service"
	"idwallet/internal/platform/metrics"
	"idwallet/internal/protocol/command"
	dErrors "idwallet/pkg/domain-errors"
)

// AuthService is the slice of the session lifecycle the dispatcher needs
// for the ungated login and register commands.
type AuthService interface {
	Login(ctx context.Context, login, password, device string) (*authmodels.LoginResult, error)
	Register(ctx context.Context, req authservice.RegisterRequest) error
}

// WalletService is the encrypted record boundary as seen by handlers.
type WalletService interface {
	Upsert(ctx context.Context, ownerLogin string, content json.RawMessage) error
	Get(ctx context.Context, ownerLogin string) (json.RawMessage, error)
	Has(ctx context.Context, ownerLogin string) (bool, error)
}

// Dispatcher routes one command to exactly one handler and wraps the result
// in the response envelope.
type Dispatcher struct {
	auth    AuthService
	wallet  WalletService
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	// device labels sessions created through the command path; the HTTP
	// login endpoint labels its own.
	device string
}

func New(
	auth AuthService,
	wallet WalletService,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	device string,
) *Dispatcher {
	return &Dispatcher{
		auth:    auth,
		wallet:  wallet,
		auditor: auditor,
		metrics: m,
		logger:  logger,
		device:  device,
	}
}

type loginContent struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Dispatch gates and routes cmd. The returned session is non-nil only when
// the command was a successful login, so stream orchestrators can bind the
// new session to their connection. For a rejected gated command no handler
// runs and the record store is never reached.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command, session *authmodels.Session) (command.Response, *authmodels.Session) {
	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.DispatchDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		}
	}()

	if cmd.Type.Gated() {
		if session == nil || session.Expired(time.Now()) {
			if d.metrics != nil {
				d.metrics.UnauthorizedTotal.Inc()
			}
			d.auditor.Emit(audit.Event{
				UserID:   cmd.UserID,
				Action:   audit.ActionUnauthorized,
				Metadata: map[string]string{"message_type": string(cmd.Type)},
			})
			d.logger.WarnContext(ctx, "gated command without valid session",
				"message_type", string(cmd.Type),
			)
			return command.Fail(cmd.Type, dErrors.New(dErrors.CodeUnauthenticated, "login required")), nil
		}
	}

	if d.metrics != nil {
		d.metrics.CommandsTotal.WithLabelValues(string(cmd.Type)).Inc()
	}

	switch cmd.Type {
	case command.TypeHealthCheck:
		return command.OK(cmd.Type, map[string]string{"status": "ok", "message": "server is running"}), nil

	case command.TypeLogin:
		return d.handleLogin(ctx, cmd)

	case command.TypeRegister:
		return d.handleRegister(ctx, cmd), nil

	case command.TypeInsertIdentityCard, command.TypeUpdateIdentityCard:
		// Both map to upsert: insert if absent, replace if present.
		if err := d.wallet.Upsert(ctx, session.Username, cmd.Content); err != nil {
			return command.Fail(cmd.Type, err), nil
		}
		return command.OK(cmd.Type, map[string]string{"msg": "identity card saved"}), nil

	case command.TypeGetIdentityCard:
		content, err := d.wallet.Get(ctx, session.Username)
		if err != nil {
			return command.Fail(cmd.Type, err), nil
		}
		return command.OK(cmd.Type, content), nil

	case command.TypeWalletStatus:
		has, err := d.wallet.Has(ctx, session.Username)
		if err != nil {
			return command.Fail(cmd.Type, err), nil
		}
		return command.OK(cmd.Type, map[string]bool{"identity": has}), nil

	default:
		// Unreachable for commands that came through command.Parse;
		// kept so a future type cannot silently fall through to a
		// handler.
		return command.Fail(cmd.Type, dErrors.New(dErrors.CodeUnknownCommand, "unknown message type")), nil
	}
}

func (d *Dispatcher) handleLogin(ctx context.Context, cmd command.Command) (command.Response, *authmodels.Session) {
	var creds loginContent
	if err := json.Unmarshal(cmd.Content, &creds); err != nil {
		return command.Fail(cmd.Type, dErrors.New(dErrors.CodeBadRequest, "login content must carry username and password")), nil
	}

	result, err := d.auth.Login(ctx, creds.Username, creds.Password, d.device)
	if err != nil {
		return command.Fail(cmd.Type, err), nil
	}

	data := map[string]any{
		"token":      result.Token,
		"expires_in": result.ExpiresIn,
		"user_info":  result.User,
	}
	return command.OK(cmd.Type, data), result.Session
}

func (d *Dispatcher) handleRegister(ctx context.Context, cmd command.Command) command.Response {
	var req authservice.RegisterRequest
	if err := json.Unmarshal(cmd.Content, &req); err != nil {
		return command.Fail(cmd.Type, dErrors.New(dErrors.CodeBadRequest, "register content must carry account details"))
	}
	if err := d.auth.Register(ctx, req); err != nil {
		return command.Fail(cmd.Type, err)
	}
	return command.OK(cmd.Type, map[string]string{"message": "account created"})
}
