// Package httptransport is the request/response surface. Handlers stay thin:
// they decode, delegate to services or the dispatcher, and encode. Business
// rules live below this layer.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"idwallet/internal/audit"
	authmodels "idwallet/internal/auth/models"
	authservice "idwallet/internal/auth/service"
	"idwallet/internal/platform/metrics"
	"idwallet/internal/platform/middleware"
	"idwallet/internal/protocol/command"
	dErrors "idwallet/pkg/domain-errors"
)

// AuthService is the session lifecycle as seen by HTTP handlers.
type AuthService interface {
	Login(ctx context.Context, login, password, device string) (*authmodels.LoginResult, error)
	Register(ctx context.Context, req authservice.RegisterRequest) error
	ValidateToken(ctx context.Context, token string) (*authmodels.Session, error)
	Logout(ctx context.Context, token string) error
	User(ctx context.Context, id uuid.UUID) (*authmodels.User, error)
}

// HealthChecker pings one backing system for the health endpoint.
type HealthChecker func(ctx context.Context) error

// Dispatcher routes a parsed command under the session gate.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command, session *authmodels.Session) (command.Response, *authmodels.Session)
}

// AuditReader serves a user's own audit trail.
type AuditReader interface {
	ListByUser(ctx context.Context, userID string) ([]audit.Event, error)
}

type Handler struct {
	logger     *slog.Logger
	auth       AuthService
	dispatcher Dispatcher
	auditTrail AuditReader
	metrics    *metrics.Metrics
	// checks are the optional backing systems /health pings, keyed by
	// component name.
	checks map[string]HealthChecker
}

func NewHandler(
	auth AuthService,
	dispatcher Dispatcher,
	auditTrail AuditReader,
	m *metrics.Metrics,
	checks map[string]HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		logger:     logger,
		auth:       auth,
		dispatcher: dispatcher,
		auditTrail: auditTrail,
		metrics:    m,
		checks:     checks,
	}
}

// NewRouter wires all public endpoints. The command path (/message) checks
// the bearer token itself so failures come back in the command envelope; the
// /me routes use the middleware gate instead.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Post("/login", h.handleLogin)
	r.Post("/register", h.handleRegister)
	r.Post("/logout", h.handleLogout)
	r.Post("/message", h.handleMessage)
	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.auth, h.logger))
		r.Get("/me", h.handleMe)
		r.Get("/me/audit", h.handleAuditTrail)
	})

	return r
}

func bearerToken(r *http.Request) (string, bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates a domain error into the JSON error shape. Only the
// code and the caller-safe message cross the boundary.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]any{
		"success": false,
		"error":   string(code),
		"message": dErrors.MessageOf(err),
	})
}

// envelopeStatus maps a command envelope to an HTTP status. The stream
// transport has no statuses, so the code inside the envelope stays the
// authoritative error kind on both transports.
func envelopeStatus(resp command.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	var data struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(resp.Data, &data)
	return dErrors.ToHTTPStatus(dErrors.Code(data.Error))
}

func writeEnvelope(w http.ResponseWriter, resp command.Response) {
	writeJSON(w, envelopeStatus(resp), resp)
}
