package httptransport

import (
	"io"
	"net/http"
	"time"

	authmodels "idwallet/internal/auth/models"
	"idwallet/internal/platform/middleware"
	"idwallet/internal/protocol/command"
	dErrors "idwallet/pkg/domain-errors"
)

// maxMessageBody bounds one command body, mirroring the stream transport's
// reassembly buffer bound.
const maxMessageBody = 64 << 10

// handleMessage accepts one command per request and answers with the same
// envelope the stream transport writes. The bearer check happens here, not
// in middleware, so a rejected gated command still echoes its message_type.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBody))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large or unreadable"))
		return
	}

	cmd, err := command.Parse(body)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeUnknownCommand) && h.metrics != nil {
			h.metrics.UnknownCommands.Inc()
		}
		h.logger.WarnContext(ctx, "rejected command",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		writeEnvelope(w, command.Fail(cmd.Type, err))
		return
	}

	var session *authmodels.Session
	if token, ok := bearerToken(r); ok {
		session, err = h.auth.ValidateToken(ctx, token)
		if err != nil {
			// An ungated command still runs; a gated one reports why
			// the presented token was refused instead of a generic
			// login-required.
			if cmd.Type.Gated() {
				if h.metrics != nil {
					h.metrics.UnauthorizedTotal.Inc()
				}
				writeEnvelope(w, command.Fail(cmd.Type, err))
				return
			}
			session = nil
		}
	}

	resp, _ := h.dispatcher.Dispatch(ctx, cmd, session)
	writeEnvelope(w, resp)
}

// handleHealth pings the configured backing systems. All up (or none
// configured) reports healthy; any failure reports degraded with the
// per-component breakdown.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	httpStatus := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				"component", name,
				"error", err.Error(),
			)
			components[name] = "down"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		components[name] = "up"
	}

	body := map[string]any{
		"status":    status,
		"message":   "server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(components) > 0 {
		body["components"] = components
	}
	writeJSON(w, httpStatus, body)
}
