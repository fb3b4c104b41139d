package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/mssola/useragent"

	authservice "idwallet/internal/auth/service"
	"idwallet/internal/platform/middleware"
	dErrors "idwallet/pkg/domain-errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// deviceLabel condenses the User-Agent header into a short session label for
// the audit trail and /me output.
func deviceLabel(r *http.Request) string {
	header := r.UserAgent()
	if header == "" {
		return "unknown"
	}
	ua := useragent.New(header)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	if browser == "" {
		return "unknown"
	}
	if os := ua.OS(); os != "" {
		return browser + " on " + os
	}
	return browser
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.auth.Login(ctx, req.Username, req.Password, deviceLabel(r))
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      result.Token,
		"expires_in": result.ExpiresIn,
		"user_info":  result.User,
		"message":    "login successful",
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authservice.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.auth.Register(ctx, req); err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "account created",
	})
}

// handleLogout revokes the presented session. Logout is idempotent: a token
// that no longer resolves still gets a 204.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthenticated, "missing bearer token"))
		return
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := middleware.GetSession(ctx)
	if session == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	user, err := h.auth.User(ctx, session.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "profile lookup failed",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    session.UserID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"device":     session.Device,
		"created_at": session.CreatedAt,
		"expires_at": session.ExpiresAt,
	})
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := middleware.GetSession(ctx)
	if session == nil {
		writeError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	events, err := h.auditTrail.ListByUser(ctx, session.UserID.String())
	if err != nil {
		h.logger.ErrorContext(ctx, "audit trail lookup failed",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		writeError(w, dErrors.New(dErrors.CodeInternal, "failed to load audit trail"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
