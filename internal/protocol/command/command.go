// Package command defines the typed command set shared by both transports
// and the uniform response envelope.
package command

import (
	"encoding/json"
	"fmt"
	"time"

	dErrors "idwallet/pkg/domain-errors"
)

// Type is a validated message type. The inbound string is checked once at
// the boundary; everything downstream switches exhaustively over Type and
// never sees an unrecognized value.
type Type string

const (
	TypeLogin       Type = "login"
	TypeRegister    Type = "register"
	TypeHealthCheck Type = "health_check"

	TypeInsertIdentityCard Type = "InsertIdentityCard"
	TypeGetIdentityCard    Type = "GetIdentityCard"
	TypeUpdateIdentityCard Type = "UpdateIdentityCard"
	TypeWalletStatus       Type = "WalletStatus"
)

// ParseType validates an inbound message type string. Unrecognized types are
// rejected here, never defaulted to a handler.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeLogin, TypeRegister, TypeHealthCheck,
		TypeInsertIdentityCard, TypeGetIdentityCard,
		TypeUpdateIdentityCard, TypeWalletStatus:
		return t, nil
	default:
		return "", dErrors.New(dErrors.CodeUnknownCommand, fmt.Sprintf("unknown message type %q", s))
	}
}

// Gated reports whether the type requires an authenticated session. The
// ungated allow-list is fixed: login, register, health check.
func (t Type) Gated() bool {
	switch t {
	case TypeLogin, TypeRegister, TypeHealthCheck:
		return false
	default:
		return true
	}
}

// Command is one parsed request. UserID is the caller-asserted identity;
// gated handlers resolve the effective identity from the session instead.
// Content is optional structured payload, kept raw until a handler needs it.
type Command struct {
	Type    Type
	UserID  string
	Content json.RawMessage
}

// wireRequest is the transport representation of a command.
type wireRequest struct {
	MessageType string          `json:"message_type"`
	UserID      string          `json:"user_id"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Parse decodes one frame into a Command, validating the message type.
func Parse(data []byte) (Command, error) {
	var req wireRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return Command{}, dErrors.Wrap(dErrors.CodeBadRequest, "malformed command", err)
	}
	t, err := ParseType(req.MessageType)
	if err != nil {
		return Command{Type: Type(req.MessageType)}, err
	}
	return Command{Type: t, UserID: req.UserID, Content: req.Content}, nil
}

// Response is the uniform envelope returned for every command. MessageType
// always echoes the request's type, success or not, so callers correlate.
type Response struct {
	Success     bool            `json:"success"`
	MessageType string          `json:"message_type"`
	Data        json.RawMessage `json:"data"`
	Timestamp   string          `json:"timestamp"`
}

// OK builds a success envelope. The data value must marshal; handlers only
// pass types they own, so a marshal failure is a programming error and is
// reported as an internal failure envelope instead of panicking.
func OK(msgType Type, data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return Fail(msgType, dErrors.Wrap(dErrors.CodeInternal, "encode response", err))
	}
	return Response{
		Success:     true,
		MessageType: string(msgType),
		Data:        raw,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Fail builds a failure envelope from a domain error. Only the code and the
// caller-safe message cross the boundary.
func Fail(msgType Type, err error) Response {
	raw, _ := json.Marshal(map[string]string{
		"error":   string(dErrors.CodeOf(err)),
		"message": dErrors.MessageOf(err),
	})
	return Response{
		Success:     false,
		MessageType: string(msgType),
		Data:        raw,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}
