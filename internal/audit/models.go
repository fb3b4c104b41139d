package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names an auditable security event.
type Action string

const (
	ActionLoginSuccess   Action = "login_success"
	ActionLoginFailure   Action = "login_failure"
	ActionLogout         Action = "logout"
	ActionUnauthorized   Action = "unauthorized_command"
	ActionRecordUpserted Action = "record_upserted"
	ActionRecordRead     Action = "record_read"
)

// Event is one append-only audit record. UserID is the caller-asserted
// identifier for failed logins (the account may not exist) and the resolved
// account id otherwise.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	UserID    string            `json:"user_id"`
	Action    Action            `json:"action"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
