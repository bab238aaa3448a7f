package domain

import "time"

// AuditKind names a session lifecycle event.
type AuditKind string

const (
	AuditLogin         AuditKind = "login"
	AuditLogout        AuditKind = "logout"
	AuditForcedLogout  AuditKind = "forced_logout"
	AuditRoleBounce    AuditKind = "role_bounce"
	AuditLoginRedirect AuditKind = "login_redirect"
)

// AuditEvent records a session transition for one browser client.
type AuditEvent struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id,omitempty"`
	Role      Role      `json:"role,omitempty"`
	Kind      AuditKind `json:"kind"`
	Path      string    `json:"path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (e *AuditEvent) Touch() {
	if e == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}
