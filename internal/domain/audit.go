package domain

import (
	"context"
	"time"
)

// AuditEventType classifies audit log entries.
type AuditEventType string

const (
	AuditFileMove      AuditEventType = "file_move"
	AuditFileRename    AuditEventType = "file_rename"
	AuditSettingsWrite AuditEventType = "settings_write"
	AuditRetention     AuditEventType = "audit_retention"
)

// AuditEvent represents a single auditable action.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	Detail    map[string]string `json:"detail,omitempty"`

	Actor    string `json:"actor,omitempty"`
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// AuditLogger writes audit events to a persistent log.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Close() error
}

// OperationAuditor records the outcome of a mutating operation. The actor
// and request ID are taken from ctx.
type OperationAuditor interface {
	LogOperation(ctx context.Context, typ AuditEventType, resource, action string, opErr error, detail map[string]string) error
}
