package store

import (
	"context"
	"time"
)

type AuditLevel string

const (
	LevelInfo    AuditLevel = "info"
	LevelWarning AuditLevel = "warning"
	LevelError   AuditLevel = "error"
)

func AuditLevels() []AuditLevel {
	return []AuditLevel{LevelInfo, LevelWarning, LevelError}
}

// AuditLog is one panel-level event (deployment started, build failed,
// and so on), distinct from per-build pipeline output.
type AuditLog struct {
	AuditLogID  int64      `json:"audit_log_id"`
	Level       AuditLevel `json:"level"`
	Message     string     `json:"message"`
	AuditUserID *int64     `json:"audit_user_id"`
	CreatedOn   time.Time  `json:"created_on"`
}

type AuditLogStore interface {
	CreateAuditLog(ctx context.Context, level AuditLevel, message string, userID *int64) error
	ListAuditLogsPaginated(ctx context.Context, limit, offset int64) ([]AuditLog, error)
	CountAuditLogs(ctx context.Context) (int64, error)
	DeleteAuditLog(ctx context.Context, auditLogID int64) error
	DeleteAllAuditLogs(ctx context.Context) error
}
