package service

import (
	"context"
	"fmt"
	"log"

	"github.com/haatos/simple-cd/internal/store"
)

// AuditService records panel-level events (who started what, how it
// ended) to the audit_logs table. A write failure never fails the
// action being audited; it is logged and dropped. The methods are
// nil-receiver safe so components without an audit trail configured
// skip recording.
type AuditService struct {
	auditStore store.AuditLogStore
}

func NewAuditService(auditStore store.AuditLogStore) *AuditService {
	return &AuditService{auditStore: auditStore}
}

func (s *AuditService) Info(ctx context.Context, userID *int64, format string, args ...any) {
	s.record(ctx, store.LevelInfo, userID, format, args...)
}

func (s *AuditService) Warning(ctx context.Context, userID *int64, format string, args ...any) {
	s.record(ctx, store.LevelWarning, userID, format, args...)
}

func (s *AuditService) Error(ctx context.Context, userID *int64, format string, args ...any) {
	s.record(ctx, store.LevelError, userID, format, args...)
}

func (s *AuditService) record(
	ctx context.Context,
	level store.AuditLevel,
	userID *int64,
	format string,
	args ...any,
) {
	if s == nil {
		return
	}
	message := fmt.Sprintf(format, args...)
	if err := s.auditStore.CreateAuditLog(ctx, level, message, userID); err != nil {
		log.Println("err writing audit log:", err)
	}
}
