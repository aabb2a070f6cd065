package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type AuditLogSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewAuditLogSQLiteStore(rdb, rwdb *sql.DB) *AuditLogSQLiteStore {
	return &AuditLogSQLiteStore{rdb, rwdb}
}

func (store *AuditLogSQLiteStore) CreateAuditLog(
	ctx context.Context,
	level AuditLevel,
	message string,
	userID *int64,
) error {
	query := `insert into audit_logs (level, message, audit_user_id)
	values ($1, $2, $3)`
	_, err := store.rwdb.ExecContext(ctx, query, level, message, userID)
	return err
}

func (store *AuditLogSQLiteStore) ListAuditLogsPaginated(
	ctx context.Context,
	limit, offset int64,
) ([]AuditLog, error) {
	query := `select * from audit_logs
	order by created_on desc, audit_log_id desc
	limit $1 offset $2`
	logs := make([]AuditLog, 0)
	err := sqlscan.Select(ctx, store.rdb, &logs, query, limit, offset)
	return logs, err
}

func (store *AuditLogSQLiteStore) CountAuditLogs(ctx context.Context) (int64, error) {
	var count int64
	query := "select count(*) from audit_logs"
	err := sqlscan.Get(ctx, store.rdb, &count, query)
	return count, err
}

// DeleteAuditLog removes one entry; sql.ErrNoRows when the id is
// unknown so the handler can distinguish a stale id.
func (store *AuditLogSQLiteStore) DeleteAuditLog(ctx context.Context, auditLogID int64) error {
	query := "delete from audit_logs where audit_log_id = $1"
	res, err := store.rwdb.ExecContext(ctx, query, auditLogID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (store *AuditLogSQLiteStore) DeleteAllAuditLogs(ctx context.Context) error {
	query := "delete from audit_logs"
	_, err := store.rwdb.ExecContext(ctx, query)
	return err
}
