package store

import (
	"context"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

// AppendAudit writes one audit entry. Entries are never updated or deleted.
func AppendAudit(ctx context.Context, q Querier, e model.AuditEntry) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO audit_log (actor_id, action, target_type, target_id, before_status, after_status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ActorID, e.Action, e.TargetType, e.TargetID, e.BeforeStatus, e.AfterStatus, e.Reason, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ListAudit returns audit entries matching the filter, newest first.
func ListAudit(ctx context.Context, q Querier, f model.AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, actor_id, action, target_type, target_id, before_status, after_status, reason, created_at
	          FROM audit_log WHERE 1=1`
	var args []any

	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if f.TargetType != "" {
		query += ` AND target_type = ?`
		args = append(args, f.TargetType)
	}
	if f.TargetID > 0 {
		query += ` AND target_id = ?`
		args = append(args, f.TargetID)
	}

	query += ` ORDER BY id DESC`
	query, args = paginate(query, args, f.Limit, f.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TargetType, &e.TargetID,
			&e.BeforeStatus, &e.AfterStatus, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
