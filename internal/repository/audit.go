package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/daladan/settlement/internal/domain"
)

const auditColumns = `id, action, table_name, record_id, changes, snapshot, created_at`

// AuditLogRepository is append-only: entries are inserted once and there is
// deliberately no update or delete path.
type AuditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Insert(ctx context.Context, entry *domain.AuditLogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("Insert: marshal changes: %w", err)
	}
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("Insert: marshal snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, table_name, record_id, changes, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Action, entry.TableName, entry.RecordID,
		changes, snapshot, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) ListByRecord(ctx context.Context, tableName, recordID string) ([]domain.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs
		WHERE table_name = $1 AND record_id = $2 ORDER BY created_at`,
		tableName, recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByRecord: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		e, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByRecord: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByRecord: rows: %w", err)
	}
	return entries, nil
}

func scanAuditLog(s scanner) (*domain.AuditLogEntry, error) {
	var e domain.AuditLogEntry
	var changes, snapshot []byte
	err := s.Scan(
		&e.ID, &e.Action, &e.TableName, &e.RecordID,
		&changes, &snapshot, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(changes, &e.Changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	if err := json.Unmarshal(snapshot, &e.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &e, nil
}
