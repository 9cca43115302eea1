package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionInsert AuditAction = "INSERT"
	AuditActionUpdate AuditAction = "UPDATE"
)

// FieldChange records one attribute of a row changing value. Values are
// already serialized to strings (ids, decimals, timestamps, enums).
type FieldChange struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// AuditLogEntry is one immutable row of the audit trail. Entries are written
// once, after the observed transaction commits, and never updated or deleted.
// Changes is empty for inserts; Snapshot always carries the full row state.
type AuditLogEntry struct {
	ID        uuid.UUID
	Action    AuditAction
	TableName string
	RecordID  string
	Changes   map[string]FieldChange
	Snapshot  map[string]*string
	CreatedAt time.Time
}
