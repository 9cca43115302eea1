package escrow

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/audit"
	"github.com/daladan/settlement/internal/domain"
)

type dealRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DealGroup, error)
}

type escrowRepo interface {
	GetByDealID(ctx context.Context, dealID uuid.UUID) (*domain.EscrowTransaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.EscrowTransaction, error)
	GetForUpdateByDealID(ctx context.Context, tx *sql.Tx, dealID uuid.UUID) (*domain.EscrowTransaction, error)
	Create(ctx context.Context, escrow *domain.EscrowTransaction) error
	MarkReleased(ctx context.Context, tx *sql.Tx, id uuid.UUID, releasedBy uuid.UUID, idempotencyKey *string, releasedAt time.Time) error
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetName(ctx context.Context, id uuid.UUID) (string, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.User, error)
	CreditBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount decimal.Decimal) error
}

type shipmentRepo interface {
	GetForUpdateByDealID(ctx context.Context, tx *sql.Tx, dealID uuid.UUID) (*domain.Shipment, error)
	MarkDelivered(ctx context.Context, tx *sql.Tx, id uuid.UUID, deliveredAt time.Time) error
}

type auditRecorder interface {
	RecordInsert(tableName, recordID string, snapshot audit.Snapshot)
	RecordUpdate(tableName, recordID string, before, after audit.Snapshot)
}
