// Package escrow settles held deal funds: it is the only code path allowed
// to move money between accounts, and it does so inside a single pessimistic
// transaction per deal.
package escrow

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/domain"
)

const (
	escrowTable = "escrow_transactions"

	producerPercentage = 90
	driverPercentage   = 10
)

type Service struct {
	deals     dealRepo
	escrows   escrowRepo
	users     userRepo
	shipments shipmentRepo
	recorder  auditRecorder
	db        *sql.DB
}

func NewService(
	deals dealRepo,
	escrows escrowRepo,
	users userRepo,
	shipments shipmentRepo,
	recorder auditRecorder,
	db *sql.DB,
) *Service {
	return &Service{
		deals:     deals,
		escrows:   escrows,
		users:     users,
		shipments: shipments,
		recorder:  recorder,
		db:        db,
	}
}

// Credit is one leg of the settlement split.
type Credit struct {
	UserID     uuid.UUID
	UserName   string
	Role       domain.UserRole
	Amount     decimal.Decimal
	Percentage int
}

// Settlement is the result of a release. Replayed marks an idempotent replay
// of an earlier settlement; the amounts and timestamps are identical to the
// original execution and no balances moved again.
type Settlement struct {
	EscrowID       uuid.UUID
	DealNumber     int
	DealTitle      string
	Amount         decimal.Decimal
	Currency       domain.Currency
	ProducerCredit Credit
	DriverCredit   Credit
	ReleasedAt     time.Time
	IdempotencyKey *string
	Replayed       bool
}

// StatusView is the read-only escrow view for a deal.
type StatusView struct {
	EscrowID   uuid.UUID
	DealNumber int
	Amount     decimal.Decimal
	Currency   domain.Currency
	Status     domain.EscrowStatus
	PayerName  *string
	PayeeName  *string
	CreatedAt  time.Time
	ReleasedAt *time.Time
}
