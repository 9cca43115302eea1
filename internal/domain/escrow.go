package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EscrowStatus string

const (
	EscrowStatusHeld          EscrowStatus = "held"
	EscrowStatusFundsReleased EscrowStatus = "funds_released"
	EscrowStatusRefunded      EscrowStatus = "refunded"
	EscrowStatusDisputed      EscrowStatus = "disputed"
)

func (s EscrowStatus) IsValid() bool {
	switch s {
	case EscrowStatusHeld, EscrowStatusFundsReleased, EscrowStatusRefunded, EscrowStatusDisputed:
		return true
	}
	return false
}

type Currency string

const CurrencyUSD Currency = "USD"

// EscrowTransaction holds the buyer's funds for a deal until release.
// Status only ever moves held -> funds_released (or held -> refunded/disputed);
// once funds_released the row is immutable to business logic.
// IdempotencyKey carries a DB-level unique constraint: it is the authoritative
// guard against two first-time requests racing with the same key.
type EscrowTransaction struct {
	ID             uuid.UUID
	DealGroupID    uuid.UUID
	Amount         decimal.Decimal
	Currency       Currency
	Status         EscrowStatus
	PayerID        *uuid.UUID
	PayeeID        *uuid.UUID
	ReleasedByID   *uuid.UUID
	IdempotencyKey *string
	ReleasedAt     *time.Time
	CreatedAt      time.Time
}
