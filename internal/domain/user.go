package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleProducer UserRole = "producer"
	RoleDriver   UserRole = "driver"
	RoleRetailer UserRole = "retailer"
	RoleAdmin    UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleProducer, RoleDriver, RoleRetailer, RoleAdmin:
		return true
	}
	return false
}

// User is a platform participant. Balance is the stored wallet balance,
// kept as a fixed-point decimal and never allowed below zero.
// EscrowPINHash is a bcrypt hash; nil means the user cannot authorize a release.
type User struct {
	ID            uuid.UUID
	FullName      string
	Email         string
	Role          UserRole
	Region        *string
	Balance       decimal.Decimal
	EscrowPINHash *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
