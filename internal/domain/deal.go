package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DealStatus string

const (
	DealStatusNegotiating DealStatus = "negotiating"
	DealStatusAgreed      DealStatus = "agreed"
	DealStatusInTransit   DealStatus = "in_transit"
	DealStatusDelivered   DealStatus = "delivered"
	DealStatusCancelled   DealStatus = "cancelled"
)

func (s DealStatus) IsValid() bool {
	switch s {
	case DealStatusNegotiating, DealStatusAgreed, DealStatusInTransit,
		DealStatusDelivered, DealStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo enforces the deal lifecycle. Cancellation is allowed from
// any non-terminal state; delivered and cancelled are terminal.
func (s DealStatus) CanTransitionTo(next DealStatus) bool {
	if s == DealStatusDelivered || s == DealStatusCancelled {
		return false
	}
	if next == DealStatusCancelled {
		return true
	}
	switch s {
	case DealStatusNegotiating:
		return next == DealStatusAgreed
	case DealStatusAgreed:
		return next == DealStatusInTransit
	case DealStatusInTransit:
		return next == DealStatusDelivered
	}
	return false
}

// DealGroup is a three-party deal between a seller (producer), a buyer
// (retailer) and a driver. DealNumber is the short human-readable id.
type DealGroup struct {
	ID               uuid.UUID
	DealNumber       int
	Title            string
	Status           DealStatus
	SellerID         *uuid.UUID
	BuyerID          *uuid.UUID
	DriverID         *uuid.UUID
	AgreedPricePerKg *decimal.Decimal
	AgreedQuantityKg *decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
