package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrDealNotFound        = errors.New("deal not found")
	ErrEscrowNotFound      = errors.New("escrow not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAlreadyReleased     = errors.New("funds already released")
	ErrEscrowNotHeld       = errors.New("escrow not in held state")
	ErrEscrowExists        = errors.New("escrow already exists for this deal")
	ErrNoPINConfigured     = errors.New("no escrow pin configured")
	ErrInvalidPIN          = errors.New("invalid pin")
	ErrIdempotencyConflict = errors.New("idempotency key already used in a different state")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInvalidTransition   = errors.New("invalid status transition")
)
