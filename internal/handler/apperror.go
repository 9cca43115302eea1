package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken   = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken   = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbiddenRole  = &AppError{http.StatusForbidden, "FORBIDDEN", "Caller role is not allowed to perform this operation"}
	ErrInvalidRequest = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidation     = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrInternalError  = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrDealNotFound        = &AppError{http.StatusNotFound, "DEAL_NOT_FOUND", "Deal not found"}
	ErrEscrowNotFound      = &AppError{http.StatusNotFound, "ESCROW_NOT_FOUND", "No escrow transaction found for this deal"}
	ErrAccountNotFound     = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrAlreadyReleased     = &AppError{http.StatusConflict, "ALREADY_RELEASED", "Funds have already been released for this deal"}
	ErrEscrowNotHeld       = &AppError{http.StatusBadRequest, "ESCROW_NOT_HELD", "Only held escrows can be released"}
	ErrEscrowExists        = &AppError{http.StatusConflict, "ESCROW_ALREADY_EXISTS", "An escrow already exists for this deal"}
	ErrNoPINConfigured     = &AppError{http.StatusForbidden, "NO_PIN_CONFIGURED", "Payer has no escrow PIN configured"}
	ErrInvalidPIN          = &AppError{http.StatusForbidden, "INVALID_PIN", "Invalid PIN, authorization denied"}
	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used against a non-released escrow"}
	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidTransition   = &AppError{http.StatusBadRequest, "INVALID_TRANSITION", "Requested status transition is not allowed"}
)
