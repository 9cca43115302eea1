package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/auth"
	"github.com/daladan/settlement/internal/domain"
	"github.com/daladan/settlement/internal/logging"
	"github.com/daladan/settlement/internal/service/escrow"
)

type escrowService interface {
	Release(ctx context.Context, req escrow.ReleaseRequest) (*escrow.Settlement, error)
	GetStatus(ctx context.Context, dealID uuid.UUID) (*escrow.StatusView, error)
	CreateHold(ctx context.Context, req escrow.HoldRequest) (*domain.EscrowTransaction, error)
}

type EscrowHandler struct {
	escrows escrowService
}

func NewEscrowHandler(escrows escrowService) *EscrowHandler {
	return &EscrowHandler{escrows: escrows}
}

type releaseRequest struct {
	DealID         string  `json:"deal_id"`
	PIN            string  `json:"pin"`
	IdempotencyKey *string `json:"idempotency_key"`
}

func (r releaseRequest) Validate() []FieldError {
	var errs []FieldError

	if r.DealID == "" {
		errs = append(errs, FieldError{Field: "deal_id", Message: "required"})
	} else if _, err := uuid.Parse(r.DealID); err != nil {
		errs = append(errs, FieldError{Field: "deal_id", Message: "must be a valid UUID"})
	}

	if !validPIN(r.PIN) {
		errs = append(errs, FieldError{Field: "pin", Message: "must be a 4-8 digit numeric string"})
	}

	if r.IdempotencyKey != nil && (len(*r.IdempotencyKey) == 0 || len(*r.IdempotencyKey) > 64) {
		errs = append(errs, FieldError{Field: "idempotency_key", Message: "must be 1-64 characters"})
	}

	return errs
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

type creditDTO struct {
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	Role       string `json:"role"`
	Amount     string `json:"amount"`
	Percentage int    `json:"percentage"`
}

type releaseResponse struct {
	Status         string    `json:"status"`
	EscrowID       string    `json:"escrow_id"`
	DealNumber     int       `json:"deal_number"`
	DealTitle      string    `json:"deal_title"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	ProducerCredit creditDTO `json:"producer_credit"`
	DriverCredit   creditDTO `json:"driver_credit"`
	ReleasedAt     time.Time `json:"released_at"`
	IdempotencyKey *string   `json:"idempotency_key"`
	Message        string    `json:"message"`
}

func toCreditDTO(c escrow.Credit) creditDTO {
	return creditDTO{
		UserID:     c.UserID.String(),
		UserName:   c.UserName,
		Role:       string(c.Role),
		Amount:     c.Amount.StringFixed(2),
		Percentage: c.Percentage,
	}
}

func toReleaseResponse(s *escrow.Settlement) releaseResponse {
	message := fmt.Sprintf("Funds released for Deal #%d (%s). $%s credited to %s, $%s credited to %s.",
		s.DealNumber, s.DealTitle,
		s.ProducerCredit.Amount.StringFixed(2), s.ProducerCredit.UserName,
		s.DriverCredit.Amount.StringFixed(2), s.DriverCredit.UserName,
	)
	if s.Replayed {
		message = "Funds were already released for this idempotency key."
	}

	return releaseResponse{
		Status:         string(domain.EscrowStatusFundsReleased),
		EscrowID:       s.EscrowID.String(),
		DealNumber:     s.DealNumber,
		DealTitle:      s.DealTitle,
		Amount:         s.Amount.StringFixed(2),
		Currency:       string(s.Currency),
		ProducerCredit: toCreditDTO(s.ProducerCredit),
		DriverCredit:   toCreditDTO(s.DriverCredit),
		ReleasedAt:     s.ReleasedAt,
		IdempotencyKey: s.IdempotencyKey,
		Message:        message,
	}
}

func (h *EscrowHandler) Release(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	dealID, _ := uuid.Parse(req.DealID)

	var releasedBy *uuid.UUID
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		releasedBy = &claims.UserID
	}

	settlement, err := h.escrows.Release(r.Context(), escrow.ReleaseRequest{
		DealID:         dealID,
		PIN:            req.PIN,
		IdempotencyKey: req.IdempotencyKey,
		ReleasedBy:     releasedBy,
	})
	if err != nil {
		log.Warn("escrow release failed", "deal_id", dealID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toReleaseResponse(settlement))
}

type statusResponse struct {
	EscrowID   string     `json:"escrow_id"`
	DealNumber int        `json:"deal_number"`
	Amount     string     `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	Payer      *string    `json:"payer"`
	Payee      *string    `json:"payee"`
	CreatedAt  time.Time  `json:"created_at"`
	ReleasedAt *time.Time `json:"released_at"`
}

func (h *EscrowHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	dealID, err := uuid.Parse(r.PathValue("deal_id"))
	if err != nil {
		RespondAppError(w, ErrDealNotFound, nil)
		return
	}

	view, err := h.escrows.GetStatus(r.Context(), dealID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("escrow status lookup failed", "deal_id", dealID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, statusResponse{
		EscrowID:   view.EscrowID.String(),
		DealNumber: view.DealNumber,
		Amount:     view.Amount.StringFixed(2),
		Currency:   string(view.Currency),
		Status:     string(view.Status),
		Payer:      view.PayerName,
		Payee:      view.PayeeName,
		CreatedAt:  view.CreatedAt,
		ReleasedAt: view.ReleasedAt,
	})
}

type holdRequest struct {
	DealID   string `json:"deal_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	PayerID  string `json:"payer_id"`
	PayeeID  string `json:"payee_id"`
}

func (r holdRequest) Validate() []FieldError {
	var errs []FieldError

	if _, err := uuid.Parse(r.DealID); err != nil {
		errs = append(errs, FieldError{Field: "deal_id", Message: "must be a valid UUID"})
	}
	if amt, err := decimal.NewFromString(r.Amount); err != nil || !amt.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be a positive decimal"})
	}
	if _, err := uuid.Parse(r.PayerID); err != nil {
		errs = append(errs, FieldError{Field: "payer_id", Message: "must be a valid UUID"})
	}
	if _, err := uuid.Parse(r.PayeeID); err != nil {
		errs = append(errs, FieldError{Field: "payee_id", Message: "must be a valid UUID"})
	}

	return errs
}

type holdResponse struct {
	EscrowID  string    `json:"escrow_id"`
	DealID    string    `json:"deal_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *EscrowHandler) CreateHold(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	dealID, _ := uuid.Parse(req.DealID)
	payerID, _ := uuid.Parse(req.PayerID)
	payeeID, _ := uuid.Parse(req.PayeeID)
	amount, _ := decimal.NewFromString(req.Amount)

	esc, err := h.escrows.CreateHold(r.Context(), escrow.HoldRequest{
		DealID:   dealID,
		Amount:   amount,
		Currency: domain.Currency(req.Currency),
		PayerID:  payerID,
		PayeeID:  payeeID,
	})
	if err != nil {
		log.Warn("escrow hold creation failed", "deal_id", dealID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, holdResponse{
		EscrowID:  esc.ID.String(),
		DealID:    esc.DealGroupID.String(),
		Amount:    esc.Amount.StringFixed(2),
		Currency:  string(esc.Currency),
		Status:    string(esc.Status),
		CreatedAt: esc.CreatedAt,
	})
}
