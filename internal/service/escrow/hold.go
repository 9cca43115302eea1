package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/audit"
	"github.com/daladan/settlement/internal/domain"
	"github.com/daladan/settlement/internal/logging"
)

type HoldRequest struct {
	DealID   uuid.UUID
	Amount   decimal.Decimal
	Currency domain.Currency
	PayerID  uuid.UUID
	PayeeID  uuid.UUID
}

// CreateHold places a new held escrow on a deal. A deal carries at most one
// escrow; a second hold fails with ErrEscrowExists.
func (s *Service) CreateHold(ctx context.Context, req HoldRequest) (*domain.EscrowTransaction, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("CreateHold: %w", domain.ErrInvalidAmount)
	}

	deal, err := s.deals.GetByID(ctx, req.DealID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("CreateHold: %w", domain.ErrDealNotFound)
		}
		return nil, fmt.Errorf("CreateHold: %w", err)
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.CurrencyUSD
	}

	esc := &domain.EscrowTransaction{
		ID:          uuid.New(),
		DealGroupID: deal.ID,
		Amount:      req.Amount,
		Currency:    currency,
		Status:      domain.EscrowStatusHeld,
		PayerID:     &req.PayerID,
		PayeeID:     &req.PayeeID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.escrows.Create(ctx, esc); err != nil {
		return nil, fmt.Errorf("CreateHold: %w", err)
	}

	s.recorder.RecordInsert(escrowTable, esc.ID.String(), audit.EscrowSnapshot(esc))

	logging.FromContext(ctx).Info("escrow hold created",
		"deal_number", deal.DealNumber,
		"escrow_id", esc.ID,
		"amount", esc.Amount,
	)

	return esc, nil
}
