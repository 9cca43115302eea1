package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/daladan/settlement/internal/domain"
)

// GetStatus returns the current escrow view for a deal. Read-only.
func (s *Service) GetStatus(ctx context.Context, dealID uuid.UUID) (*StatusView, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetStatus: %w", domain.ErrDealNotFound)
		}
		return nil, fmt.Errorf("GetStatus: %w", err)
	}

	esc, err := s.escrows.GetByDealID(ctx, deal.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetStatus: %w", domain.ErrEscrowNotFound)
		}
		return nil, fmt.Errorf("GetStatus: %w", err)
	}

	view := &StatusView{
		EscrowID:   esc.ID,
		DealNumber: deal.DealNumber,
		Amount:     esc.Amount,
		Currency:   esc.Currency,
		Status:     esc.Status,
		CreatedAt:  esc.CreatedAt,
		ReleasedAt: esc.ReleasedAt,
	}

	if esc.PayerID != nil {
		if name, err := s.users.GetName(ctx, *esc.PayerID); err == nil {
			view.PayerName = &name
		}
	}
	if esc.PayeeID != nil {
		if name, err := s.users.GetName(ctx, *esc.PayeeID); err == nil {
			view.PayeeName = &name
		}
	}

	return view, nil
}
