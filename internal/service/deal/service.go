// Package deal maintains deal-group lifecycle state. Settlement itself lives
// in the escrow package; deal status moves here use their own short
// transaction and feed the same audit trail.
package deal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/audit"
	"github.com/daladan/settlement/internal/domain"
	"github.com/daladan/settlement/internal/logging"
)

const dealTable = "deal_groups"

type dealRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DealGroup, error)
	Create(ctx context.Context, deal *domain.DealGroup) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.DealGroup, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.DealStatus) error
}

type auditRecorder interface {
	RecordInsert(tableName, recordID string, snapshot audit.Snapshot)
	RecordUpdate(tableName, recordID string, before, after audit.Snapshot)
}

type Service struct {
	deals    dealRepo
	recorder auditRecorder
	db       *sql.DB
}

func NewService(deals dealRepo, recorder auditRecorder, db *sql.DB) *Service {
	return &Service{deals: deals, recorder: recorder, db: db}
}

type CreateRequest struct {
	DealNumber       int
	Title            string
	SellerID         *uuid.UUID
	BuyerID          *uuid.UUID
	DriverID         *uuid.UUID
	AgreedPricePerKg *decimal.Decimal
	AgreedQuantityKg *decimal.Decimal
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.DealGroup, error) {
	now := time.Now().UTC()
	d := &domain.DealGroup{
		ID:               uuid.New(),
		DealNumber:       req.DealNumber,
		Title:            req.Title,
		Status:           domain.DealStatusNegotiating,
		SellerID:         req.SellerID,
		BuyerID:          req.BuyerID,
		DriverID:         req.DriverID,
		AgreedPricePerKg: req.AgreedPricePerKg,
		AgreedQuantityKg: req.AgreedQuantityKg,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.deals.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	s.recorder.RecordInsert(dealTable, d.ID.String(), audit.DealSnapshot(d))

	logging.FromContext(ctx).Info("deal created",
		"deal_id", d.ID,
		"deal_number", d.DealNumber,
	)
	return d, nil
}

// UpdateStatus moves a deal along its lifecycle under a row lock, rejecting
// transitions the lifecycle does not allow.
func (s *Service) UpdateStatus(ctx context.Context, dealID uuid.UUID, next domain.DealStatus) (*domain.DealGroup, error) {
	if !next.IsValid() {
		return nil, fmt.Errorf("UpdateStatus: %q: %w", next, domain.ErrInvalidTransition)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: begin tx: %w", err)
	}
	defer tx.Rollback()

	d, err := s.deals.GetForUpdate(ctx, tx, dealID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrDealNotFound)
		}
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}

	if !d.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("UpdateStatus: %s -> %s: %w", d.Status, next, domain.ErrInvalidTransition)
	}

	before := audit.DealSnapshot(d)

	if err := s.deals.UpdateStatus(ctx, tx, d.ID, next); err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("UpdateStatus: commit: %w", err)
	}

	updated := *d
	updated.Status = next
	updated.UpdatedAt = time.Now().UTC()
	s.recorder.RecordUpdate(dealTable, d.ID.String(), before, audit.DealSnapshot(&updated))

	logging.FromContext(ctx).Info("deal status updated",
		"deal_id", d.ID,
		"deal_number", d.DealNumber,
		"from", d.Status,
		"to", next,
	)
	return &updated, nil
}
