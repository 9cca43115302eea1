package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/daladan/settlement/internal/audit"
	"github.com/daladan/settlement/internal/domain"
	"github.com/daladan/settlement/internal/logging"
	"github.com/daladan/settlement/internal/pin"
)

type ReleaseRequest struct {
	DealID         uuid.UUID
	PIN            string
	IdempotencyKey *string
	// ReleasedBy is the authenticated caller; when nil the payer is recorded
	// as the releasing party.
	ReleasedBy *uuid.UUID
}

// Release settles the held escrow for a deal: it verifies the payer's PIN,
// flips the escrow to funds_released, credits producer (90%) and driver
// (10%), and marks the shipment delivered, all in one transaction under
// exclusive row locks. Any failure aborts the whole unit.
//
// Lock order is fixed across all settlements: escrow row, payer row, then
// producer/driver rows in UUID order, shipment row last. Two concurrent
// releases for deals sharing an account therefore cannot deadlock.
func (s *Service) Release(ctx context.Context, req ReleaseRequest) (*Settlement, error) {
	log := logging.FromContext(ctx)

	// Pre-check outside the transaction: a key already bound to a released
	// escrow is a safe replay. This is an optimization only; the unique
	// constraint on idempotency_key is what settles a same-key race.
	if req.IdempotencyKey != nil {
		replay, err := s.checkIdempotencyKey(ctx, *req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("Release: %w", err)
		}
		if replay != nil {
			log.Info("idempotent replay of settled escrow",
				"escrow_id", replay.EscrowID,
				"idempotency_key", *req.IdempotencyKey,
			)
			return replay, nil
		}
	}

	deal, err := s.deals.GetByID(ctx, req.DealID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Release: %w", domain.ErrDealNotFound)
		}
		return nil, fmt.Errorf("Release: %w", err)
	}

	settlement, before, after, err := s.executeRelease(ctx, deal, req)
	if err != nil {
		return nil, fmt.Errorf("Release: %w", err)
	}

	// The transaction has committed; the audit write is out-of-band and can
	// no longer affect the caller.
	s.recorder.RecordUpdate(escrowTable, settlement.EscrowID.String(), before, after)

	log.Info("escrow released",
		"deal_number", deal.DealNumber,
		"escrow_id", settlement.EscrowID,
		"amount", settlement.Amount,
		"producer_credit", settlement.ProducerCredit.Amount,
		"driver_credit", settlement.DriverCredit.Amount,
	)

	return settlement, nil
}

func (s *Service) checkIdempotencyKey(ctx context.Context, key string) (*Settlement, error) {
	existing, err := s.escrows.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkIdempotencyKey: %w", err)
	}

	if existing.Status != domain.EscrowStatusFundsReleased {
		return nil, fmt.Errorf("checkIdempotencyKey: escrow %s is %q: %w",
			existing.ID, existing.Status, domain.ErrIdempotencyConflict)
	}

	replay, err := s.buildReplay(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("checkIdempotencyKey: %w", err)
	}
	return replay, nil
}

// buildReplay reconstructs the original settlement result from the released
// escrow row. The split is a pure function of the amount, so the replayed
// amounts are byte-identical to the first execution.
func (s *Service) buildReplay(ctx context.Context, e *domain.EscrowTransaction) (*Settlement, error) {
	deal, err := s.deals.GetByID(ctx, e.DealGroupID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrDealNotFound
		}
		return nil, err
	}
	if deal.SellerID == nil || deal.DriverID == nil {
		return nil, domain.ErrAccountNotFound
	}

	producerName, err := s.users.GetName(ctx, *deal.SellerID)
	if err != nil {
		return nil, err
	}
	driverName, err := s.users.GetName(ctx, *deal.DriverID)
	if err != nil {
		return nil, err
	}

	split := ComputeSplit(e.Amount)
	releasedAt := time.Now().UTC()
	if e.ReleasedAt != nil {
		releasedAt = *e.ReleasedAt
	}

	return &Settlement{
		EscrowID:   e.ID,
		DealNumber: deal.DealNumber,
		DealTitle:  deal.Title,
		Amount:     e.Amount,
		Currency:   e.Currency,
		ProducerCredit: Credit{
			UserID:     *deal.SellerID,
			UserName:   producerName,
			Role:       domain.RoleProducer,
			Amount:     split.Producer,
			Percentage: producerPercentage,
		},
		DriverCredit: Credit{
			UserID:     *deal.DriverID,
			UserName:   driverName,
			Role:       domain.RoleDriver,
			Amount:     split.Driver,
			Percentage: driverPercentage,
		},
		ReleasedAt:     releasedAt,
		IdempotencyKey: e.IdempotencyKey,
		Replayed:       true,
	}, nil
}

func (s *Service) executeRelease(ctx context.Context, deal *domain.DealGroup, req ReleaseRequest) (*Settlement, audit.Snapshot, audit.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: begin tx: %w", err)
	}
	defer tx.Rollback()

	esc, err := s.escrows.GetForUpdateByDealID(ctx, tx, deal.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("executeRelease: %w", domain.ErrEscrowNotFound)
		}
		return nil, nil, nil, fmt.Errorf("executeRelease: %w", err)
	}

	// Re-check under the lock. A concurrent release that won the race has
	// already committed funds_released by the time we get here.
	if esc.Status == domain.EscrowStatusFundsReleased {
		return nil, nil, nil, fmt.Errorf("executeRelease: %w", domain.ErrAlreadyReleased)
	}
	if esc.Status != domain.EscrowStatusHeld {
		return nil, nil, nil, fmt.Errorf("executeRelease: escrow is %q: %w", esc.Status, domain.ErrEscrowNotHeld)
	}

	payer, err := s.verifyPayerPIN(ctx, tx, esc, req.PIN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: %w", err)
	}

	if deal.SellerID == nil || deal.DriverID == nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: deal has no seller or driver: %w", domain.ErrAccountNotFound)
	}

	before := audit.EscrowSnapshot(esc)
	now := time.Now().UTC()

	releasedBy := payer.ID
	if req.ReleasedBy != nil {
		releasedBy = *req.ReleasedBy
	}

	if err := s.escrows.MarkReleased(ctx, tx, esc.ID, releasedBy, req.IdempotencyKey, now); err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: %w", err)
	}

	split := ComputeSplit(esc.Amount)

	locked, err := s.lockUsersInOrder(ctx, tx, *deal.SellerID, *deal.DriverID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: %w", err)
	}
	producer, driver := locked[*deal.SellerID], locked[*deal.DriverID]

	if err := s.users.CreditBalance(ctx, tx, producer.ID, split.Producer); err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: credit producer: %w", err)
	}
	if err := s.users.CreditBalance(ctx, tx, driver.ID, split.Driver); err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: credit driver: %w", err)
	}

	if err := s.deliverShipment(ctx, tx, deal.ID, now); err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, nil, fmt.Errorf("executeRelease: commit: %w", err)
	}

	released := *esc
	released.Status = domain.EscrowStatusFundsReleased
	released.ReleasedByID = &releasedBy
	released.ReleasedAt = &now
	if req.IdempotencyKey != nil {
		released.IdempotencyKey = req.IdempotencyKey
	}
	after := audit.EscrowSnapshot(&released)

	settlement := &Settlement{
		EscrowID:   esc.ID,
		DealNumber: deal.DealNumber,
		DealTitle:  deal.Title,
		Amount:     esc.Amount,
		Currency:   esc.Currency,
		ProducerCredit: Credit{
			UserID:     producer.ID,
			UserName:   producer.FullName,
			Role:       domain.RoleProducer,
			Amount:     split.Producer,
			Percentage: producerPercentage,
		},
		DriverCredit: Credit{
			UserID:     driver.ID,
			UserName:   driver.FullName,
			Role:       domain.RoleDriver,
			Amount:     split.Driver,
			Percentage: driverPercentage,
		},
		ReleasedAt:     now,
		IdempotencyKey: released.IdempotencyKey,
	}
	return settlement, before, after, nil
}

// verifyPayerPIN locks the payer row and checks the supplied PIN against the
// stored bcrypt hash. Failed attempts are logged with the payer id but never
// with the submitted PIN.
func (s *Service) verifyPayerPIN(ctx context.Context, tx *sql.Tx, esc *domain.EscrowTransaction, plainPIN string) (*domain.User, error) {
	if esc.PayerID == nil {
		return nil, fmt.Errorf("verifyPayerPIN: escrow has no payer: %w", domain.ErrAccountNotFound)
	}

	payer, err := s.users.GetForUpdate(ctx, tx, *esc.PayerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("verifyPayerPIN: payer: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("verifyPayerPIN: %w", err)
	}

	if payer.EscrowPINHash == nil {
		return nil, fmt.Errorf("verifyPayerPIN: %w", domain.ErrNoPINConfigured)
	}
	if !pin.Verify(plainPIN, *payer.EscrowPINHash) {
		logging.FromContext(ctx).Warn("invalid pin attempt",
			"escrow_id", esc.ID,
			"payer_id", payer.ID,
		)
		return nil, fmt.Errorf("verifyPayerPIN: %w", domain.ErrInvalidPIN)
	}

	return payer, nil
}

// lockUsersInOrder locks the given user rows sorted by id so that two
// settlements touching the same accounts always acquire locks in the same
// sequence.
func (s *Service) lockUsersInOrder(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.User, error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	result := make(map[uuid.UUID]*domain.User, len(ids))
	for _, id := range sorted {
		if _, ok := result[id]; ok {
			continue
		}
		u, err := s.users.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("lockUsersInOrder: %w", domain.ErrAccountNotFound)
			}
			return nil, fmt.Errorf("lockUsersInOrder: %w", err)
		}
		result[id] = u
	}
	return result, nil
}

func (s *Service) deliverShipment(ctx context.Context, tx *sql.Tx, dealID uuid.UUID, deliveredAt time.Time) error {
	sh, err := s.shipments.GetForUpdateByDealID(ctx, tx, dealID)
	if err != nil {
		// A deal without a shipment is legal; there is just nothing to mark.
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("deliverShipment: %w", err)
	}

	if err := s.shipments.MarkDelivered(ctx, tx, sh.ID, deliveredAt); err != nil {
		return fmt.Errorf("deliverShipment: %w", err)
	}
	return nil
}
