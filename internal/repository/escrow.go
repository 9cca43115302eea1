package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daladan/settlement/internal/domain"
)

const escrowColumns = `id, deal_group_id, amount, currency, status, payer_id, payee_id,
	released_by_id, idempotency_key, released_at, created_at`

// idempotencyKeyConstraint is the unique index backing the idempotency
// guarantee. The application pre-check is only an optimization; this
// constraint is what makes the loser of a same-key race fail.
const idempotencyKeyConstraint = "escrow_transactions_idempotency_key_key"

type EscrowRepository struct {
	db *sql.DB
}

func NewEscrowRepository(db *sql.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) GetByDealID(ctx context.Context, dealID uuid.UUID) (*domain.EscrowTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE deal_group_id = $1`, dealID,
	)
	e, err := scanEscrow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByDealID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByDealID: %w", err)
	}
	return e, nil
}

func (r *EscrowRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.EscrowTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE idempotency_key = $1`, key,
	)
	e, err := scanEscrow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return e, nil
}

// GetForUpdateByDealID takes the exclusive row lock that serializes
// concurrent release attempts for the same deal.
func (r *EscrowRepository) GetForUpdateByDealID(ctx context.Context, tx *sql.Tx, dealID uuid.UUID) (*domain.EscrowTransaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+escrowColumns+` FROM escrow_transactions WHERE deal_group_id = $1 FOR UPDATE`, dealID,
	)
	e, err := scanEscrow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdateByDealID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdateByDealID: %w", err)
	}
	return e, nil
}

func (r *EscrowRepository) Create(ctx context.Context, escrow *domain.EscrowTransaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO escrow_transactions (
			id, deal_group_id, amount, currency, status, payer_id, payee_id,
			released_by_id, idempotency_key, released_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		escrow.ID, escrow.DealGroupID, escrow.Amount, escrow.Currency, escrow.Status,
		escrow.PayerID, escrow.PayeeID,
		escrow.ReleasedByID, escrow.IdempotencyKey, escrow.ReleasedAt, escrow.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "escrow_transactions_deal_group_id_key") {
			return fmt.Errorf("Create: %w", domain.ErrEscrowExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// MarkReleased transitions the locked escrow row to funds_released. The
// WHERE clause re-checks status so a row that slipped past the in-memory
// check can never be released twice.
func (r *EscrowRepository) MarkReleased(ctx context.Context, tx *sql.Tx, id uuid.UUID, releasedBy uuid.UUID, idempotencyKey *string, releasedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE escrow_transactions
		SET status = $1, released_by_id = $2, idempotency_key = COALESCE($3, idempotency_key),
			released_at = $4
		WHERE id = $5 AND status = $6`,
		domain.EscrowStatusFundsReleased, releasedBy, idempotencyKey,
		releasedAt, id, domain.EscrowStatusHeld,
	)
	if err != nil {
		if isUniqueViolation(err, idempotencyKeyConstraint) {
			return fmt.Errorf("MarkReleased: %w", domain.ErrIdempotencyConflict)
		}
		return fmt.Errorf("MarkReleased: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkReleased: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkReleased: %w", domain.ErrEscrowNotHeld)
	}
	return nil
}

func scanEscrow(s scanner) (*domain.EscrowTransaction, error) {
	var e domain.EscrowTransaction
	var payerID, payeeID, releasedByID uuid.NullUUID
	err := s.Scan(
		&e.ID, &e.DealGroupID, &e.Amount, &e.Currency, &e.Status,
		&payerID, &payeeID, &releasedByID,
		&e.IdempotencyKey, &e.ReleasedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payerID.Valid {
		e.PayerID = &payerID.UUID
	}
	if payeeID.Valid {
		e.PayeeID = &payeeID.UUID
	}
	if releasedByID.Valid {
		e.ReleasedByID = &releasedByID.UUID
	}
	return &e, nil
}
