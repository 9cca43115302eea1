package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/domain"
)

const userColumns = `id, full_name, email, role, region, balance, escrow_pin_hash,
	created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT full_name FROM users WHERE id = $1`, id,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("GetName: %w", domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("GetName: %w", err)
	}
	return name, nil
}

func (r *UserRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.User, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return u, nil
}

// CreditBalance adds a non-negative amount to the user's stored balance.
// The caller must already hold the row lock (GetForUpdate) inside tx.
func (r *UserRepository) CreditBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("CreditBalance: %w", domain.ErrInvalidAmount)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + $1, updated_at = now() WHERE id = $2`,
		amount, id,
	)
	if err != nil {
		return fmt.Errorf("CreditBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("CreditBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("CreditBalance: %w", domain.ErrNotFound)
	}
	return nil
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	err := s.Scan(
		&u.ID, &u.FullName, &u.Email, &u.Role, &u.Region,
		&u.Balance, &u.EscrowPINHash,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
