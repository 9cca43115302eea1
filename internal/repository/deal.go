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

const dealColumns = `id, deal_number, title, status, seller_id, buyer_id, driver_id,
	agreed_price_per_kg, agreed_quantity_kg, created_at, updated_at`

type DealRepository struct {
	db *sql.DB
}

func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{db: db}
}

func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DealGroup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deal_groups WHERE id = $1`, id,
	)
	d, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return d, nil
}

func (r *DealRepository) Create(ctx context.Context, deal *domain.DealGroup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deal_groups (
			id, deal_number, title, status, seller_id, buyer_id, driver_id,
			agreed_price_per_kg, agreed_quantity_kg, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		deal.ID, deal.DealNumber, deal.Title, deal.Status,
		deal.SellerID, deal.BuyerID, deal.DriverID,
		deal.AgreedPricePerKg, deal.AgreedQuantityKg,
		deal.CreatedAt, deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *DealRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.DealGroup, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+dealColumns+` FROM deal_groups WHERE id = $1 FOR UPDATE`, id,
	)
	d, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return d, nil
}

func (r *DealRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.DealStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE deal_groups SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanDeal(s scanner) (*domain.DealGroup, error) {
	var d domain.DealGroup
	var sellerID, buyerID, driverID uuid.NullUUID
	var price, quantity decimal.NullDecimal
	err := s.Scan(
		&d.ID, &d.DealNumber, &d.Title, &d.Status,
		&sellerID, &buyerID, &driverID,
		&price, &quantity,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sellerID.Valid {
		d.SellerID = &sellerID.UUID
	}
	if buyerID.Valid {
		d.BuyerID = &buyerID.UUID
	}
	if driverID.Valid {
		d.DriverID = &driverID.UUID
	}
	if price.Valid {
		d.AgreedPricePerKg = &price.Decimal
	}
	if quantity.Valid {
		d.AgreedQuantityKg = &quantity.Decimal
	}
	return &d, nil
}
