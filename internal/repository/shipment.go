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

const shipmentColumns = `id, deal_group_id, driver_id, origin_name, destination_name,
	status, delivered_at, created_at`

type ShipmentRepository struct {
	db *sql.DB
}

func NewShipmentRepository(db *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func (r *ShipmentRepository) GetByDealID(ctx context.Context, dealID uuid.UUID) (*domain.Shipment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE deal_group_id = $1`, dealID,
	)
	sh, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByDealID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByDealID: %w", err)
	}
	return sh, nil
}

// GetForUpdateByDealID locks the shipment row for the deal. Not every deal
// has a shipment; callers treat ErrNotFound as "nothing to deliver".
func (r *ShipmentRepository) GetForUpdateByDealID(ctx context.Context, tx *sql.Tx, dealID uuid.UUID) (*domain.Shipment, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE deal_group_id = $1 FOR UPDATE`, dealID,
	)
	sh, err := scanShipment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdateByDealID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdateByDealID: %w", err)
	}
	return sh, nil
}

func (r *ShipmentRepository) MarkDelivered(ctx context.Context, tx *sql.Tx, id uuid.UUID, deliveredAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE shipments SET status = $1, delivered_at = $2 WHERE id = $3`,
		domain.ShipmentStatusDelivered, deliveredAt, id,
	)
	if err != nil {
		return fmt.Errorf("MarkDelivered: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkDelivered: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkDelivered: %w", domain.ErrNotFound)
	}
	return nil
}

func scanShipment(s scanner) (*domain.Shipment, error) {
	var sh domain.Shipment
	var dealGroupID, driverID uuid.NullUUID
	err := s.Scan(
		&sh.ID, &dealGroupID, &driverID,
		&sh.OriginName, &sh.DestinationName,
		&sh.Status, &sh.DeliveredAt, &sh.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dealGroupID.Valid {
		sh.DealGroupID = &dealGroupID.UUID
	}
	if driverID.Valid {
		sh.DriverID = &driverID.UUID
	}
	return &sh, nil
}
