package domain

import (
	"time"

	"github.com/google/uuid"
)

type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusLoading   ShipmentStatus = "loading"
	ShipmentStatusInTransit ShipmentStatus = "in_transit"
	ShipmentStatusDelivered ShipmentStatus = "delivered"
)

type Shipment struct {
	ID              uuid.UUID
	DealGroupID     *uuid.UUID
	DriverID        *uuid.UUID
	OriginName      string
	DestinationName string
	Status          ShipmentStatus
	DeliveredAt     *time.Time
	CreatedAt       time.Time
}
