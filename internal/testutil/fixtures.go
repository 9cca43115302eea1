package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/domain"
	"github.com/daladan/settlement/internal/pin"
)

func SeedUser(t *testing.T, db *sql.DB, name, email string, role domain.UserRole, balance decimal.Decimal) *domain.User {
	t.Helper()

	u := &domain.User{
		ID:        uuid.New(),
		FullName:  name,
		Email:     email,
		Role:      role,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO users (id, full_name, email, role, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.FullName, u.Email, u.Role, u.Balance, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

// SeedPayer creates a retailer with an escrow PIN already configured.
func SeedPayer(t *testing.T, db *sql.DB, name, email, plainPIN string) *domain.User {
	t.Helper()

	u := SeedUser(t, db, name, email, domain.RoleRetailer, decimal.Zero)

	hash, err := pin.Hash(plainPIN)
	if err != nil {
		t.Fatalf("hash pin: %v", err)
	}
	if _, err := db.Exec(`UPDATE users SET escrow_pin_hash = $1 WHERE id = $2`, hash, u.ID); err != nil {
		t.Fatalf("set pin hash for %s: %v", email, err)
	}
	u.EscrowPINHash = &hash
	return u
}

func SeedDeal(t *testing.T, db *sql.DB, dealNumber int, title string, sellerID, buyerID, driverID uuid.UUID) *domain.DealGroup {
	t.Helper()

	d := &domain.DealGroup{
		ID:         uuid.New(),
		DealNumber: dealNumber,
		Title:      title,
		Status:     domain.DealStatusAgreed,
		SellerID:   &sellerID,
		BuyerID:    &buyerID,
		DriverID:   &driverID,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO deal_groups (id, deal_number, title, status, seller_id, buyer_id, driver_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.DealNumber, d.Title, d.Status, d.SellerID, d.BuyerID, d.DriverID, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed deal #%d: %v", dealNumber, err)
	}
	return d
}

func SeedEscrow(t *testing.T, db *sql.DB, dealID uuid.UUID, amount decimal.Decimal, payerID, payeeID uuid.UUID) *domain.EscrowTransaction {
	t.Helper()

	e := &domain.EscrowTransaction{
		ID:          uuid.New(),
		DealGroupID: dealID,
		Amount:      amount,
		Currency:    domain.CurrencyUSD,
		Status:      domain.EscrowStatusHeld,
		PayerID:     &payerID,
		PayeeID:     &payeeID,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO escrow_transactions (id, deal_group_id, amount, currency, status, payer_id, payee_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.DealGroupID, e.Amount, e.Currency, e.Status, e.PayerID, e.PayeeID, e.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed escrow for deal %s: %v", dealID, err)
	}
	return e
}

func SeedEscrowWithStatus(t *testing.T, db *sql.DB, dealID uuid.UUID, amount decimal.Decimal, payerID, payeeID uuid.UUID, status domain.EscrowStatus, idempotencyKey *string) *domain.EscrowTransaction {
	t.Helper()

	e := SeedEscrow(t, db, dealID, amount, payerID, payeeID)
	_, err := db.Exec(
		`UPDATE escrow_transactions SET status = $1, idempotency_key = $2 WHERE id = $3`,
		status, idempotencyKey, e.ID,
	)
	if err != nil {
		t.Fatalf("set escrow status: %v", err)
	}
	e.Status = status
	e.IdempotencyKey = idempotencyKey
	return e
}

func SeedShipment(t *testing.T, db *sql.DB, dealID, driverID uuid.UUID, origin, destination string) *domain.Shipment {
	t.Helper()

	sh := &domain.Shipment{
		ID:              uuid.New(),
		DealGroupID:     &dealID,
		DriverID:        &driverID,
		OriginName:      origin,
		DestinationName: destination,
		Status:          domain.ShipmentStatusInTransit,
		CreatedAt:       time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO shipments (id, deal_group_id, driver_id, origin_name, destination_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sh.ID, sh.DealGroupID, sh.DriverID, sh.OriginName, sh.DestinationName, sh.Status, sh.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed shipment for deal %s: %v", dealID, err)
	}
	return sh
}

func GetBalance(t *testing.T, db *sql.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	if err := db.QueryRow(`SELECT balance FROM users WHERE id = $1`, userID).Scan(&balance); err != nil {
		t.Fatalf("get balance %s: %v", userID, err)
	}
	return balance
}

func GetEscrowStatus(t *testing.T, db *sql.DB, escrowID uuid.UUID) domain.EscrowStatus {
	t.Helper()

	var status domain.EscrowStatus
	if err := db.QueryRow(`SELECT status FROM escrow_transactions WHERE id = $1`, escrowID).Scan(&status); err != nil {
		t.Fatalf("get escrow status %s: %v", escrowID, err)
	}
	return status
}

func GetShipmentStatus(t *testing.T, db *sql.DB, shipmentID uuid.UUID) domain.ShipmentStatus {
	t.Helper()

	var status domain.ShipmentStatus
	if err := db.QueryRow(`SELECT status FROM shipments WHERE id = $1`, shipmentID).Scan(&status); err != nil {
		t.Fatalf("get shipment status %s: %v", shipmentID, err)
	}
	return status
}

func CountAuditEntries(t *testing.T, db *sql.DB, tableName, recordID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM audit_logs WHERE table_name = $1 AND record_id = $2`,
		tableName, recordID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count audit entries for %s/%s: %v", tableName, recordID, err)
	}
	return count
}
