package audit

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daladan/settlement/internal/domain"
)

// Snapshot is the serialized view of a row used for diffing and for the
// stored audit record. Serialization rules: ids -> string, money -> fixed
// two-decimal string, timestamps -> RFC 3339 UTC, enums -> symbolic string,
// absent values -> nil.
type Snapshot map[string]*string

func str(s string) *string { return &s }

func idValue(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	return str(id.String())
}

func moneyValue(d decimal.Decimal) *string {
	return str(d.StringFixed(2))
}

func optMoneyValue(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	return moneyValue(*d)
}

func timeValue(t time.Time) *string {
	return str(t.UTC().Format(time.RFC3339))
}

func optTimeValue(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return timeValue(*t)
}

// EscrowSnapshot serializes every persisted attribute of an escrow row.
// The idempotency key is a caller token, not a secret; the payer's PIN hash
// never appears here because escrows do not carry it.
func EscrowSnapshot(e *domain.EscrowTransaction) Snapshot {
	var key *string
	if e.IdempotencyKey != nil {
		key = str(*e.IdempotencyKey)
	}
	return Snapshot{
		"id":              str(e.ID.String()),
		"deal_group_id":   str(e.DealGroupID.String()),
		"amount":          moneyValue(e.Amount),
		"currency":        str(string(e.Currency)),
		"status":          str(string(e.Status)),
		"payer_id":        idValue(e.PayerID),
		"payee_id":        idValue(e.PayeeID),
		"released_by_id":  idValue(e.ReleasedByID),
		"idempotency_key": key,
		"released_at":     optTimeValue(e.ReleasedAt),
		"created_at":      timeValue(e.CreatedAt),
	}
}

func DealSnapshot(d *domain.DealGroup) Snapshot {
	return Snapshot{
		"id":                  str(d.ID.String()),
		"deal_number":         str(strconv.Itoa(d.DealNumber)),
		"title":               str(d.Title),
		"status":              str(string(d.Status)),
		"seller_id":           idValue(d.SellerID),
		"buyer_id":            idValue(d.BuyerID),
		"driver_id":           idValue(d.DriverID),
		"agreed_price_per_kg": optMoneyValue(d.AgreedPricePerKg),
		"agreed_quantity_kg":  optMoneyValue(d.AgreedQuantityKg),
		"created_at":          timeValue(d.CreatedAt),
		"updated_at":          timeValue(d.UpdatedAt),
	}
}
