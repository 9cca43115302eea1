package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daladan/settlement/internal/domain"
)

func TestDiff(t *testing.T) {
	t.Run("identical snapshots produce no changes", func(t *testing.T) {
		snap := Snapshot{"status": str("held"), "amount": str("100.00"), "released_at": nil}
		assert.Empty(t, Diff(snap, snap))
	})

	t.Run("changed and nil transitions", func(t *testing.T) {
		before := Snapshot{
			"status":          str("held"),
			"amount":          str("4380.00"),
			"released_at":     nil,
			"idempotency_key": nil,
		}
		after := Snapshot{
			"status":          str("funds_released"),
			"amount":          str("4380.00"),
			"released_at":     str("2026-08-31T10:00:00Z"),
			"idempotency_key": str("abc"),
		}

		changes := Diff(before, after)
		require.Len(t, changes, 3)

		assert.Equal(t, "held", *changes["status"].Old)
		assert.Equal(t, "funds_released", *changes["status"].New)

		assert.Nil(t, changes["released_at"].Old)
		assert.Equal(t, "2026-08-31T10:00:00Z", *changes["released_at"].New)

		assert.Nil(t, changes["idempotency_key"].Old)
		assert.Equal(t, "abc", *changes["idempotency_key"].New)

		_, touched := changes["amount"]
		assert.False(t, touched)
	})

	t.Run("field dropped from after snapshot", func(t *testing.T) {
		changes := Diff(Snapshot{"note": str("x")}, Snapshot{})
		require.Len(t, changes, 1)
		assert.Equal(t, "x", *changes["note"].Old)
		assert.Nil(t, changes["note"].New)
	})

	t.Run("field added to after snapshot", func(t *testing.T) {
		changes := Diff(Snapshot{}, Snapshot{"note": str("y")})
		require.Len(t, changes, 1)
		assert.Nil(t, changes["note"].Old)
		assert.Equal(t, "y", *changes["note"].New)
	})
}

func TestEscrowSnapshot(t *testing.T) {
	payer := uuid.New()
	released := time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)
	key := "key-1"

	e := &domain.EscrowTransaction{
		ID:             uuid.New(),
		DealGroupID:    uuid.New(),
		Amount:         decimal.RequireFromString("4380.5"),
		Currency:       domain.CurrencyUSD,
		Status:         domain.EscrowStatusFundsReleased,
		PayerID:        &payer,
		ReleasedByID:   &payer,
		IdempotencyKey: &key,
		ReleasedAt:     &released,
		CreatedAt:      time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}

	snap := EscrowSnapshot(e)

	assert.Equal(t, "4380.50", *snap["amount"])
	assert.Equal(t, "USD", *snap["currency"])
	assert.Equal(t, "funds_released", *snap["status"])
	assert.Equal(t, payer.String(), *snap["payer_id"])
	assert.Nil(t, snap["payee_id"])
	assert.Equal(t, "2026-08-31T12:30:00Z", *snap["released_at"])
	assert.Equal(t, "2026-08-30T09:00:00Z", *snap["created_at"])
	assert.Equal(t, "key-1", *snap["idempotency_key"])
}

func TestDealSnapshot(t *testing.T) {
	price := decimal.RequireFromString("3.75")
	d := &domain.DealGroup{
		ID:               uuid.New(),
		DealNumber:       901,
		Title:            "Golden Apples",
		Status:           domain.DealStatusAgreed,
		AgreedPricePerKg: &price,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	snap := DealSnapshot(d)

	assert.Equal(t, "901", *snap["deal_number"])
	assert.Equal(t, "Golden Apples", *snap["title"])
	assert.Equal(t, "agreed", *snap["status"])
	assert.Equal(t, "3.75", *snap["agreed_price_per_kg"])
	assert.Nil(t, snap["agreed_quantity_kg"])
	assert.Nil(t, snap["seller_id"])
}
