package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daladan/settlement/internal/domain"
	"github.com/daladan/settlement/internal/repository"
	"github.com/daladan/settlement/internal/testutil"
)

func TestMarkReleased_KeyConstraintIsAuthoritative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEscrowRepository(db)
	ctx := context.Background()

	seller := testutil.SeedUser(t, db, "Seller", "s@test.com", domain.RoleProducer, decimal.Zero)
	buyer := testutil.SeedUser(t, db, "Buyer", "b@test.com", domain.RoleRetailer, decimal.Zero)
	driver := testutil.SeedUser(t, db, "Driver", "d@test.com", domain.RoleDriver, decimal.Zero)

	key := "shared-key"

	// First deal already carries the key on a held escrow.
	dealA := testutil.SeedDeal(t, db, 801, "Deal A", seller.ID, buyer.ID, driver.ID)
	testutil.SeedEscrowWithStatus(t, db, dealA.ID, decimal.RequireFromString("10.00"),
		buyer.ID, seller.ID, domain.EscrowStatusHeld, &key)

	dealB := testutil.SeedDeal(t, db, 802, "Deal B", seller.ID, buyer.ID, driver.ID)
	escB := testutil.SeedEscrow(t, db, dealB.ID, decimal.RequireFromString("20.00"), buyer.ID, seller.ID)

	// Releasing the second escrow under the same key must hit the unique
	// index even though no application pre-check ran.
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.MarkReleased(ctx, tx, escB.ID, buyer.ID, &key, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestMarkReleased_RequiresHeldStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEscrowRepository(db)
	ctx := context.Background()

	seller := testutil.SeedUser(t, db, "Seller", "s2@test.com", domain.RoleProducer, decimal.Zero)
	buyer := testutil.SeedUser(t, db, "Buyer", "b2@test.com", domain.RoleRetailer, decimal.Zero)
	driver := testutil.SeedUser(t, db, "Driver", "d2@test.com", domain.RoleDriver, decimal.Zero)
	deal := testutil.SeedDeal(t, db, 803, "Deal C", seller.ID, buyer.ID, driver.ID)
	esc := testutil.SeedEscrowWithStatus(t, db, deal.ID, decimal.RequireFromString("30.00"),
		buyer.ID, seller.ID, domain.EscrowStatusRefunded, nil)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.MarkReleased(ctx, tx, esc.ID, buyer.ID, nil, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrEscrowNotHeld)
}

func TestCreate_OneEscrowPerDeal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewEscrowRepository(db)
	ctx := context.Background()

	seller := testutil.SeedUser(t, db, "Seller", "s3@test.com", domain.RoleProducer, decimal.Zero)
	buyer := testutil.SeedUser(t, db, "Buyer", "b3@test.com", domain.RoleRetailer, decimal.Zero)
	driver := testutil.SeedUser(t, db, "Driver", "d3@test.com", domain.RoleDriver, decimal.Zero)
	deal := testutil.SeedDeal(t, db, 804, "Deal D", seller.ID, buyer.ID, driver.ID)
	testutil.SeedEscrow(t, db, deal.ID, decimal.RequireFromString("40.00"), buyer.ID, seller.ID)

	err := repo.Create(ctx, &domain.EscrowTransaction{
		ID:          uuid.New(),
		DealGroupID: deal.ID,
		Amount:      decimal.RequireFromString("41.00"),
		Currency:    domain.CurrencyUSD,
		Status:      domain.EscrowStatusHeld,
		CreatedAt:   time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrEscrowExists)
}

func TestCreditBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "Wallet Holder", "w@test.com", domain.RoleProducer,
		decimal.RequireFromString("10.50"))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.CreditBalance(ctx, tx, user.ID, decimal.RequireFromString("4.25")))
	require.NoError(t, tx.Commit())

	assert.Equal(t, "14.75", testutil.GetBalance(t, db, user.ID).StringFixed(2))

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.CreditBalance(ctx, tx, user.ID, decimal.RequireFromString("-1.00"))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	err = repo.CreditBalance(ctx, tx, uuid.New(), decimal.RequireFromString("1.00"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}
