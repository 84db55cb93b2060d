package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/oskarlind/groceryledger-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassignPurchases(t *testing.T) {
	conn := testutil.OpenDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	store := testutil.MustCreateStore(t, conn, "Coop")
	file := testutil.MustCreateSourceFile(t, conn, []byte("doc"))
	at := time.Now().UTC()
	testutil.MustCreateReceipt(t, conn, "K-1", store.ID, file.ID, at, "60.00")
	source := testutil.MustCreateProduct(t, conn, "Mjolk", "st")
	target := testutil.MustCreateProduct(t, conn, "Mjölk", "st")
	testutil.MustCreatePurchase(t, conn, "K-1", source.ID, at, "1", "14.50", "14.50")
	testutil.MustCreatePurchase(t, conn, "K-1", source.ID, at, "2", "14.50", "29.00")

	moved, err := repo.ReassignPurchases(ctx, source.ID, target.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, moved)

	count, err := repo.CountPurchasesByProduct(ctx, source.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	count, err = repo.CountPurchasesByProduct(ctx, target.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestListProductIDsWithoutPurchases(t *testing.T) {
	conn := testutil.OpenDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	store := testutil.MustCreateStore(t, conn, "Coop")
	file := testutil.MustCreateSourceFile(t, conn, []byte("doc"))
	at := time.Now().UTC()
	testutil.MustCreateReceipt(t, conn, "K-1", store.ID, file.ID, at, "15.00")
	used := testutil.MustCreateProduct(t, conn, "Ägg", "st")
	unused := testutil.MustCreateProduct(t, conn, "Gammal vara", "st")
	testutil.MustCreatePurchase(t, conn, "K-1", used.ID, at, "1", "15.00", "15.00")

	ids, err := repo.ListProductIDsWithoutPurchases(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, unused.ID, ids[0])
}

func TestListProductPurchaseRowsJoinsStores(t *testing.T) {
	conn := testutil.OpenDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	coop := testutil.MustCreateStore(t, conn, "Coop")
	ica := testutil.MustCreateStore(t, conn, "ICA")
	file := testutil.MustCreateSourceFile(t, conn, []byte("doc"))
	jan := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 5, 12, 0, 0, 0, time.UTC)
	testutil.MustCreateReceipt(t, conn, "K-1", coop.ID, file.ID, jan, "14.50")
	testutil.MustCreateReceipt(t, conn, "K-2", ica.ID, file.ID, feb, "15.90")
	milk := testutil.MustCreateProduct(t, conn, "Mjölk", "st")
	testutil.MustCreatePurchase(t, conn, "K-2", milk.ID, feb, "1", "15.90", "15.90")
	testutil.MustCreatePurchase(t, conn, "K-1", milk.ID, jan, "1", "14.50", "14.50")

	rows, err := repo.ListProductPurchaseRows(ctx, milk.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Coop", rows[0].StoreName)
	assert.Equal(t, "K-1", rows[0].ReceiptID)
	assert.True(t, rows[0].Datetime.Before(rows[1].Datetime))
	assert.Equal(t, "ICA", rows[1].StoreName)
}
