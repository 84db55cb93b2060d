package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	"github.com/oskarlind/groceryledger-backend/internal/testutil"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := testutil.OpenDB(t)
	svc, err := NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func TestMonthlySpendingGroupsByPurchaseMonth(t *testing.T) {
	svc, conn := newTestService(t)

	store := testutil.MustCreateStore(t, conn, "Coop")
	file := testutil.MustCreateSourceFile(t, conn, []byte("doc"))
	testutil.MustCreateReceipt(t, conn, "K-1", store.ID, file.ID,
		time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), "10.00")
	testutil.MustCreateReceipt(t, conn, "K-2", store.ID, file.ID,
		time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC), "5.00")
	testutil.MustCreateReceipt(t, conn, "K-3", store.ID, file.ID,
		time.Date(2023, 12, 24, 12, 0, 0, 0, time.UTC), "100.00")

	series, err := svc.MonthlySpending(context.Background())
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2023-12", series[0].Month)
	assert.True(t, series[0].Total.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, "2024-01", series[1].Month)
	assert.True(t, series[1].Total.Equal(decimal.RequireFromString("15.00")))
}

func TestMonthlySpendingBucketsInUTC(t *testing.T) {
	svc, conn := newTestService(t)

	store := testutil.MustCreateStore(t, conn, "Coop")
	file := testutil.MustCreateSourceFile(t, conn, []byte("doc"))
	// 2024-02-01 01:30 +02:00 is still January in UTC.
	stockholm := time.FixedZone("CEST", 2*60*60)
	testutil.MustCreateReceipt(t, conn, "K-1", store.ID, file.ID,
		time.Date(2024, 2, 1, 1, 30, 0, 0, stockholm), "10.00")

	series, err := svc.MonthlySpending(context.Background())
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "2024-01", series[0].Month)
}

func TestMonthlySpendingEmptyLedger(t *testing.T) {
	svc, _ := newTestService(t)

	series, err := svc.MonthlySpending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, series)
}

func seedPriceHistory(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()
	coop := testutil.MustCreateStore(t, conn, "Coop")
	ica := testutil.MustCreateStore(t, conn, "ICA")
	file := testutil.MustCreateSourceFile(t, conn, []byte("doc"))
	day1 := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 12, 12, 0, 0, 0, time.UTC)
	day3 := time.Date(2024, 1, 19, 12, 0, 0, 0, time.UTC)
	testutil.MustCreateReceipt(t, conn, "K-1", coop.ID, file.ID, day1, "12.00")
	testutil.MustCreateReceipt(t, conn, "K-2", ica.ID, file.ID, day2, "9.50")
	testutil.MustCreateReceipt(t, conn, "K-3", coop.ID, file.ID, day3, "19.00")
	milk := testutil.MustCreateProduct(t, conn, "Mjölk", "st")
	testutil.MustCreatePurchase(t, conn, "K-1", milk.ID, day1, "1", "12.0", "12.00")
	testutil.MustCreatePurchase(t, conn, "K-2", milk.ID, day2, "1", "9.5", "9.50")
	testutil.MustCreatePurchase(t, conn, "K-3", milk.ID, day3, "2", "9.5", "19.00")
	return milk.ID
}

func TestPriceSeriesOrderedWithStores(t *testing.T) {
	svc, conn := newTestService(t)
	productID := seedPriceHistory(t, conn)

	series, err := svc.PriceSeries(context.Background(), productID)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, "Coop", series[0].StoreName)
	assert.True(t, series[0].UnitPrice.Equal(decimal.RequireFromString("12.0")))
	assert.Equal(t, "ICA", series[1].StoreName)
	assert.True(t, series[0].Datetime.Before(series[1].Datetime))
}

func TestProductStats(t *testing.T) {
	svc, conn := newTestService(t)
	productID := seedPriceHistory(t, conn)

	stats, err := svc.ProductStats(context.Background(), productID)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TimesPurchased)
	require.NotNil(t, stats.LowestPrice)
	require.NotNil(t, stats.HighestPrice)
	assert.True(t, stats.LowestPrice.Price.Equal(decimal.RequireFromString("9.5")))
	// Tie between day2 and day3 resolves to the first occurrence.
	assert.Equal(t, time.Date(2024, 1, 12, 12, 0, 0, 0, time.UTC), stats.LowestPrice.Datetime.UTC())
	assert.True(t, stats.HighestPrice.Price.Equal(decimal.RequireFromString("12.0")))
	assert.True(t, stats.DifferenceLowestHighest.Equal(decimal.RequireFromString("2.5")))

	assert.True(t, stats.TotalSpent.Equal(decimal.RequireFromString("40.50")))
	assert.True(t, stats.AmountPurchased.Equal(decimal.RequireFromString("4")))
	assert.True(t, stats.AveragePrice.Equal(decimal.RequireFromString("10.125")))

	require.NotNil(t, stats.FirstPurchased)
	require.NotNil(t, stats.LastPurchased)
	assert.True(t, stats.FirstPurchased.Before(*stats.LastPurchased))

	// Store list deduped in insertion order.
	assert.Equal(t, []string{"Coop", "ICA"}, stats.Stores)
}

func TestProductStatsNoPurchases(t *testing.T) {
	svc, conn := newTestService(t)
	product := testutil.MustCreateProduct(t, conn, "Ny vara", "st")

	stats, err := svc.ProductStats(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TimesPurchased)
	assert.Nil(t, stats.LowestPrice)
	assert.Nil(t, stats.FirstPurchased)
	assert.True(t, stats.TotalSpent.IsZero())
	assert.Empty(t, stats.Stores)
}

func TestProductStatsUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ProductStats(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
