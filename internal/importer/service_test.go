package importer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	"github.com/oskarlind/groceryledger-backend/internal/parsing"
	"github.com/oskarlind/groceryledger-backend/internal/sourcefiles"
	"github.com/oskarlind/groceryledger-backend/internal/testutil"
	"github.com/oskarlind/groceryledger-backend/pkg/db"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestImporter(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := testutil.OpenDB(t)

	registry := parsing.NewRegistry()
	require.NoError(t, registry.Register(parsing.FormatJSONV1, parsing.NewJSONParser()))
	dispatcher := parsing.NewDispatcher(registry, 2, time.Second)

	sources, err := sourcefiles.NewRegistry(sourcefiles.NewRepository(conn))
	require.NoError(t, err)

	svc, err := NewService(
		ledger.NewRepository(conn),
		sources,
		dispatcher,
		db.NewWithConn(conn),
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc, conn
}

func receiptJSON(id, store string) []byte {
	return fmt.Appendf(nil, `{
		"id": %q,
		"datetime": "2024-01-05 17:32",
		"store": %q,
		"total": 43.50,
		"products": [
			{"name": "Mjölk 1.5%%", "amount": 1, "unit": "st", "unitPrice": 14.50, "totalPrice": 14.50},
			{"name": "Bröd", "amount": 1, "unit": "st", "unitPrice": 29.00, "totalPrice": 29.00}
		]
	}`, id, store)
}

func TestImportUploadCreatesLedgerRows(t *testing.T) {
	svc, conn := newTestImporter(t)
	ctx := context.Background()

	res, err := svc.ImportUpload(ctx, receiptJSON("K-1", "Coop"), parsing.FormatJSONV1)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	require.NotNil(t, res.Receipt)
	assert.Equal(t, "K-1", res.Receipt.ID)
	assert.True(t, res.Receipt.Total.Equal(decimal.RequireFromString("43.50")))

	var stores, products, purchases int64
	require.NoError(t, conn.Table("stores").Count(&stores).Error)
	require.NoError(t, conn.Table("products").Count(&products).Error)
	require.NoError(t, conn.Table("purchases").Count(&purchases).Error)
	assert.EqualValues(t, 1, stores)
	assert.EqualValues(t, 2, products)
	assert.EqualValues(t, 2, purchases)
}

func TestImportUploadDeduplicatesBytes(t *testing.T) {
	svc, conn := newTestImporter(t)
	ctx := context.Background()

	doc := receiptJSON("K-1", "Coop")
	first, err := svc.ImportUpload(ctx, doc, parsing.FormatJSONV1)
	require.NoError(t, err)

	second, err := svc.ImportUpload(ctx, doc, parsing.FormatJSONV1)
	require.NoError(t, err, "duplicate upload is informational, not an error")
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.SourceFileID, second.SourceFileID)
	assert.Nil(t, second.Receipt)

	var receipts int64
	require.NoError(t, conn.Table("receipts").Count(&receipts).Error)
	assert.EqualValues(t, 1, receipts)
}

func TestImportIsIdempotentOnReceiptID(t *testing.T) {
	svc, conn := newTestImporter(t)
	ctx := context.Background()

	_, err := svc.ImportUpload(ctx, receiptJSON("K-1", "Coop"), parsing.FormatJSONV1)
	require.NoError(t, err)

	// Different bytes carrying the same vendor receipt id.
	res, err := svc.ImportUpload(ctx, receiptJSON("K-1", "Coop Forum"), parsing.FormatJSONV1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	var receipts, purchases int64
	require.NoError(t, conn.Table("receipts").Count(&receipts).Error)
	require.NoError(t, conn.Table("purchases").Count(&purchases).Error)
	assert.EqualValues(t, 1, receipts, "second import must not duplicate the receipt")
	assert.EqualValues(t, 2, purchases)
}

func TestReimportReplacesReceipt(t *testing.T) {
	svc, conn := newTestImporter(t)
	ctx := context.Background()

	up, err := svc.ImportUpload(ctx, receiptJSON("K-1", "Coop"), parsing.FormatJSONV1)
	require.NoError(t, err)

	res, err := svc.Reimport(ctx, up.Receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplaced, res.Outcome)
	assert.Equal(t, 2, res.LineItems)

	var receipts, purchases, products int64
	require.NoError(t, conn.Table("receipts").Count(&receipts).Error)
	require.NoError(t, conn.Table("purchases").Count(&purchases).Error)
	require.NoError(t, conn.Table("products").Count(&products).Error)
	assert.EqualValues(t, 1, receipts)
	assert.EqualValues(t, 2, purchases, "replace recreates, never accumulates")
	assert.EqualValues(t, 2, products, "reference rows are reused")
}

func TestReconcileReplaceDropsRemovedLineItems(t *testing.T) {
	svc, conn := newTestImporter(t)
	ctx := context.Background()

	up, err := svc.ImportUpload(ctx, receiptJSON("K-1", "Coop"), parsing.FormatJSONV1)
	require.NoError(t, err)

	// Same receipt id, but the corrected document dropped one product and
	// swapped the other.
	changed := []byte(`{
		"id": "K-1",
		"datetime": "2024-01-05 17:32",
		"store": "Coop",
		"total": 54.90,
		"products": [
			{"name": "Ost", "amount": 1, "unit": "st", "unitPrice": 54.90, "totalPrice": 54.90}
		]
	}`)
	imp, err := parsing.NewJSONParser().Parse(ctx, changed)
	require.NoError(t, err)

	res, err := svc.Reconcile(ctx, imp, up.SourceFileID, true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplaced, res.Outcome)
	assert.Equal(t, 1, res.LineItems)

	var purchases int64
	require.NoError(t, conn.Table("purchases").Count(&purchases).Error)
	assert.EqualValues(t, 1, purchases, "old line items must not survive a replace")

	var names []string
	require.NoError(t, conn.Table("purchases").
		Joins("JOIN products ON products.id = purchases.product_id").
		Where("purchases.receipt_id = ?", "K-1").
		Pluck("products.name", &names).Error)
	assert.Equal(t, []string{"Ost"}, names)
}

func TestReimportUnknownReceipt(t *testing.T) {
	svc, _ := newTestImporter(t)

	_, err := svc.Reimport(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestReimportAllSweepsEveryReceipt(t *testing.T) {
	svc, _ := newTestImporter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.ImportUpload(ctx, receiptJSON(fmt.Sprintf("K-%d", i), "Coop"), parsing.FormatJSONV1)
		require.NoError(t, err)
	}

	res, err := svc.ReimportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, 3, res.Replaced)
	assert.Zero(t, res.Failed)
}

func TestImportUploadParseFailureIsFatal(t *testing.T) {
	svc, conn := newTestImporter(t)
	ctx := context.Background()

	_, err := svc.ImportUpload(ctx, []byte("not a receipt"), parsing.FormatJSONV1)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeParseFatal, pkgerrors.As(err).Code())

	// The raw document stays registered for later reprocessing.
	var files, receipts int64
	require.NoError(t, conn.Table("source_files").Count(&files).Error)
	require.NoError(t, conn.Table("receipts").Count(&receipts).Error)
	assert.EqualValues(t, 1, files)
	assert.Zero(t, receipts)
}

func TestConcurrentImportsShareOneStoreRow(t *testing.T) {
	svc, conn := newTestImporter(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := receiptJSON(fmt.Sprintf("K-%d", i), "Willys")
			_, errs[i] = svc.ImportUpload(ctx, doc, parsing.FormatJSONV1)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "import %d failed", i)
	}

	var stores, receipts int64
	require.NoError(t, conn.Table("stores").Count(&stores).Error)
	require.NoError(t, conn.Table("receipts").Count(&receipts).Error)
	assert.EqualValues(t, 1, stores, "one winner per store name")
	assert.EqualValues(t, n, receipts)
}
