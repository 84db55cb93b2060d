// Package testutil provides the shared in-memory database harness for
// package tests. Schema mirrors the goose migration; defaults that need
// Postgres functions are assigned in Go instead.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE source_files (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		format_tag TEXT NOT NULL,
		content BLOB,
		uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX idx_source_files_content_hash ON source_files (content_hash)`,
	`CREATE TABLE stores (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX idx_stores_name ON stores (name)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT,
		sku TEXT
	)`,
	`CREATE UNIQUE INDEX idx_products_name ON products (name)`,
	`CREATE TABLE receipts (
		id TEXT PRIMARY KEY,
		imported_at DATETIME NOT NULL,
		purchase_date DATETIME NOT NULL,
		store_id TEXT NOT NULL,
		source_file_id TEXT NOT NULL,
		total NUMERIC NOT NULL
	)`,
	`CREATE TABLE purchases (
		id TEXT PRIMARY KEY,
		receipt_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		unit_price NUMERIC NOT NULL,
		total_price NUMERIC NOT NULL,
		datetime DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX idx_purchases_receipt_id ON purchases (receipt_id)`,
	`CREATE INDEX idx_purchases_product_id ON purchases (product_id)`,
}

// OpenDB opens a fresh in-memory database with the full ledger schema. Each
// call gets its own database; the single-connection cap keeps shared-cache
// sqlite serialized under concurrent test writers.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}
	return conn
}

func MustCreateStore(t *testing.T, db *gorm.DB, name string) *models.Store {
	t.Helper()
	store := &models.Store{ID: uuid.New(), Name: name}
	if err := db.Create(store).Error; err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func MustCreateProduct(t *testing.T, db *gorm.DB, name, unit string) *models.Product {
	t.Helper()
	product := &models.Product{ID: uuid.New(), Name: name, Unit: unit}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func MustCreateSourceFile(t *testing.T, db *gorm.DB, content []byte) *models.SourceFile {
	t.Helper()
	file := &models.SourceFile{
		ID:          uuid.New(),
		ContentHash: fmt.Sprintf("hash-%s", uuid.NewString()),
		FormatTag:   "json_v1",
		Content:     content,
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("create source file: %v", err)
	}
	return file
}

func MustCreateReceipt(t *testing.T, db *gorm.DB, id string, storeID, sourceFileID uuid.UUID, purchasedAt time.Time, total string) *models.Receipt {
	t.Helper()
	receipt := &models.Receipt{
		ID:           id,
		ImportedAt:   time.Now().UTC(),
		PurchaseDate: purchasedAt,
		StoreID:      storeID,
		SourceFileID: sourceFileID,
		Total:        decimal.RequireFromString(total),
	}
	if err := db.Create(receipt).Error; err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	return receipt
}

func MustCreatePurchase(t *testing.T, db *gorm.DB, receiptID string, productID uuid.UUID, at time.Time, quantity, unitPrice, totalPrice string) *models.Purchase {
	t.Helper()
	purchase := &models.Purchase{
		ID:         uuid.New(),
		ReceiptID:  receiptID,
		ProductID:  productID,
		Quantity:   decimal.RequireFromString(quantity),
		UnitPrice:  decimal.RequireFromString(unitPrice),
		TotalPrice: decimal.RequireFromString(totalPrice),
		Datetime:   at,
	}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	return purchase
}
