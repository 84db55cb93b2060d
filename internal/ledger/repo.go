package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductPurchaseRow is one purchase of a product joined with the store it
// happened at. Rows come back ordered by purchase datetime, then insertion
// order for same-moment purchases.
type ProductPurchaseRow struct {
	PurchaseID uuid.UUID       `gorm:"column:purchase_id"`
	ReceiptID  string          `gorm:"column:receipt_id"`
	StoreName  string          `gorm:"column:store_name"`
	Datetime   time.Time       `gorm:"column:datetime"`
	Quantity   decimal.Decimal `gorm:"column:quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price"`
	TotalPrice decimal.Decimal `gorm:"column:total_price"`
}

// Repository exposes the ledger persistence primitives shared by the import,
// product and analytics services.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateStore(ctx context.Context, store *models.Store) (*models.Store, error)
	FindStoreByName(ctx context.Context, name string) (*models.Store, error)
	FindStoreByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ListStores(ctx context.Context) ([]models.Store, error)

	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	FindProductByName(ctx context.Context, name string) (*models.Product, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListProductIDsWithoutPurchases(ctx context.Context) ([]uuid.UUID, error)

	CreateReceipt(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error)
	FindReceiptByID(ctx context.Context, id string) (*models.Receipt, error)
	ListReceipts(ctx context.Context) ([]models.Receipt, error)
	DeleteReceipt(ctx context.Context, id string) error

	CreatePurchases(ctx context.Context, purchases []models.Purchase) error
	ListPurchasesByReceipt(ctx context.Context, receiptID string) ([]models.Purchase, error)
	ListPurchasesByProduct(ctx context.Context, productID uuid.UUID) ([]models.Purchase, error)
	ListProductPurchaseRows(ctx context.Context, productID uuid.UUID) ([]ProductPurchaseRow, error)
	DeletePurchasesByReceipt(ctx context.Context, receiptID string) error
	CountPurchasesByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	ReassignPurchases(ctx context.Context, fromProductID, toProductID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateStore(ctx context.Context, store *models.Store) (*models.Store, error) {
	if store.ID == uuid.Nil {
		store.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		return nil, err
	}
	return store, nil
}

func (r *repository) FindStoreByName(ctx context.Context, name string) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) FindStoreByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) ListStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&stores).Error
	if err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) FindProductByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Product{}).Error
}

func (r *repository) ListProductIDsWithoutPurchases(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id NOT IN (?)",
			r.db.Model(&models.Purchase{}).Distinct("product_id")).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) CreateReceipt(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error) {
	if err := r.db.WithContext(ctx).Create(receipt).Error; err != nil {
		return nil, err
	}
	return receipt, nil
}

func (r *repository) FindReceiptByID(ctx context.Context, id string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&receipt).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *repository) ListReceipts(ctx context.Context) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := r.db.WithContext(ctx).
		Order("purchase_date ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *repository) DeleteReceipt(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Receipt{}).Error
}

func (r *repository) CreatePurchases(ctx context.Context, purchases []models.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	for i := range purchases {
		if purchases[i].ID == uuid.Nil {
			purchases[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&purchases).Error
}

func (r *repository) ListPurchasesByReceipt(ctx context.Context, receiptID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Order("datetime ASC, created_at ASC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) ListPurchasesByProduct(ctx context.Context, productID uuid.UUID) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("datetime ASC, created_at ASC").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) ListProductPurchaseRows(ctx context.Context, productID uuid.UUID) ([]ProductPurchaseRow, error) {
	var rows []ProductPurchaseRow
	err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Select(`purchases.id AS purchase_id,
			purchases.receipt_id AS receipt_id,
			stores.name AS store_name,
			purchases.datetime AS datetime,
			purchases.quantity AS quantity,
			purchases.unit_price AS unit_price,
			purchases.total_price AS total_price`).
		Joins("JOIN receipts ON receipts.id = purchases.receipt_id").
		Joins("JOIN stores ON stores.id = receipts.store_id").
		Where("purchases.product_id = ?", productID).
		Order("purchases.datetime ASC, purchases.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeletePurchasesByReceipt(ctx context.Context, receiptID string) error {
	return r.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Delete(&models.Purchase{}).Error
}

func (r *repository) CountPurchasesByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	return count, err
}

func (r *repository) ReassignPurchases(ctx context.Context, fromProductID, toProductID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("product_id = ?", fromProductID).
		Update("product_id", toProductID)
	return res.RowsAffected, res.Error
}
