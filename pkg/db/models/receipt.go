package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt is a normalized purchase event. The primary key is the
// vendor-supplied external identifier, which doubles as the idempotency key
// for imports; it is never server-generated.
type Receipt struct {
	ID           string          `gorm:"column:id;primaryKey" json:"id"`
	ImportedAt   time.Time       `gorm:"column:imported_at;not null" json:"imported_at"`
	PurchaseDate time.Time       `gorm:"column:purchase_date;not null" json:"purchase_date"`
	StoreID      uuid.UUID       `gorm:"column:store_id;type:uuid;not null" json:"store_id"`
	SourceFileID uuid.UUID       `gorm:"column:source_file_id;type:uuid;not null" json:"source_file_id"`
	Total        decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
}

func (Receipt) TableName() string { return "receipts" }
