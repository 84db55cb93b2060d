package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase is one receipt line item linking a Receipt to a Product. Created
// and destroyed only together with its Receipt, except for product merges
// which reassign the product reference.
type Purchase struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReceiptID  string          `gorm:"column:receipt_id;not null;index" json:"receipt_id"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	Quantity   decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null" json:"total_price"`
	Datetime   time.Time       `gorm:"column:datetime;not null" json:"datetime"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Purchase) TableName() string { return "purchases" }
