package models

import "github.com/google/uuid"

// Product is a shared reference entity resolved by exact name match. Deleted
// only when no purchase references it; consolidated via merge.
type Product struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name string    `gorm:"column:name;uniqueIndex;not null" json:"name"`
	Unit string    `gorm:"column:unit" json:"unit"`
	SKU  *string   `gorm:"column:sku" json:"sku,omitempty"`
}

func (Product) TableName() string { return "products" }
