package models

import "github.com/google/uuid"

// Store is a shared reference entity resolved by exact name match and created
// lazily on first import that mentions it.
type Store struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name string    `gorm:"column:name;uniqueIndex;not null" json:"name"`
}

func (Store) TableName() string { return "stores" }
