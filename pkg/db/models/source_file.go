package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceFile is a raw uploaded receipt document, content-addressed by hash.
// Rows are immutable once created.
type SourceFile struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ContentHash string    `gorm:"column:content_hash;uniqueIndex;not null" json:"content_hash"`
	FormatTag   string    `gorm:"column:format_tag;not null" json:"format_tag"`
	Content     []byte    `gorm:"column:content" json:"-"`
	UploadedAt  time.Time `gorm:"column:uploaded_at;autoCreateTime" json:"uploaded_at"`
}

func (SourceFile) TableName() string { return "source_files" }
