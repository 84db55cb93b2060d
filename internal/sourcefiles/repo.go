package sourcefiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes persistence for raw receipt documents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, file *models.SourceFile) (*models.SourceFile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SourceFile, error)
	FindByHash(ctx context.Context, contentHash string) (*models.SourceFile, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteOrphans(ctx context.Context, olderThan time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a source file repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, file *models.SourceFile) (*models.SourceFile, error) {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SourceFile, error) {
	var file models.SourceFile
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repository) FindByHash(ctx context.Context, contentHash string) (*models.SourceFile, error) {
	var file models.SourceFile
	err := r.db.WithContext(ctx).
		Where("content_hash = ?", contentHash).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.SourceFile{}).Error
}

// DeleteOrphans removes source files no receipt references, skipping anything
// uploaded at or after olderThan, and returns the number of rows dropped.
func (r *repository) DeleteOrphans(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("uploaded_at < ?", olderThan).
		Where("id NOT IN (?)",
			r.db.Model(&models.Receipt{}).Select("source_file_id")).
		Delete(&models.SourceFile{})
	return res.RowsAffected, res.Error
}
