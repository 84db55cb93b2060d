package ledger

import (
	"context"
	"fmt"

	"github.com/oskarlind/groceryledger-backend/internal/sourcefiles"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReceiptDetail is a receipt with its resolved store name and ordered
// purchase lines.
type ReceiptDetail struct {
	Receipt   models.Receipt    `json:"receipt"`
	StoreName string            `json:"store_name"`
	Purchases []models.Purchase `json:"purchases"`
}

// Service exposes receipt-level reads and the cascading delete.
type Service interface {
	ListReceipts(ctx context.Context) ([]models.Receipt, error)
	GetReceipt(ctx context.Context, id string) (*ReceiptDetail, error)
	GetSourceDocument(ctx context.Context, receiptID string) (*models.SourceFile, error)
	DeleteReceipt(ctx context.Context, id string) error
}

type service struct {
	repo    Repository
	sources sourcefiles.Repository
	tx      txRunner
}

// NewService builds the receipt service with the required dependencies.
func NewService(repo Repository, sources sourcefiles.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if sources == nil {
		return nil, fmt.Errorf("source file repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, sources: sources, tx: tx}, nil
}

func (s *service) ListReceipts(ctx context.Context) ([]models.Receipt, error) {
	receipts, err := s.repo.ListReceipts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing receipts")
	}
	return receipts, nil
}

func (s *service) GetReceipt(ctx context.Context, id string) (*ReceiptDetail, error) {
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}

	receipt, err := s.repo.FindReceiptByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching receipt")
	}

	store, err := s.repo.FindStoreByID(ctx, receipt.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching receipt store")
	}

	purchases, err := s.repo.ListPurchasesByReceipt(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching receipt purchases")
	}

	return &ReceiptDetail{
		Receipt:   *receipt,
		StoreName: store.Name,
		Purchases: purchases,
	}, nil
}

func (s *service) GetSourceDocument(ctx context.Context, receiptID string) (*models.SourceFile, error) {
	if receiptID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}

	receipt, err := s.repo.FindReceiptByID(ctx, receiptID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching receipt")
	}

	file, err := s.sources.FindByID(ctx, receipt.SourceFileID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "source document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching source document")
	}
	return file, nil
}

// DeleteReceipt removes a receipt together with its purchases and its source
// document in one transaction. Deleting an unknown receipt is a not-found
// error, never a partial delete.
func (s *service) DeleteReceipt(ctx context.Context, id string) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sources := s.sources.WithTx(tx)

		receipt, err := repo.FindReceiptByID(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching receipt")
		}

		if err := repo.DeletePurchasesByReceipt(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting purchases")
		}
		if err := repo.DeleteReceipt(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting receipt")
		}
		if err := sources.Delete(ctx, receipt.SourceFileID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting source document")
		}
		return nil
	})
}
