package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MergeResult reports a completed product merge.
type MergeResult struct {
	Target         models.Product `json:"target"`
	MovedPurchases int64          `json:"moved_purchases"`
}

// PurgeResult reports a bulk cleanup of purchase-less products.
type PurgeResult struct {
	Deleted int `json:"deleted"`
}

// Service exposes product catalog operations: listing with deposit-noise
// filtering, the guarded delete, merge consolidation and bulk cleanup.
type Service interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListPurchases(ctx context.Context, id uuid.UUID) ([]models.Purchase, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Merge(ctx context.Context, sourceID, targetID uuid.UUID) (*MergeResult, error)
	PurgeEmpty(ctx context.Context) (*PurgeResult, error)
}

type service struct {
	repo          ledger.Repository
	tx            txRunner
	logg          *logger.Logger
	noisePrefixes []string
}

// NewService builds a product service. noisePrefixes filters rows like bottle
// deposits ("pant") out of listings; matching is case-insensitive on the whole
// name or a "prefix " head.
func NewService(repo ledger.Repository, tx txRunner, logg *logger.Logger, noisePrefixes []string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	lowered := make([]string, 0, len(noisePrefixes))
	for _, prefix := range noisePrefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" {
			lowered = append(lowered, prefix)
		}
	}
	return &service{
		repo:          repo,
		tx:            tx,
		logg:          logg,
		noisePrefixes: lowered,
	}, nil
}

func (s *service) List(ctx context.Context) ([]models.Product, error) {
	all, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing products")
	}

	filtered := make([]models.Product, 0, len(all))
	for _, product := range all {
		if s.isNoise(product.Name) {
			continue
		}
		filtered = append(filtered, product)
	}
	return filtered, nil
}

func (s *service) isNoise(name string) bool {
	lowered := strings.ToLower(name)
	for _, prefix := range s.noisePrefixes {
		if lowered == prefix || strings.HasPrefix(lowered, prefix+" ") {
			return true
		}
	}
	return false
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching product")
	}
	return product, nil
}

// ListPurchases returns the product's purchase history in purchase order.
func (s *service) ListPurchases(ctx context.Context, id uuid.UUID) ([]models.Purchase, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	purchases, err := s.repo.ListPurchasesByProduct(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing product purchases")
	}
	return purchases, nil
}

// Delete removes a product only when nothing references it. Products with
// purchase history must be merged away instead.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindProductByID(ctx, id); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching product")
		}

		count, err := repo.CountPurchasesByProduct(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "counting purchases")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "product has purchases").
				WithDetails(map[string]any{"purchase_count": count})
		}

		if err := repo.DeleteProduct(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting product")
		}
		return nil
	})
}

// Merge moves every purchase from source to target, then removes source.
// Runs in one transaction: either the target owns all of the source's
// history and the source is gone, or nothing changed.
func (s *service) Merge(ctx context.Context, sourceID, targetID uuid.UUID) (*MergeResult, error) {
	if sourceID == uuid.Nil || targetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and target product ids required")
	}
	if sourceID == targetID {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidMerge, "cannot merge a product into itself")
	}

	var result *MergeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindProductByID(ctx, sourceID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "source product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching source product")
		}
		target, err := repo.FindProductByID(ctx, targetID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "target product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching target product")
		}

		moved, err := repo.ReassignPurchases(ctx, sourceID, targetID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reassigning purchases")
		}
		if err := repo.DeleteProduct(ctx, sourceID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting merged product")
		}

		result = &MergeResult{Target: *target, MovedPurchases: moved}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"source_product_id": sourceID.String(),
			"target_product_id": targetID.String(),
			"moved_purchases":   result.MovedPurchases,
		})
		s.logg.Info(ctx, "products merged")
	}
	return result, nil
}

// PurgeEmpty deletes every product without purchases. Each delete runs
// through the guarded path; failures are collected, not fatal.
func (s *service) PurgeEmpty(ctx context.Context) (*PurgeResult, error) {
	ids, err := s.repo.ListProductIDsWithoutPurchases(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing purge candidates")
	}

	result := &PurgeResult{}
	var errs error
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", id, err))
			continue
		}
		result.Deleted++
	}

	if errs != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "purge finished with failures", errs)
		}
		return result, pkgerrors.Wrap(pkgerrors.CodeInternal, errs, "purging empty products")
	}
	return result, nil
}
