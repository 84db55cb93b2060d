package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/internal/ledger"
	"github.com/oskarlind/groceryledger-backend/internal/parsing"
	"github.com/oskarlind/groceryledger-backend/internal/sourcefiles"
	"github.com/oskarlind/groceryledger-backend/pkg/db"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"github.com/oskarlind/groceryledger-backend/pkg/logger"
	"github.com/oskarlind/groceryledger-backend/pkg/metrics"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type documentParser interface {
	Parse(ctx context.Context, data []byte, formatTag string) (*parsing.NormalizedImport, error)
}

// Outcome describes what a reconcile attempt did to the ledger.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeReplaced Outcome = "replaced"
	OutcomeSkipped  Outcome = "skipped"
)

// Result reports one reconciled receipt.
type Result struct {
	Receipt   *models.Receipt `json:"receipt"`
	Outcome   Outcome         `json:"outcome"`
	LineItems int             `json:"line_items"`
}

// UploadResult reports one uploaded document. Duplicate uploads and
// idempotent skips are informational outcomes, never errors.
type UploadResult struct {
	SourceFileID uuid.UUID       `json:"source_file_id"`
	Duplicate    bool            `json:"duplicate"`
	Receipt      *models.Receipt `json:"receipt,omitempty"`
	Outcome      Outcome         `json:"outcome,omitempty"`
}

// ReimportAllResult summarizes a bulk re-reconcile sweep.
type ReimportAllResult struct {
	Attempted int      `json:"attempted"`
	Replaced  int      `json:"replaced"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Service drives the ingestion pipeline: register document, parse it outside
// any transaction, then reconcile the normalized import into the ledger in
// exactly one transaction.
type Service interface {
	ImportUpload(ctx context.Context, content []byte, formatTag string) (*UploadResult, error)
	Reconcile(ctx context.Context, imp *parsing.NormalizedImport, sourceFileID uuid.UUID, replace bool) (*Result, error)
	Reimport(ctx context.Context, receiptID string) (*Result, error)
	ReimportAll(ctx context.Context) (*ReimportAllResult, error)
}

type service struct {
	ledger  ledger.Repository
	sources sourcefiles.Registry
	parser  documentParser
	tx      txRunner
	metrics *metrics.ImportMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the import service with the required dependencies.
// Metrics and logger may be nil in tests.
func NewService(
	ledgerRepo ledger.Repository,
	sources sourcefiles.Registry,
	parser documentParser,
	tx txRunner,
	importMetrics *metrics.ImportMetrics,
	logg *logger.Logger,
) (Service, error) {
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if sources == nil {
		return nil, fmt.Errorf("source file registry required")
	}
	if parser == nil {
		return nil, fmt.Errorf("document parser required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		ledger:  ledgerRepo,
		sources: sources,
		parser:  parser,
		tx:      tx,
		metrics: importMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// ImportUpload registers the raw document and reconciles it. A re-upload of
// the exact same bytes short-circuits before parsing.
func (s *service) ImportUpload(ctx context.Context, content []byte, formatTag string) (*UploadResult, error) {
	file, isNew, err := s.sources.Put(ctx, content, formatTag)
	if err != nil {
		return nil, err
	}
	if !isNew {
		s.metrics.IncDuplicate()
		s.info(ctx, file, "duplicate source file, skipping import")
		return &UploadResult{SourceFileID: file.ID, Duplicate: true}, nil
	}

	imp, err := s.parseTimed(ctx, content, formatTag)
	if err != nil {
		s.metrics.IncImport(metrics.ImportOutcomeFailed)
		return nil, err
	}

	res, err := s.Reconcile(ctx, imp, file.ID, false)
	if err != nil {
		return nil, err
	}
	return &UploadResult{
		SourceFileID: file.ID,
		Receipt:      res.Receipt,
		Outcome:      res.Outcome,
	}, nil
}

// Reimport re-parses the stored source document of an existing receipt and
// reconciles it with replace semantics.
func (s *service) Reimport(ctx context.Context, receiptID string) (*Result, error) {
	if receiptID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt id required")
	}

	receipt, err := s.ledger.FindReceiptByID(ctx, receiptID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching receipt")
	}

	file, err := s.sources.Get(ctx, receipt.SourceFileID)
	if err != nil {
		return nil, err
	}

	imp, err := s.parseTimed(ctx, file.Content, file.FormatTag)
	if err != nil {
		s.metrics.IncImport(metrics.ImportOutcomeFailed)
		return nil, err
	}

	return s.Reconcile(ctx, imp, file.ID, true)
}

// ReimportAll re-runs the replace reconcile over every receipt. Per-receipt
// failures are collected, not fatal to the sweep.
func (s *service) ReimportAll(ctx context.Context) (*ReimportAllResult, error) {
	receipts, err := s.ledger.ListReceipts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing receipts")
	}

	result := &ReimportAllResult{}
	var errs error
	for _, receipt := range receipts {
		if ctx.Err() != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, ctx.Err(), "reimport sweep interrupted")
		}
		result.Attempted++
		if _, err := s.Reimport(ctx, receipt.ID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", receipt.ID, err))
			errs = multierr.Append(errs, fmt.Errorf("receipt %s: %w", receipt.ID, err))
			continue
		}
		result.Replaced++
	}

	if errs != nil && s.logg != nil {
		s.logg.Error(ctx, "reimport sweep finished with failures", errs)
	}
	return result, nil
}

// Reconcile applies one normalized import to the ledger. Idempotent on the
// vendor-supplied receipt id: an existing receipt is left untouched unless
// replace is set, in which case it is deleted and recreated in the same
// transaction. Name races on stores and products surface as unique-constraint
// violations that abort and re-run the whole transaction, so exactly one row
// per name wins.
func (s *service) Reconcile(ctx context.Context, imp *parsing.NormalizedImport, sourceFileID uuid.UUID, replace bool) (*Result, error) {
	if imp == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "normalized import required")
	}
	if err := imp.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid normalized import")
	}
	if sourceFileID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source file id required")
	}

	var result *Result
	backoff := retry.WithMaxRetries(3, retry.NewExponential(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := s.reconcileOnce(ctx, imp, sourceFileID, replace)
		if err != nil {
			if db.IsUniqueViolation(err, "") || db.IsSerializationFailure(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "") || db.IsSerializationFailure(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTxAborted, err, "import aborted after retries")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconciling import")
	}

	s.metrics.IncImport(string(result.Outcome))
	return result, nil
}

func (s *service) reconcileOnce(ctx context.Context, imp *parsing.NormalizedImport, sourceFileID uuid.UUID, replace bool) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ledger.WithTx(tx)

		existing, err := repo.FindReceiptByID(ctx, imp.ExternalReceiptID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		outcome := OutcomeCreated
		if existing != nil {
			if !replace {
				result = &Result{Receipt: existing, Outcome: OutcomeSkipped}
				return nil
			}
			if err := repo.DeletePurchasesByReceipt(ctx, existing.ID); err != nil {
				return err
			}
			if err := repo.DeleteReceipt(ctx, existing.ID); err != nil {
				return err
			}
			outcome = OutcomeReplaced
		}

		store, err := findOrCreateStore(ctx, repo, imp.StoreName)
		if err != nil {
			return err
		}

		receipt := &models.Receipt{
			ID:           imp.ExternalReceiptID,
			ImportedAt:   s.now().UTC(),
			PurchaseDate: imp.PurchaseDateTime,
			StoreID:      store.ID,
			SourceFileID: sourceFileID,
			Total:        imp.Total,
		}
		if _, err := repo.CreateReceipt(ctx, receipt); err != nil {
			return err
		}

		purchases := make([]models.Purchase, 0, len(imp.LineItems))
		for _, item := range imp.LineItems {
			product, err := findOrCreateProduct(ctx, repo, item)
			if err != nil {
				return err
			}
			purchases = append(purchases, models.Purchase{
				ReceiptID:  receipt.ID,
				ProductID:  product.ID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.LineTotal,
				Datetime:   imp.PurchaseDateTime,
			})
		}
		if err := repo.CreatePurchases(ctx, purchases); err != nil {
			return err
		}

		result = &Result{Receipt: receipt, Outcome: outcome, LineItems: len(purchases)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// findOrCreateStore resolves a store by exact name. A lost creation race
// bubbles the unique violation up so the caller re-runs the transaction.
func findOrCreateStore(ctx context.Context, repo ledger.Repository, name string) (*models.Store, error) {
	store, err := repo.FindStoreByName(ctx, name)
	if err == nil {
		return store, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	return repo.CreateStore(ctx, &models.Store{Name: name})
}

func findOrCreateProduct(ctx context.Context, repo ledger.Repository, item parsing.LineItem) (*models.Product, error) {
	product, err := repo.FindProductByName(ctx, item.ProductName)
	if err == nil {
		return product, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	return repo.CreateProduct(ctx, &models.Product{
		Name: item.ProductName,
		Unit: item.Unit,
		SKU:  item.SKU,
	})
}

func (s *service) parseTimed(ctx context.Context, content []byte, formatTag string) (*parsing.NormalizedImport, error) {
	start := s.now()
	imp, err := s.parser.Parse(ctx, content, formatTag)
	s.metrics.ObserveParseDuration(formatTag, s.now().Sub(start))
	if err != nil {
		if parsing.IsRetryable(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeParseRetryable, err, "parsing document")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeParseFatal, err, "parsing document")
	}
	return imp, nil
}

func (s *service) info(ctx context.Context, file *models.SourceFile, msg string) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithSourceFileID(ctx, file.ID.String())
	ctx = s.logg.WithFormatTag(ctx, file.FormatTag)
	s.logg.Info(ctx, msg)
}
