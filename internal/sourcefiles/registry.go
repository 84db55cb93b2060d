package sourcefiles

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/pkg/db"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"gorm.io/gorm"
)

// Registry is the content-addressed store of raw uploaded documents. The same
// bytes are stored exactly once, keyed by MD5 content hash; every receipt
// remembers which source file produced it.
type Registry interface {
	Put(ctx context.Context, content []byte, formatTag string) (*models.SourceFile, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.SourceFile, error)
	GetByHash(ctx context.Context, contentHash string) (*models.SourceFile, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SweepOrphans(ctx context.Context, grace time.Duration) (int64, error)
}

type registry struct {
	repo Repository
	now  func() time.Time
}

// NewRegistry builds a source file registry over the provided repository.
func NewRegistry(repo Repository) (Registry, error) {
	if repo == nil {
		return nil, fmt.Errorf("source file repository required")
	}
	return &registry{repo: repo, now: time.Now}, nil
}

// HashContent returns the hex MD5 digest used as the dedup key.
func HashContent(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// Put stores content under its hash. The second return is false when the
// exact bytes were already registered, in which case the existing record is
// returned untouched. Concurrent uploads of the same bytes race on the unique
// hash index; the loser re-reads the winner's row.
func (s *registry) Put(ctx context.Context, content []byte, formatTag string) (*models.SourceFile, bool, error) {
	if len(content) == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "source file content required")
	}
	if formatTag == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "format tag required")
	}

	hash := HashContent(content)

	existing, err := s.repo.FindByHash(ctx, hash)
	if err == nil {
		return existing, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up source file")
	}

	file := &models.SourceFile{
		ContentHash: hash,
		FormatTag:   formatTag,
		Content:     content,
	}
	created, err := s.repo.Create(ctx, file)
	if err == nil {
		return created, true, nil
	}
	if !db.IsUniqueViolation(err, "") {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing source file")
	}

	// Lost the insert race, the row exists now.
	winner, rerr := s.repo.FindByHash(ctx, hash)
	if rerr != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, rerr, "re-reading source file after conflict")
	}
	return winner, false, nil
}

func (s *registry) Get(ctx context.Context, id uuid.UUID) (*models.SourceFile, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source file id required")
	}
	file, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "source file not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching source file")
	}
	return file, nil
}

func (s *registry) GetByHash(ctx context.Context, contentHash string) (*models.SourceFile, error) {
	if contentHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content hash required")
	}
	file, err := s.repo.FindByHash(ctx, contentHash)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "source file not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fetching source file")
	}
	return file, nil
}

func (s *registry) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "source file id required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deleting source file")
	}
	return nil
}

// SweepOrphans drops source files no receipt references. Run periodically by
// the worker. The grace window protects uploads whose import is still in
// flight between registration and reconcile.
func (s *registry) SweepOrphans(ctx context.Context, grace time.Duration) (int64, error) {
	if grace < 0 {
		grace = 0
	}
	removed, err := s.repo.DeleteOrphans(ctx, s.now().Add(-grace))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sweeping orphan source files")
	}
	return removed, nil
}
