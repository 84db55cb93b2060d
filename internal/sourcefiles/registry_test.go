package sourcefiles

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oskarlind/groceryledger-backend/internal/testutil"
	"github.com/oskarlind/groceryledger-backend/pkg/db/models"
	pkgerrors "github.com/oskarlind/groceryledger-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (Registry, Repository) {
	t.Helper()
	repo := NewRepository(testutil.OpenDB(t))
	reg, err := NewRegistry(repo)
	require.NoError(t, err)
	return reg, repo
}

func TestPutStoresAndDeduplicates(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	content := []byte("receipt bytes")

	first, isNew, err := reg.Put(ctx, content, "json_v1")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, HashContent(content), first.ContentHash)
	assert.Equal(t, "json_v1", first.FormatTag)

	second, isNew, err := reg.Put(ctx, content, "json_v1")
	require.NoError(t, err)
	assert.False(t, isNew, "same bytes must dedup")
	assert.Equal(t, first.ID, second.ID)

	other, isNew, err := reg.Put(ctx, []byte("different bytes"), "json_v1")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestPutValidatesInput(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, _, err := reg.Put(ctx, nil, "json_v1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, _, err = reg.Put(ctx, []byte("x"), "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGetAndGetByHash(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	stored, _, err := reg.Put(ctx, []byte("lookup me"), "json_v1")
	require.NoError(t, err)

	byID, err := reg.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ContentHash, byID.ContentHash)
	assert.Equal(t, []byte("lookup me"), byID.Content)

	byHash, err := reg.GetByHash(ctx, stored.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, byHash.ID)

	_, err = reg.Get(ctx, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = reg.GetByHash(ctx, "deadbeef")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestDeleteRemovesRecord(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	stored, _, err := reg.Put(ctx, []byte("to delete"), "json_v1")
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, stored.ID))

	_, err = reg.Get(ctx, stored.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestSweepOrphansKeepsReferencedFiles(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewRepository(db)
	reg, err := NewRegistry(repo)
	require.NoError(t, err)
	ctx := context.Background()

	orphan, _, err := reg.Put(ctx, []byte("orphan"), "json_v1")
	require.NoError(t, err)
	referenced, _, err := reg.Put(ctx, []byte("referenced"), "json_v1")
	require.NoError(t, err)

	receipt := &models.Receipt{
		ID:           "K-1",
		ImportedAt:   time.Now(),
		PurchaseDate: time.Now(),
		StoreID:      uuid.New(),
		SourceFileID: referenced.ID,
	}
	require.NoError(t, db.Create(receipt).Error)

	removed, err := reg.SweepOrphans(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = reg.Get(ctx, orphan.ID)
	require.Error(t, err)
	_, err = reg.Get(ctx, referenced.ID)
	require.NoError(t, err)
}

func TestSweepOrphansHonoursGraceWindow(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, _, err := reg.Put(ctx, []byte("fresh upload"), "json_v1")
	require.NoError(t, err)

	removed, err := reg.SweepOrphans(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed, "fresh uploads stay inside the grace window")
}
