package cron

import (
	"context"
	"testing"
	"time"

	"github.com/oskarlind/groceryledger-backend/internal/sourcefiles"
	"github.com/oskarlind/groceryledger-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnceSweepsOrphans(t *testing.T) {
	conn := testutil.OpenDB(t)
	sources, err := sourcefiles.NewRegistry(sourcefiles.NewRepository(conn))
	require.NoError(t, err)

	job, err := NewOrphanSweepJob(sources, time.Minute, time.Nanosecond, nil, nil)
	require.NoError(t, err)

	testutil.MustCreateSourceFile(t, conn, []byte("never imported"))

	// Let the upload age past the grace cutoff.
	time.Sleep(5 * time.Millisecond)
	job.RunOnce(context.Background())

	var files int64
	require.NoError(t, conn.Table("source_files").Count(&files).Error)
	assert.Zero(t, files)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	conn := testutil.OpenDB(t)
	sources, err := sourcefiles.NewRegistry(sourcefiles.NewRepository(conn))
	require.NoError(t, err)

	job, err := NewOrphanSweepJob(sources, time.Millisecond, time.Hour, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop after cancellation")
	}
}
