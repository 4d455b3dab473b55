package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/sentinel/internal/adapters/storage"
	"github.com/alejandrodnm/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRun(tipID string, at time.Time) domain.PipelineRun {
	return domain.PipelineRun{
		TipID:       tipID,
		UserID:      "alice",
		Tip:         "Samsung Pay integrates KRWQ",
		RawResponse: `{"verified": true, "confidence": 85}`,
		StartedAt:   at,
		Duration:    1500 * time.Millisecond,
		Verified:    true,
		Confidence:  85,
	}
}

func TestSQLiteJournal_RecordAndRecent(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:", storage.Options{})
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, j.RecordRun(ctx, makeRun("tip_1", now.Add(-2*time.Second))))
	require.NoError(t, j.RecordRun(ctx, makeRun("tip_2", now.Add(-time.Second))))

	failed := makeRun("tip_3", now)
	failed.RawResponse = ""
	failed.Err = "upstream 503"
	failed.Verified = false
	failed.Confidence = 0
	require.NoError(t, j.RecordRun(ctx, failed))

	runs, err := j.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// la más nueva primero
	assert.Equal(t, "tip_3", runs[0].TipID)
	assert.Equal(t, "upstream 503", runs[0].Err)
	assert.False(t, runs[0].Verified)

	assert.Equal(t, "tip_2", runs[1].TipID)
	assert.True(t, runs[1].Verified)
	assert.Equal(t, 85, runs[1].Confidence)
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.True(t, now.Add(-time.Second).Equal(runs[1].StartedAt))
	assert.Equal(t, `{"verified": true, "confidence": 85}`, runs[1].RawResponse)
}

func TestSQLiteJournal_Limit(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:", storage.Options{})
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.RecordRun(ctx, makeRun(fmt.Sprintf("tip_%d", i), base.Add(time.Duration(i)*time.Second))))
	}
	runs, err := j.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "tip_4", runs[0].TipID)
	assert.Equal(t, "tip_3", runs[1].TipID)
}

func TestSQLiteJournal_Empty(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:", storage.Options{})
	require.NoError(t, err)
	defer j.Close()

	runs, err := j.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteJournal_PrunesOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	j, err := storage.NewSQLiteJournal(path, storage.Options{})
	require.NoError(t, err)
	require.NoError(t, j.RecordRun(ctx, makeRun("old", time.Now().UTC().Add(-48*time.Hour))))
	require.NoError(t, j.RecordRun(ctx, makeRun("fresh", time.Now().UTC())))
	require.NoError(t, j.Close())

	j, err = storage.NewSQLiteJournal(path, storage.Options{Retention: 24 * time.Hour})
	require.NoError(t, err)
	defer j.Close()

	runs, err := j.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fresh", runs[0].TipID)
}

func TestSQLiteJournal_MaxRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	j, err := storage.NewSQLiteJournal(path, storage.Options{})
	require.NoError(t, err)
	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		require.NoError(t, j.RecordRun(ctx, makeRun(fmt.Sprintf("tip_%d", i), base.Add(time.Duration(i)*time.Millisecond))))
	}
	require.NoError(t, j.Close())

	j, err = storage.NewSQLiteJournal(path, storage.Options{MaxRows: 3})
	require.NoError(t, err)
	defer j.Close()

	runs, err := j.RecentRuns(ctx, 100)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "tip_9", runs[0].TipID)
}
