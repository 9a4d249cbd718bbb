package storage

import (
	"testing"
	"time"

	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisCacheTTL(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), false, quietLogger())
	require.NoError(t, err)

	clock := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	cache := NewAnalysisCache(fs, time.Hour, quietLogger())
	cache.now = func() time.Time { return clock }

	miss, err := cache.Get("scan-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	a := &models.AIAnalysis{ID: "an-1", ScanID: "scan-1", Provider: "ollama",
		Analysis: models.AnalysisBody{Summary: "Two issues."}}
	require.NoError(t, cache.Put(a))

	got, err := cache.Get("scan-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Two issues.", got.Analysis.Summary)

	// a second cache over the same store reads the persisted copy
	other := NewAnalysisCache(fs, time.Hour, quietLogger())
	other.now = func() time.Time { return clock.Add(30 * time.Minute) }
	got, err = other.Get("scan-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "an-1", got.ID)

	clock = clock.Add(2 * time.Hour)
	got, err = cache.Get("scan-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err := cache.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = fs.Get("analysis_scan-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnalysisCacheInvalidate(t *testing.T) {
	sq, err := NewSQLiteStore(t.TempDir(), quietLogger())
	require.NoError(t, err)
	defer sq.Close()

	cache := NewAnalysisCache(sq, 0, quietLogger())
	require.NoError(t, cache.Put(&models.AIAnalysis{ID: "a", ScanID: "s"}))
	require.NoError(t, cache.Invalidate("s"))
	got, err := cache.Get("s")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, cache.Put(&models.AIAnalysis{ID: "orphan"}))
}
