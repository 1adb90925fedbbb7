package seed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmrzaf/termwatch/internal/domain"
	"github.com/mmrzaf/termwatch/internal/infra/repos/runs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *runs.Store {
	t.Helper()
	repo := runs.NewSQLiteRepository(filepath.Join(t.TempDir(), "seed.db"))
	_, err := repo.Init(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo.Store
}

func TestSeedWritesConsistentHistory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	res, err := NewGenerator(store, 42).Seed(ctx, Options{Runs: 12, Interval: 24 * time.Hour, FailureRate: 0.3, Now: now})
	require.NoError(t, err)
	assert.Equal(t, 12, res.Runs)
	assert.GreaterOrEqual(t, res.Steps, 24)

	counts, err := store.RunCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, counts.Total)

	nErrors, err := store.CountErrors(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Errors, nErrors)
	assert.Equal(t, 12-counts.Successful, res.Errors)

	releases, err := store.ListReleases(ctx, "", 50)
	require.NoError(t, err)
	assert.Len(t, releases, res.Releases)
	for _, rel := range releases {
		assert.Contains(t, []string{SnomedItemName, DmdItemName}, rel.ItemName)
		assert.NotNil(t, rel.DownloadedDate)
		require.NotNil(t, rel.ImportSuccess)
	}

	summaries, err := store.ListSummaries(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 12)
	assert.True(t, summaries[0].StartTime.Equal(now.Truncate(time.Second)))
	for _, s := range summaries {
		// Every generated run checks both terminologies.
		assert.NotNil(t, s.SnomedSuccess)
		assert.NotNil(t, s.DmdSuccess)
		assert.NotNil(t, s.SnomedVersion)
		assert.NotNil(t, s.DurationFormatted)
	}
}

func TestSeedFailureRateExtremes(t *testing.T) {
	ctx := context.Background()

	healthy := newStore(t)
	res, err := NewGenerator(healthy, 1).Seed(ctx, Options{Runs: 5, FailureRate: 0})
	require.NoError(t, err)
	assert.Zero(t, res.Errors)
	summaries, err := healthy.ListSummaries(ctx, 10, 0)
	require.NoError(t, err)
	for _, s := range summaries {
		assert.True(t, s.OverallSuccess)
	}

	broken := newStore(t)
	res, err = NewGenerator(broken, 1).Seed(ctx, Options{Runs: 5, FailureRate: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Errors)
	summaries, err = broken.ListSummaries(ctx, 10, 0)
	require.NoError(t, err)
	for _, s := range summaries {
		assert.False(t, s.OverallSuccess)
		assert.Equal(t, 1, s.ErrorCount)
	}
}

func TestSeedRejectsNonPositiveRuns(t *testing.T) {
	_, err := NewGenerator(newStore(t), 1).Seed(context.Background(), Options{Runs: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSeedIsReproducibleFromGeneratorSeed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	opts := Options{Runs: 8, FailureRate: 0.4, Now: now}

	first, err := NewGenerator(newStore(t), 7).Seed(ctx, opts)
	require.NoError(t, err)
	second, err := NewGenerator(newStore(t), 7).Seed(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
