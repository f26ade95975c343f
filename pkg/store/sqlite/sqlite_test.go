package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/tierroute/pkg/classifier"
	"github.com/zen-systems/tierroute/pkg/router"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(id, backend string, ts time.Time, cost float64) router.DecisionRecord {
	return router.DecisionRecord{
		ID:            id,
		Timestamp:     ts,
		PromptPreview: "What is 2+2?",
		Tier:          classifier.TierSimple,
		Rationale:     "Short prompt with no complex keywords.",
		Backend:       backend,
		CostUSD:       cost,
		TokensUsed:    23,
		LatencyMs:     101.25,
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("r%d", i), "phi-3-mini", base.Add(time.Duration(i)*time.Second), 0.001)
		require.NoError(t, s.Append(ctx, rec))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r2", recent[0].ID)
	assert.Equal(t, "r1", recent[1].ID)

	got := recent[0]
	assert.Equal(t, base.Add(2*time.Second), got.Timestamp)
	assert.Equal(t, classifier.TierSimple, got.Tier)
	assert.Equal(t, "What is 2+2?", got.PromptPreview)
	assert.Equal(t, 23, got.TokensUsed)
	assert.InDelta(t, 101.25, got.LatencyMs, 1e-9)
	require.NoError(t, got.Validate())
}

func TestAppendDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := testRecord("dup", "gpt-4o", time.Now(), 0.01)

	require.NoError(t, s.Append(ctx, rec))
	assert.Error(t, s.Append(ctx, rec))
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalRequests)
	assert.Empty(t, empty.Breakdown)

	now := time.Now()
	require.NoError(t, s.Append(ctx, testRecord("a", "phi-3-mini", now, 0.0001)))
	require.NoError(t, s.Append(ctx, testRecord("b", "gpt-4o", now, 0.003)))
	require.NoError(t, s.Append(ctx, testRecord("c", "gpt-4o", now, 0.002)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRequests)
	assert.InDelta(t, 0.0051, stats.TotalCostUSD, 1e-12)
	assert.Equal(t, 2, stats.Breakdown["gpt-4o"].Count)
	assert.InDelta(t, 0.005, stats.Breakdown["gpt-4o"].CostUSD, 1e-12)
	assert.Equal(t, 1, stats.Breakdown["phi-3-mini"].Count)
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Append(ctx, testRecord("old", "phi-3-mini", now.Add(-40*24*time.Hour), 0)))
	require.NoError(t, s.Append(ctx, testRecord("new", "phi-3-mini", now, 0)))

	n, err := s.Cleanup(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)
}

func TestConcurrentAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(ctx, testRecord(fmt.Sprintf("c%d", i), "llama-3", time.Now(), 0.001)))
		}(i)
	}
	wg.Wait()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalRequests)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, testRecord("kept", "gpt-4o", time.Now(), 0.01)))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "kept", recent[0].ID)
}
