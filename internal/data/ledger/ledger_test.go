package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedgerRecordAndRecent(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	runs := []Run{
		{RunID: "r1", Flow: "refine", Scope: "alpha", StartedAt: base, FinishedAt: base.Add(time.Minute), Items: 4, Batches: 2, Status: StatusOK},
		{RunID: "r2", Flow: "digest", Scope: "daily", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second), Items: 3, Status: StatusOK},
		{RunID: "r3", Flow: "refine", Scope: "beta", StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2 * time.Hour), Status: StatusFailed, ErrorKind: "rate_limited", Message: "slow down"},
	}
	for _, r := range runs {
		require.NoError(t, l.Record(ctx, r))
	}

	all, err := l.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].RunID)
	assert.Equal(t, "rate_limited", all[0].ErrorKind)
	assert.Equal(t, "r1", all[2].RunID)
	assert.Equal(t, time.Minute, all[2].Duration())
	assert.Equal(t, 2, all[2].Batches)

	refine, err := l.Recent(ctx, "refine", 1)
	require.NoError(t, err)
	require.Len(t, refine, 1)
	assert.Equal(t, "r3", refine[0].RunID)
}

func TestLedgerRecordReplaces(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, l.Record(ctx, Run{RunID: "r1", Flow: "memories", StartedAt: now, FinishedAt: now, Status: StatusPartial}))
	require.NoError(t, l.Record(ctx, Run{RunID: "r1", Flow: "memories", StartedAt: now, FinishedAt: now, Status: StatusOK}))

	runs, err := l.Recent(ctx, "memories", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusOK, runs[0].Status)
}

func TestLedgerLastSuccess(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	none, err := l.LastSuccess(ctx, "refine", "alpha")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, l.Record(ctx, Run{RunID: "a", Flow: "refine", Scope: "alpha", StartedAt: base, FinishedAt: base, Status: StatusOK}))
	require.NoError(t, l.Record(ctx, Run{RunID: "b", Flow: "refine", Scope: "alpha", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour), Status: StatusFailed}))

	last, err := l.LastSuccess(ctx, "refine", "alpha")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "a", last.RunID)
	assert.True(t, last.StartedAt.Equal(base))
}
