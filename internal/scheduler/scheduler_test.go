package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"hourly", time.Hour, false},
		{"Daily", 24 * time.Hour, false},
		{"", 24 * time.Hour, false},
		{"weekly", 7 * 24 * time.Hour, false},
		{"monthly", 30 * 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"-5m", 0, true},
		{"fortnightly", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedulerRunsAndStops(t *testing.T) {
	s := New(context.Background())
	var runs atomic.Int32

	require.NoError(t, s.Start("memories", 10*time.Millisecond, func(context.Context) { runs.Add(1) }))
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "memories", jobs[0].Name)

	s.Stop("memories")
	stopped := runs.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
	assert.Empty(t, s.Jobs())
}

func TestSchedulerDoesNotOverlapRuns(t *testing.T) {
	s := New(context.Background())
	defer s.StopAll()

	var active, maxActive atomic.Int32
	require.NoError(t, s.Start("slow", 5*time.Millisecond, func(context.Context) {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		time.Sleep(30 * time.Millisecond)
		active.Add(-1)
	}))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestSchedulerReplaceAndStopAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx)

	require.NoError(t, s.Start("a", time.Hour, func(context.Context) {}))
	require.NoError(t, s.Start("b", time.Hour, func(context.Context) {}))
	require.NoError(t, s.Start("a", 2*time.Hour, func(context.Context) {}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, 2*time.Hour, jobs[0].Interval)

	assert.Error(t, s.Start("bad", 0, func(context.Context) {}))

	s.StopAll()
	assert.Empty(t, s.Jobs())
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := New(context.Background())
	defer s.StopAll()
	var runs atomic.Int32

	require.NoError(t, s.Start("flaky", 5*time.Millisecond, func(context.Context) {
		runs.Add(1)
		panic("boom")
	}))
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
