package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit_UnderCeilingIsImmediate(t *testing.T) {
	l := New()
	l.Register("orders", 5, time.Second)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(context.Background(), "orders"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 5, l.CurrentCount("orders"))
}

func TestAdmit_CeilingInvariantUnderConcurrency(t *testing.T) {
	const (
		max    = 5
		window = 200 * time.Millisecond
		calls  = 20
	)

	l := New()
	l.Register("orders", max, window)

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Admit(context.Background(), "orders"))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, times, calls)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	// No window of `window` duration may contain more than `max` admissions:
	// admission i+max must start at least one window after admission i.
	// A small epsilon absorbs the gap between admission and the recorded
	// observation time.
	const epsilon = 20 * time.Millisecond
	for i := 0; i+max < len(times); i++ {
		gap := times[i+max].Sub(times[i])
		assert.GreaterOrEqual(t, gap, window-epsilon,
			"admissions %d and %d only %v apart", i, i+max, gap)
	}
}

func TestAdmit_EventualAdmission(t *testing.T) {
	l := New()
	l.Register("orders", 1, 50*time.Millisecond)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = l.Admit(context.Background(), "orders")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("admissions did not all complete")
	}
}

func TestAdmit_WaitsForWindowRollover(t *testing.T) {
	l := New()
	l.Register("orders", 1, 150*time.Millisecond)

	require.NoError(t, l.Admit(context.Background(), "orders"))

	start := time.Now()
	require.NoError(t, l.Admit(context.Background(), "orders"))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAdmit_ContextCancellation(t *testing.T) {
	l := New()
	l.Register("orders", 1, time.Minute)
	require.NoError(t, l.Admit(context.Background(), "orders"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := l.Admit(ctx, "orders")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegisterBurst_AllowsHeadroom(t *testing.T) {
	l := New()
	l.RegisterBurst("orders", 2, time.Second, 4)

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Admit(context.Background(), "orders"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 4, l.CurrentCount("orders"))
}

func TestRegister_LastRegistrationWins(t *testing.T) {
	l := New()
	l.Register("orders", 1, time.Minute)
	require.NoError(t, l.Admit(context.Background(), "orders"))

	l.Register("orders", 10, time.Minute)
	assert.Equal(t, 0, l.CurrentCount("orders"))

	start := time.Now()
	require.NoError(t, l.Admit(context.Background(), "orders"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAdmit_UnregisteredBucketIsNoop(t *testing.T) {
	l := New()
	require.NoError(t, l.Admit(context.Background(), "missing"))
	assert.Equal(t, 0, l.CurrentCount("missing"))
}

func TestCurrentCount_PrunesWithoutRecording(t *testing.T) {
	l := New()
	l.Register("orders", 5, 80*time.Millisecond)

	require.NoError(t, l.Admit(context.Background(), "orders"))
	require.NoError(t, l.Admit(context.Background(), "orders"))
	assert.Equal(t, 2, l.CurrentCount("orders"))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 0, l.CurrentCount("orders"))
}
