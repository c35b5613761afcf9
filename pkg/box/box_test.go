package box

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/dependency"
)

func rec(hash string) *dependency.Record {
	return dependency.FromInfo(hash, "/lib/"+hash+".jar", &archive.Info{}, dependency.Options{})
}

func TestBox_TakeAndSettle(t *testing.T) {
	a := rec("a")
	b := New(a)
	assert.False(t, b.IsDone())

	got, ok := b.TakeProcessing()
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = b.TakeProcessing()
	assert.False(t, ok)
	assert.False(t, b.IsDone(), "a checked out record is outstanding work")

	require.NoError(t, b.Settle(a))
	assert.True(t, b.IsDone())
	st, _ := b.State("a")
	assert.Equal(t, Settled, st)
}

func TestBox_SettleNotCheckedOut(t *testing.T) {
	a := rec("a")
	b := New(a)
	assert.ErrorIs(t, b.Settle(a), ErrNotCheckedOut)
	assert.ErrorIs(t, b.Settle(rec("unknown")), ErrNotCheckedOut)

	_, _ = b.TakeProcessing()
	require.NoError(t, b.Settle(a))
	assert.ErrorIs(t, b.Settle(a), ErrNotCheckedOut)
}

func TestBox_PendingDisposition(t *testing.T) {
	a := rec("a")
	b := New(a)
	_, _ = b.TakeProcessing()

	b.EnqueueEscalation(a)
	st, _ := b.State("a")
	assert.Equal(t, CheckedOut, st, "enqueue during checkout is deferred")
	_, ok := b.TakeEscalation()
	assert.False(t, ok)

	require.NoError(t, b.Settle(a))
	st, _ = b.State("a")
	assert.Equal(t, Escalated, st)

	got, ok := b.TakeEscalation()
	require.True(t, ok)
	assert.Same(t, a, got)
	b.EnqueueEscalation(a)
	b.EnqueueProcessing(a)
	require.NoError(t, b.Settle(a))
	st, _ = b.State("a")
	assert.Equal(t, Queued, st, "last disposition wins")
}

func TestBox_EnqueueKnownIsNoop(t *testing.T) {
	a := rec("a")
	b := New(a)
	b.EnqueueEscalation(a)
	st, _ := b.State("a")
	assert.Equal(t, Queued, st)

	_, _ = b.TakeProcessing()
	require.NoError(t, b.Settle(a))
	b.EnqueueProcessing(a)
	st, _ = b.State("a")
	assert.Equal(t, Settled, st)

	// same content under another path is the same dependency
	b.EnqueueProcessing(rec("a"))
	assert.Equal(t, 1, b.Stats().Total)
}

func TestBox_Drain(t *testing.T) {
	b := New()
	for i := range 3 {
		b.EnqueueEscalation(rec(fmt.Sprint(i)))
	}
	b.EnqueueProcessing(rec("q"))

	assert.Equal(t, 3, b.DrainEscalationIntoProcessing())
	assert.Equal(t, Stats{Total: 4, Queued: 4}, b.Stats())
	_, ok := b.TakeEscalation()
	assert.False(t, ok)
}

func TestBox_Stats(t *testing.T) {
	b := New(rec("a"), rec("b"), rec("c"))
	b.EnqueueEscalation(rec("d"))
	x, _ := b.TakeProcessing()
	_, _ = b.TakeProcessing()
	require.NoError(t, b.Settle(x))

	assert.Equal(t, Stats{Total: 4, Queued: 1, Escalated: 1, CheckedOut: 1, Settled: 1}, b.Stats())
}

func TestBox_ConcurrentWorkersDrainEverything(t *testing.T) {
	b := New()
	for i := range 200 {
		b.EnqueueProcessing(rec(fmt.Sprint(i)))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]int)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !b.IsDone() {
				r, ok := b.TakeProcessing()
				if !ok {
					continue
				}
				mu.Lock()
				seen[r.Hash]++
				first := seen[r.Hash] == 1
				mu.Unlock()
				if first {
					// requeue once to exercise pending dispositions
					b.EnqueueProcessing(r)
				}
				if err := b.Settle(r); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 200)
	for h, n := range seen {
		assert.Equal(t, 2, n, h)
	}
	assert.Equal(t, 200, b.Stats().Settled)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "checked-out", CheckedOut.String())
	assert.Equal(t, "unknown", State(0).String())
}
