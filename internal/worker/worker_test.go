package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/entrybrain/internal/config"
)

func testConfig() config.WorkerConfig {
	return config.WorkerConfig{
		Concurrency:    2,
		SoftTimeLimit:  time.Second,
		MaxRetries:     3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		BatchSize:      10,
	}
}

type fakeHandler struct {
	mu        sync.Mutex
	failFirst int
	attempts  map[int64]int
	exhausted map[int64]error
	deadlines []bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newFakeHandler(failFirst int) *fakeHandler {
	return &fakeHandler{
		failFirst: failFirst,
		attempts:  map[int64]int{},
		exhausted: map[int64]error{},
	}
}

func (h *fakeHandler) Analyze(ctx context.Context, id int64) (string, error) {
	n := h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	for {
		cur := h.maxInFlight.Load()
		if n <= cur || h.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if h.delay > 0 {
		time.Sleep(h.delay)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[id]++
	_, hasDeadline := ctx.Deadline()
	h.deadlines = append(h.deadlines, hasDeadline)
	if h.attempts[id] <= h.failFirst {
		return "", fmt.Errorf("attempt %d: database is locked", h.attempts[id])
	}
	return fmt.Sprintf("Entry %d: approve (90%%)", id), nil
}

func (h *fakeHandler) Exhausted(_ context.Context, id int64, cause error) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exhausted[id] = cause
	return fmt.Sprintf("Entry %d: Max retries exceeded.", id)
}

func TestProcess_SucceedsFirstTime(t *testing.T) {
	t.Parallel()

	h := newFakeHandler(0)
	status, err := New(h, testConfig()).Process(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Entry 1: approve (90%)", status)
	assert.Equal(t, 1, h.attempts[1])
	assert.Equal(t, []bool{true}, h.deadlines)
}

func TestProcess_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	h := newFakeHandler(2)
	status, err := New(h, testConfig()).Process(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Entry 1: approve (90%)", status)
	assert.Equal(t, 3, h.attempts[1])
	assert.Empty(t, h.exhausted)
}

func TestProcess_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	h := newFakeHandler(100)
	status, err := New(h, testConfig()).Process(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Entry 5: Max retries exceeded.", status)
	assert.Equal(t, 4, h.attempts[5])
	require.Contains(t, h.exhausted, int64(5))
	assert.Contains(t, h.exhausted[5].Error(), "attempt 4")
}

func TestProcess_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.BackoffInitial = time.Hour
	cfg.BackoffMax = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	h := newFakeHandler(100)
	done := make(chan error, 1)
	go func() {
		_, err := New(h, cfg).Process(ctx, 1)
		done <- err
	}()

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.attempts[1] == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Process did not return after cancellation")
	}
	assert.Empty(t, h.exhausted)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	h := newFakeHandler(0)
	h.delay = 10 * time.Millisecond
	ids := []int64{1, 2, 3, 4, 5, 6}

	statuses, err := New(h, testConfig()).Run(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, statuses, len(ids))
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("Entry %d: approve (90%%)", id), statuses[i])
	}
	assert.LessOrEqual(t, h.maxInFlight.Load(), int32(2))
}

type fakeSource struct {
	mu      sync.Mutex
	batches [][]int64
	calls   int
}

func (s *fakeSource) PendingEntryIDs(_ context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	if len(b) > limit {
		b = b[:limit]
	}
	return b, nil
}

func TestPoll_DrainsUntilCancelled(t *testing.T) {
	t.Parallel()

	h := newFakeHandler(0)
	src := &fakeSource{batches: [][]int64{{1, 2}, {3}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(h, testConfig()).Poll(ctx, src) }()

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.attempts) == 3
	}, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.GreaterOrEqual(t, src.calls, 2)
}
