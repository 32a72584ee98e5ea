package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
)

type memoryRecorder struct {
	results map[string]*service.BillResult
	mu      sync.Mutex
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{results: map[string]*service.BillResult{}}
}

func (m *memoryRecorder) SaveBillResult(_ context.Context, r *service.BillResult) (*service.BillResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.results[r.RequestID]; ok && existing.Status == model.StatusCompleted {
		return existing, nil
	}
	if r.Status == model.StatusCompleted && r.Transaction != nil {
		id := int64(len(m.results) + 1)
		r.TransactionID = &id
	}
	m.results[r.RequestID] = r
	return r, nil
}

func (m *memoryRecorder) GetBillResult(_ context.Context, id string) (*service.BillResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: bill result %s", common.ErrNotFound, id)
	}
	return r, nil
}

func (m *memoryRecorder) get(id string) *service.BillResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[id]
}

func TestTracker_ResolveBeforeDeadline(t *testing.T) {
	tr := NewTracker(time.Minute, nil, nil, nil)

	tr.Track("r1", "extractor")
	assert.True(t, tr.Pending("r1"))
	assert.True(t, tr.Resolve("r1"))
	assert.False(t, tr.Pending("r1"))

	assert.True(t, tr.Resolve("never-tracked"))
}

func TestTracker_TimeoutAndOrphan(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	recorder := newMemoryRecorder()

	tr := NewTracker(time.Minute, store, recorder, nil)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	tr.Track("slow", "extractor")
	tr.Track("fast", "extractor")

	now = now.Add(30 * time.Second)
	assert.Empty(t, tr.Sweep(context.Background()))

	now = now.Add(31 * time.Second)
	expired := tr.Sweep(context.Background())
	assert.ElementsMatch(t, []string{"slow", "fast"}, expired)

	resp, ok := store.Get("slow")
	require.True(t, ok)
	assert.Equal(t, model.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "no response within 1m0s")

	result := recorder.get("slow")
	require.NotNil(t, result)
	assert.Equal(t, model.StatusError, result.Status)

	assert.False(t, tr.Resolve("slow"), "late response is an orphan")

	// Orphan markers are forgotten after the retention window.
	now = now.Add(orphanRetention + time.Second)
	tr.Sweep(context.Background())
	assert.True(t, tr.Resolve("fast"))
}

func TestTracker_Forget(t *testing.T) {
	tr := NewTracker(time.Minute, nil, nil, nil)
	tr.Track("r1", "x")
	tr.Forget("r1")
	assert.False(t, tr.Pending("r1"))
	assert.True(t, tr.Resolve("r1"))
}

func TestTracker_RetrackClearsOrphan(t *testing.T) {
	tr := NewTracker(time.Millisecond, nil, nil, nil)
	tr.Track("r1", "x")
	time.Sleep(5 * time.Millisecond)
	tr.Sweep(context.Background())

	tr.Track("r1", "x")
	assert.True(t, tr.Resolve("r1"))
}

func TestTracker_Run(t *testing.T) {
	tr := NewTracker(10*time.Millisecond, nil, nil, nil)
	tr.Track("r1", "x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !tr.Pending("r1") }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.False(t, tr.Resolve("r1"))
}
