package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/billsplit/internal/metrics"
	"github.com/Veraticus/billsplit/internal/model"
	"github.com/Veraticus/billsplit/internal/service"
)

// DefaultCorrelationTimeout is how long a routed request may wait for its
// response before it is marked as timed out.
const DefaultCorrelationTimeout = 2 * time.Minute

// orphanRetention is how long expired ids are remembered so late responses
// can be recognized and dropped.
const orphanRetention = time.Hour

// ResultRecorder persists the outcome of a request.
type ResultRecorder interface {
	SaveBillResult(ctx context.Context, result *service.BillResult) (*service.BillResult, error)
	GetBillResult(ctx context.Context, requestID string) (*service.BillResult, error)
}

type pendingRequest struct {
	deadline time.Time
	target   string
}

// Tracker correlates routed requests with their responses. A request that
// does not see a response before its deadline gets an error response recorded,
// and a response that arrives afterwards is an orphan.
type Tracker struct {
	pending  map[string]pendingRequest
	expired  map[string]time.Time
	store    ResponseStore
	recorder ResultRecorder
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration
	mu       sync.Mutex
}

// NewTracker creates a tracker. store and recorder may be nil.
func NewTracker(timeout time.Duration, store ResponseStore, recorder ResultRecorder, logger *slog.Logger) *Tracker {
	if timeout <= 0 {
		timeout = DefaultCorrelationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		pending:  make(map[string]pendingRequest),
		expired:  make(map[string]time.Time),
		store:    store,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		timeout:  timeout,
	}
}

// Track starts the clock for requestID.
func (t *Tracker) Track(requestID, target string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.expired, requestID)
	t.pending[requestID] = pendingRequest{target: target, deadline: t.now().Add(t.timeout)}
}

// Resolve marks requestID as answered. It returns false for an orphan: a
// response to a request that already timed out. Ids the tracker never saw
// are accepted.
func (t *Tracker) Resolve(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[requestID]; ok {
		delete(t.pending, requestID)
		return true
	}
	if _, ok := t.expired[requestID]; ok {
		t.logger.Warn("Dropping orphaned response", "request_id", requestID)
		metrics.ObserveAgentMessage(string(KindResponse), metrics.OutcomeOrphan, nil)
		return false
	}
	return true
}

// Forget drops requestID without marking it expired, for requests that were
// never delivered.
func (t *Tracker) Forget(requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, requestID)
}

// Pending reports whether requestID is still waiting for a response.
func (t *Tracker) Pending(requestID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[requestID]
	return ok
}

// Sweep expires overdue requests and returns their ids.
func (t *Tracker) Sweep(ctx context.Context) []string {
	t.mu.Lock()
	now := t.now()
	var timedOut []string
	for id, p := range t.pending {
		if now.After(p.deadline) {
			timedOut = append(timedOut, id)
			delete(t.pending, id)
			t.expired[id] = now.Add(orphanRetention)
		}
	}
	for id, forgetAt := range t.expired {
		if now.After(forgetAt) {
			delete(t.expired, id)
		}
	}
	t.mu.Unlock()

	for _, id := range timedOut {
		t.recordTimeout(ctx, id)
	}
	return timedOut
}

func (t *Tracker) recordTimeout(ctx context.Context, requestID string) {
	msg := fmt.Sprintf("no response within %s", t.timeout)
	t.logger.Warn("Request timed out", "request_id", requestID, "timeout", t.timeout)

	resp := &model.BillAnalysisResponse{
		RequestID: requestID,
		Status:    model.StatusError,
		Error:     msg,
		Items:     []model.BillItem{},
		Metadata:  map[string]any{},
		Currency:  "USD",
		Timestamp: t.now().UTC(),
	}
	if t.store != nil {
		t.store.Put(requestID, resp)
	}
	if t.recorder != nil {
		_, err := t.recorder.SaveBillResult(ctx, &service.BillResult{
			RequestID: requestID,
			Status:    model.StatusError,
			Error:     msg,
			Response:  resp,
		})
		if err != nil {
			t.logger.Error("Failed to record timeout", "request_id", requestID, "error", err)
		}
	}
}

// Run sweeps every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = min(t.timeout/4, 15*time.Second)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}
