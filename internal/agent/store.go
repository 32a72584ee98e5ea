package agent

import (
	"sync"
	"time"

	"github.com/Veraticus/billsplit/internal/model"
)

// ResponseStore keeps the last response seen for each request id.
type ResponseStore interface {
	Get(requestID string) (*model.BillAnalysisResponse, bool)
	Put(requestID string, resp *model.BillAnalysisResponse)
	Delete(requestID string)
}

type storeEntry struct {
	expiry   time.Time
	response *model.BillAnalysisResponse
}

// MemoryStore is a process-local ResponseStore. Entries expire after a fixed
// TTL and are swept periodically.
type MemoryStore struct {
	entries map[string]storeEntry
	stopCh  chan struct{}
	now     func() time.Time
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

// NewMemoryStore creates a store whose entries live for ttl (default 30m).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &MemoryStore{
		entries: make(map[string]storeEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
		ttl:     ttl,
	}

	go s.cleanup(min(ttl, 5*time.Minute))

	return s
}

// Get returns the response for requestID if present and not expired.
func (s *MemoryStore) Get(requestID string) (*model.BillAnalysisResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[requestID]
	if !ok || s.now().After(entry.expiry) {
		return nil, false
	}
	return entry.response, true
}

// Put stores resp, replacing any earlier response for the same id.
func (s *MemoryStore) Put(requestID string, resp *model.BillAnalysisResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[requestID] = storeEntry{
		response: resp,
		expiry:   s.now().Add(s.ttl),
	}
}

// Delete removes the entry for requestID.
func (s *MemoryStore) Delete(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, requestID)
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, entry := range s.entries {
		if now.After(entry.expiry) {
			delete(s.entries, id)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stopCh) })
}
