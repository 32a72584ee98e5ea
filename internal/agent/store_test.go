package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/model"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	resp := &model.BillAnalysisResponse{RequestID: "r1", Status: model.StatusCompleted}
	store.Put("r1", resp)

	got, ok := store.Get("r1")
	require.True(t, ok)
	assert.Same(t, resp, got)

	replacement := &model.BillAnalysisResponse{RequestID: "r1", Status: model.StatusError}
	store.Put("r1", replacement)
	got, _ = store.Get("r1")
	assert.Equal(t, model.StatusError, got.Status)

	_, ok = store.Get("missing")
	assert.False(t, ok)

	store.Delete("r1")
	_, ok = store.Get("r1")
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put("old", &model.BillAnalysisResponse{RequestID: "old"})
	now = now.Add(30 * time.Second)
	store.Put("new", &model.BillAnalysisResponse{RequestID: "new"})
	now = now.Add(45 * time.Second)

	_, ok := store.Get("old")
	assert.False(t, ok)
	_, ok = store.Get("new")
	assert.True(t, ok)

	store.evictExpired()
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	store := NewMemoryStore(0)
	store.Close()
	assert.NotPanics(t, store.Close)
}
