package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daladan/settlement/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []*domain.AuditLogEntry
	err     error
}

func (s *fakeStore) Insert(_ context.Context, entry *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeStore) all() []*domain.AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.AuditLogEntry(nil), s.entries...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_WritesQueuedEvents(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, discardLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	go rec.Start(ctx)

	rec.RecordInsert("escrow_transactions", "rec-1", Snapshot{"status": str("held")})
	rec.RecordUpdate("escrow_transactions", "rec-1",
		Snapshot{"status": str("held")},
		Snapshot{"status": str("funds_released")},
	)

	require.Eventually(t, func() bool {
		return len(store.all()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	rec.Wait()

	entries := store.all()
	assert.Equal(t, domain.AuditActionInsert, entries[0].Action)
	assert.Empty(t, entries[0].Changes)
	assert.Equal(t, "held", *entries[0].Snapshot["status"])

	assert.Equal(t, domain.AuditActionUpdate, entries[1].Action)
	require.Contains(t, entries[1].Changes, "status")
	assert.Equal(t, "held", *entries[1].Changes["status"].Old)
	assert.Equal(t, "funds_released", *entries[1].Changes["status"].New)
}

func TestRecorder_DrainsQueueOnShutdown(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, discardLogger(), 32)

	// Enqueue before the loop runs so shutdown has something to flush.
	for range 10 {
		rec.RecordInsert("deal_groups", "rec", Snapshot{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go rec.Start(ctx)
	rec.Wait()

	assert.Len(t, store.all(), 10)
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, discardLogger(), 2)

	// No consumer running, so only the queue capacity is accepted.
	for range 5 {
		rec.RecordInsert("deal_groups", "rec", Snapshot{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go rec.Start(ctx)
	rec.Wait()

	assert.Len(t, store.all(), 2)
}

func TestRecorder_StoreFailureDoesNotStopLoop(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	rec := NewRecorder(store, discardLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	go rec.Start(ctx)

	rec.RecordInsert("escrow_transactions", "rec-1", Snapshot{})

	// Clear the failure and confirm the loop is still consuming.
	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	rec.RecordInsert("escrow_transactions", "rec-2", Snapshot{})

	require.Eventually(t, func() bool {
		entries := store.all()
		return len(entries) == 1 && entries[0].RecordID == "rec-2"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	rec.Wait()
}

func TestRecorder_DefaultQueueSize(t *testing.T) {
	rec := NewRecorder(&fakeStore{}, discardLogger(), 0)
	assert.Equal(t, 256, cap(rec.queue))
}
