// Package audit appends an immutable record for every committed insert or
// update of escrow and deal rows.
//
// Writes happen after the business transaction commits and are dispatched to
// a background goroutine; the request path never waits on them. This is a
// deliberate trade-off: a crash between commit and audit write loses that
// entry, and operators should treat the trail as best-effort rather than
// transactionally complete.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daladan/settlement/internal/domain"
)

type Event struct {
	Action    domain.AuditAction
	TableName string
	RecordID  string
	Changes   map[string]domain.FieldChange
	Snapshot  Snapshot
}

type entryStore interface {
	Insert(ctx context.Context, entry *domain.AuditLogEntry) error
}

// Recorder consumes audit events from a bounded queue and persists them.
// It is constructed explicitly at startup and stopped by cancelling the
// Start context; there is no package-level singleton.
type Recorder struct {
	store  entryStore
	logger *slog.Logger
	queue  chan Event

	closeOnce sync.Once
	done      chan struct{}
}

func NewRecorder(store entryStore, logger *slog.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Recorder{
		store:  store,
		logger: logger,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Start runs the write loop until ctx is cancelled, then drains whatever is
// still queued before returning.
func (r *Recorder) Start(ctx context.Context) {
	defer close(r.done)
	r.logger.Info("audit recorder started", "queue_size", cap(r.queue))

	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		case <-ctx.Done():
			r.drain()
			r.logger.Info("audit recorder stopped")
			return
		}
	}
}

// Record enqueues one event. It never blocks: if the queue is full the event
// is dropped with a warning, because audit writes must not stall or fail the
// business operation that already committed.
func (r *Recorder) Record(ev Event) {
	select {
	case r.queue <- ev:
	default:
		r.logger.Warn("audit queue full, dropping event",
			"table", ev.TableName,
			"record_id", ev.RecordID,
			"action", ev.Action,
		)
	}
}

// RecordInsert captures a freshly committed row: empty diff, full snapshot.
func (r *Recorder) RecordInsert(tableName, recordID string, snapshot Snapshot) {
	r.Record(Event{
		Action:    domain.AuditActionInsert,
		TableName: tableName,
		RecordID:  recordID,
		Changes:   map[string]domain.FieldChange{},
		Snapshot:  snapshot,
	})
}

// RecordUpdate captures a committed mutation as a field-level diff plus the
// post-mutation snapshot. An empty diff is still recorded.
func (r *Recorder) RecordUpdate(tableName, recordID string, before, after Snapshot) {
	r.Record(Event{
		Action:    domain.AuditActionUpdate,
		TableName: tableName,
		RecordID:  recordID,
		Changes:   Diff(before, after),
		Snapshot:  after,
	})
}

// Wait blocks until the write loop has exited. Call after cancelling the
// Start context to let shutdown flush the queue.
func (r *Recorder) Wait() {
	<-r.done
}

func (r *Recorder) drain() {
	for {
		select {
		case ev := <-r.queue:
			r.write(ev)
		default:
			return
		}
	}
}

func (r *Recorder) write(ev Event) {
	entry := &domain.AuditLogEntry{
		ID:        uuid.New(),
		Action:    ev.Action,
		TableName: ev.TableName,
		RecordID:  ev.RecordID,
		Changes:   ev.Changes,
		Snapshot:  map[string]*string(ev.Snapshot),
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A failed audit write is logged and swallowed; the business transaction
	// it describes has already committed.
	if err := r.store.Insert(ctx, entry); err != nil {
		r.logger.Error("failed to write audit entry",
			"table", ev.TableName,
			"record_id", ev.RecordID,
			"action", ev.Action,
			"error", err,
		)
		return
	}

	r.logger.Info("audit entry recorded",
		"table", ev.TableName,
		"record_id", ev.RecordID,
		"action", ev.Action,
		"changed_fields", len(ev.Changes),
	)
}
