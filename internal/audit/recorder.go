package audit

import (
	"sync"

	"github.com/acted/rules-engine/internal/metrics"
	"go.uber.org/zap"
)

// Recorder hands execution records to a store without ever failing the caller
type Recorder interface {
	Record(rec Record)
}

// SyncRecorder writes each record before returning
type SyncRecorder struct {
	repo Repository
}

// NewSyncRecorder returns a new SyncRecorder
func NewSyncRecorder(repo Repository) *SyncRecorder {
	return &SyncRecorder{repo: repo}
}

// Record writes rec, logging any failure
func (r *SyncRecorder) Record(rec Record) {
	write(r.repo, rec)
}

func write(repo Repository, rec Record) {
	if repo == nil {
		metrics.AuditWriteFailures.Inc()
		zap.L().Error("No audit repository, execution record lost", zap.String("executionID", rec.ExecutionID))
		return
	}
	if err := repo.Create(rec); err != nil {
		metrics.AuditWriteFailures.Inc()
		zap.L().Error("Couldn't write the execution record", zap.String("executionID", rec.ExecutionID),
			zap.String("entryPoint", rec.EntryPoint), zap.Error(err))
	}
}

// AsyncRecorder writes records from a single background worker, in submission order.
// Record blocks when the queue is full rather than dropping a record.
type AsyncRecorder struct {
	repo   Repository
	data   chan Record
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewAsyncRecorder returns a started AsyncRecorder with a queue of the given size
func NewAsyncRecorder(repo Repository, queueSize int) *AsyncRecorder {
	if queueSize <= 0 {
		queueSize = 1
	}
	r := &AsyncRecorder{
		repo: repo,
		data: make(chan Record, queueSize),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *AsyncRecorder) run() {
	zap.L().Info("Starting AsyncRecorder")
	defer close(r.done)

	for rec := range r.data {
		write(r.repo, rec)
		metrics.AuditQueue.Set(float64(len(r.data)))
	}
}

// Record queues rec. Records submitted after Close are logged and counted as lost.
func (r *AsyncRecorder) Record(rec Record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.AuditWriteFailures.Inc()
		zap.L().Error("AsyncRecorder is closed, execution record lost", zap.String("executionID", rec.ExecutionID),
			zap.String("entryPoint", rec.EntryPoint))
		return
	}
	if len(r.data) == cap(r.data) {
		zap.L().Warn("Audit queue is full, waiting for the writer", zap.Int("size", cap(r.data)))
	}
	r.data <- rec
	metrics.AuditQueue.Set(float64(len(r.data)))
}

// Close stops accepting records and waits until every queued record is written
func (r *AsyncRecorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.data)
	}
	r.mu.Unlock()
	<-r.done
}
