package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/metrics"
)

// JobState is the last known status of a job.
type JobState struct {
	Status    constants.JobStatus
	Error     string
	UpdatedAt time.Time
}

// MatchQueue runs match jobs on a fixed pool of workers.
type MatchQueue struct {
	handle  Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool

	statusMu sync.Mutex
	status   map[uuid.UUID]JobState
}

type Option func(*MatchQueue)

func WithWorkers(n int) Option {
	return func(q *MatchQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *MatchQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *MatchQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewMatchQueue(handle Handler, logger *slog.Logger, opts ...Option) *MatchQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &MatchQueue{
		handle:  handle,
		logger:  logger,
		workers: 4,
		timeout: 2 * time.Minute,
		ch:      make(chan Job, 256),
		status:  make(map[uuid.UUID]JobState),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *MatchQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *MatchQueue) run(workerID int, job Job) {
	ctx := context.Background()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	err := q.handle(ctx, job)
	if err != nil {
		q.setStatus(job.InvoiceID, constants.JobStatusFailed, err.Error())
		metrics.RecordQueueJob(string(constants.JobStatusFailed))
		q.logger.Error("queue.job.failed",
			"worker_id", workerID, "invoice_id", job.InvoiceID, "req_id", job.RequestID, "error", err)
		return
	}
	q.setStatus(job.InvoiceID, constants.JobStatusDone, "")
	metrics.RecordQueueJob(string(constants.JobStatusDone))
	q.logger.Info("queue.job.done",
		"worker_id", workerID, "invoice_id", job.InvoiceID, "req_id", job.RequestID,
		"duration_ms", time.Since(start).Milliseconds())
}

// Enqueue blocks while the buffer is full until ctx is done.
func (q *MatchQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "invoice_id", job.InvoiceID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	if job.RequestID == "" {
		job.RequestID = common.RequestIDFromContext(ctx)
	}

	q.setStatus(job.InvoiceID, constants.JobStatusQueued, "")
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueued", "invoice_id", job.InvoiceID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "invoice_id", job.InvoiceID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.clearStatus(job.InvoiceID)
		return ctx.Err()
	}
}

// Status returns the last known state of the job for invoiceID.
func (q *MatchQueue) Status(invoiceID uuid.UUID) (JobState, bool) {
	q.statusMu.Lock()
	defer q.statusMu.Unlock()
	s, ok := q.status[invoiceID]
	return s, ok
}

func (q *MatchQueue) setStatus(id uuid.UUID, status constants.JobStatus, errMsg string) {
	q.statusMu.Lock()
	q.status[id] = JobState{Status: status, Error: errMsg, UpdatedAt: time.Now().UTC()}
	q.statusMu.Unlock()
}

func (q *MatchQueue) clearStatus(id uuid.UUID) {
	q.statusMu.Lock()
	delete(q.status, id)
	q.statusMu.Unlock()
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
func (q *MatchQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
