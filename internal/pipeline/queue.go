package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one queued extraction run. ChatID and MessageID let the result
// callback route back to the conversation that sent the photo.
type Job struct {
	ReceiptID   int64
	ChatID      int64
	MessageID   int
	SubmittedAt time.Time
}

// ResultFunc receives the outcome of each processed job. Called from worker
// goroutines; implementations must be safe for concurrent use.
type ResultFunc func(job Job, res *Result, err error)

// ProcessorQueue runs extraction jobs on a bounded worker pool so photo
// handlers can acknowledge immediately and process in the background.
type ProcessorQueue struct {
	proc    *Processor
	notify  ResultFunc
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultFunc registers the per-job completion callback.
func WithResultFunc(fn ResultFunc) Option {
	return func(q *ProcessorQueue) {
		q.notify = fn
	}
}

func NewProcessorQueue(proc *Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("pipeline.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					res, err := q.proc.ProcessReceipt(ctx, job.ReceiptID)
					cancel()

					if err != nil {
						q.logger.Error("pipeline.worker.job_failed",
							"worker_id", workerID, "receipt_id", job.ReceiptID, "error", err,
							"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
						)
					} else {
						q.logger.Info("pipeline.worker.job_done",
							"worker_id", workerID, "receipt_id", job.ReceiptID,
							"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
						)
					}
					if q.notify != nil {
						q.notify(job, res, err)
					}
				}

				q.logger.Info("pipeline.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a job. When the buffer is full the caller blocks; the bot
// already acknowledged the photo, so backpressure here is invisible latency
// rather than a dropped receipt.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("pipeline.queue.enqueue_after_shutdown", "receipt_id", job.ReceiptID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("pipeline.queue.enqueued", "receipt_id", job.ReceiptID)
	default:
		q.logger.Warn("pipeline.queue.full", "receipt_id", job.ReceiptID)
		q.ch <- job
	}
	return nil
}

// Shutdown stops intake, drains in-flight jobs, and waits for workers until
// ctx expires.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
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
		q.logger.Warn("pipeline.queue.shutdown_interrupted")
	case <-done:
		q.logger.Info("pipeline.queue.shutdown_complete")
	}
}
