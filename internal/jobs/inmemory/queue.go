package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config sizes a Queue. Zero values fall back to the defaults below.
type Config struct {
	// BufferSize is how many jobs can wait before PublishScanReceipt blocks.
	BufferSize int
	// Workers is the number of concurrent handlers.
	Workers int
	// RetryBackoff is multiplied by the retry count before a failed job is re-enqueued.
	RetryBackoff time.Duration
}

const (
	defaultBufferSize   = 100
	defaultWorkers      = 5
	defaultRetryBackoff = time.Second
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.ScanReceiptJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	workers   int
	backoff   time.Duration
	log       zerolog.Logger
}

// NewQueue creates a new in-memory job queue.
func NewQueue(cfg Config, store jobs.JobStore, log zerolog.Logger) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &Queue{
		jobChan:   make(chan *jobs.ScanReceiptJob, cfg.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   cfg.Workers,
		backoff:   cfg.RetryBackoff,
		log:       log,
	}
}

// PublishScanReceipt implements the Publisher interface. Defaults (id, status,
// creation time, retry budget) are filled in on job before it is queued.
func (q *Queue) PublishScanReceipt(ctx context.Context, job *jobs.ScanReceiptJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	// Workers get their own copy; job stays with the caller.
	queued := copyJob(job)
	select {
	case q.jobChan <- queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// The handler is called concurrently, up to the configured number of workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	q.log.Info().Int("workers", q.workers).Msg("Job queue started")
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.ScanReceiptJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := q.run(ctx, job, handler)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	log := q.log.With().Str("job_id", job.JobID).Str("job_type", string(job.GetType())).Logger()

	if err != nil {
		job.Error = err.Error()

		if !jobs.IsPermanent(err) && job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Job failed, retrying")
			q.save(ctx, job)

			retry := copyJob(job)
			retry.Status = jobs.JobStatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil

			// Linear backoff
			backoff := time.Duration(job.RetryCount) * q.backoff
			time.AfterFunc(backoff, func() {
				if err := q.PublishScanReceipt(ctx, retry); err != nil {
					log.Warn().Err(err).Msg("Failed to re-enqueue job")
				}
			})
			return
		}

		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("duration", completedAt.Sub(now)).Msg("Job completed")
	}

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.ScanReceiptJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

func copyJob(job *jobs.ScanReceiptJob) *jobs.ScanReceiptJob {
	c := *job
	if job.Warnings != nil {
		c.Warnings = append([]string(nil), job.Warnings...)
	}
	return &c
}

// run calls the handler, turning a panic into a permanent failure.
func (q *Queue) run(ctx context.Context, job *jobs.ScanReceiptJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = jobs.Permanent(fmt.Errorf("job handler panicked: %v", r))
		}
	}()
	return handler(ctx, job)
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
