// Package jobs defines receipt scan jobs and the queue contracts the API and
// worker pool share.
package jobs

import (
	"context"
	"errors"
	"time"
)

type JobType string

const JobTypeScanReceipt JobType = "scan_receipt"

// JobStatus moves pending → running → completed | failed. A failure that may
// be retried passes through retrying and back to pending.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// DefaultMaxRetries is used when a published job does not set MaxRetries.
const DefaultMaxRetries = 3

// ScanReceiptJob OCRs a stored receipt image and records it as an expense.
// The result fields are filled in by the handler.
type ScanReceiptJob struct {
	JobID    string `json:"job_id"`
	ImageURI string `json:"image_uri"`
	MIMEType string `json:"mime_type"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`

	Vendor        string   `json:"vendor,omitempty"`
	Total         string   `json:"total,omitempty"`
	TransactionID string   `json:"transaction_id,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
}

func (j *ScanReceiptJob) GetID() string    { return j.JobID }
func (j *ScanReceiptJob) GetType() JobType { return JobTypeScanReceipt }

// Publisher queues scan jobs. Implementations keep their own copy of the job,
// so the caller may keep reading it after publishing.
type Publisher interface {
	PublishScanReceipt(ctx context.Context, job *ScanReceiptJob) error
	Close() error
}

// Consumer runs a handler over queued jobs until stopped.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. Errors wrapped with Permanent are not retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps the latest state of every job for the jobs API. Saved and
// returned jobs are copies.
type JobStore interface {
	SaveJob(ctx context.Context, job *ScanReceiptJob) error
	GetJob(ctx context.Context, jobID string) (*ScanReceiptJob, error)
	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ScanReceiptJob, error)
}

// JobFilter narrows ListJobs. Zero values mean no filtering.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}

// ErrJobNotFound is returned by JobStore implementations for unknown ids.
var ErrJobNotFound = errors.New("job not found")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
