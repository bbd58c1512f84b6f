package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(store jobs.JobStore) *Queue {
	return NewQueue(Config{BufferSize: 10, Workers: 2, RetryBackoff: time.Millisecond}, store, zerolog.Nop())
}

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.ScanReceiptJob {
	t.Helper()
	var job *jobs.ScanReceiptJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		j := job.(*jobs.ScanReceiptJob)
		j.TransactionID = "t1"
		return nil
	}))
	defer q.Close()

	job := &jobs.ScanReceiptJob{ImageURI: "mem://receipt.jpg"}
	require.NoError(t, q.PublishScanReceipt(ctx, job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.DefaultMaxRetries, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, "t1", done.TransactionID)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("ocr timeout")
		}
		return nil
	}))
	defer q.Close()

	job := &jobs.ScanReceiptJob{ImageURI: "mem://r"}
	require.NoError(t, q.PublishScanReceipt(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 2, done.RetryCount)
	assert.Empty(t, done.Error)
}

func TestQueue_PermanentFailureIsNotRetried(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return jobs.Permanent(errors.New("vendor information is missing"))
	}))
	defer q.Close()

	job := &jobs.ScanReceiptJob{ImageURI: "mem://r"}
	require.NoError(t, q.PublishScanReceipt(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "vendor information is missing", failed.Error)
	assert.Zero(t, failed.RetryCount)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestQueue_PanicFailsJob(t *testing.T) {
	store := NewStore()
	q := newTestQueue(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		panic("nil image")
	}))
	defer q.Close()

	job := &jobs.ScanReceiptJob{}
	require.NoError(t, q.PublishScanReceipt(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Contains(t, failed.Error, "nil image")
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := newTestQueue(nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.PublishScanReceipt(context.Background(), &jobs.ScanReceiptJob{})
	assert.Error(t, err)
	assert.Error(t, q.Start(context.Background(), func(context.Context, jobs.Job) error { return nil }))
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i, status := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		require.NoError(t, store.SaveJob(ctx, &jobs.ScanReceiptJob{
			JobID:     string(rune('a' + i)),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].JobID)

	completed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusCompleted, Limit: 1})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "c", completed[0].JobID)

	empty, err := store.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_SaveAndGetCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
	assert.Error(t, store.SaveJob(ctx, &jobs.ScanReceiptJob{}))

	job := &jobs.ScanReceiptJob{JobID: "j1", Status: jobs.JobStatusPending, Warnings: []string{"w"}}
	require.NoError(t, store.SaveJob(ctx, job))
	job.Warnings[0] = "mutated"
	job.Status = jobs.JobStatusFailed

	got, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)
	assert.Equal(t, []string{"w"}, got.Warnings)

	got.Status = jobs.JobStatusCompleted
	again, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, again.Status)
}

func TestQueue_PublishedJobStaysWithCaller(t *testing.T) {
	store := NewStore()
	q := NewQueue(Config{BufferSize: 64, Workers: 4, RetryBackoff: time.Nanosecond}, store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		job.(*jobs.ScanReceiptJob).Vendor = "worker"
		return nil
	}))
	defer q.Close()

	published := make([]*jobs.ScanReceiptJob, 0, 50)
	for i := 0; i < 50; i++ {
		job := &jobs.ScanReceiptJob{ImageURI: "mem://r"}
		require.NoError(t, q.PublishScanReceipt(ctx, job))
		// Workers never write to the caller's struct.
		assert.Equal(t, jobs.JobStatusPending, job.Status)
		published = append(published, job)
	}

	for _, job := range published {
		done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
		assert.Equal(t, "worker", done.Vendor)
		assert.Empty(t, job.Vendor)
		assert.Equal(t, jobs.JobStatusPending, job.Status)
	}
}

func TestQueue_RetriesExhaustedUnderShortBackoff(t *testing.T) {
	store := NewStore()
	q := NewQueue(Config{BufferSize: 64, Workers: 4, RetryBackoff: time.Nanosecond}, store, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("ocr unavailable")
	}))
	defer q.Close()

	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		job := &jobs.ScanReceiptJob{ImageURI: "mem://r"}
		require.NoError(t, q.PublishScanReceipt(ctx, job))
		ids = append(ids, job.JobID)
	}

	for _, id := range ids {
		failed := waitForStatus(t, store, id, jobs.JobStatusFailed)
		assert.Equal(t, jobs.DefaultMaxRetries, failed.RetryCount)
		assert.Equal(t, "ocr unavailable", failed.Error)
		assert.NotNil(t, failed.CompletedAt)
	}
	assert.EqualValues(t, 20*(jobs.DefaultMaxRetries+1), atomic.LoadInt32(&calls))
}
