package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/rs/zerolog"
)

// ImageStore keeps uploaded receipt images.
type ImageStore interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// ExpenseRecorder records a transaction; the shared data store satisfies it.
type ExpenseRecorder interface {
	AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error)
}

// Outcome is what processing one stored image produced.
type Outcome struct {
	Result      Result             `json:"result"`
	Transaction domain.Transaction `json:"transaction"`
}

// Processor runs queued scan jobs: fetch image, OCR, validate, record expense.
type Processor struct {
	images   ImageStore
	scanner  *Scanner
	recorder ExpenseRecorder
	log      zerolog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(images ImageStore, scanner *Scanner, recorder ExpenseRecorder, log zerolog.Logger) *Processor {
	return &Processor{images: images, scanner: scanner, recorder: recorder, log: log}
}

// Process scans the image at uri and records it as an expense. Receipts that
// cannot be read or fail validation return a jobs.Permanent error.
func (p *Processor) Process(ctx context.Context, uri, mimeType string) (Outcome, error) {
	image, err := p.images.Fetch(ctx, uri)
	if err != nil {
		return Outcome{}, fmt.Errorf("Process: fetch image %s: %w", uri, err)
	}

	res, err := p.scanner.Scan(ctx, image, mimeType)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			return Outcome{Result: res}, jobs.Permanent(fmt.Errorf("Process: %w", err))
		}
		return Outcome{}, fmt.Errorf("Process: %w", err)
	}
	if !res.Validation.Valid {
		return Outcome{Result: res}, jobs.Permanent(fmt.Errorf("Process: invalid receipt: %s", strings.Join(res.Validation.Errors, "; ")))
	}

	res.Receipt.ImageURI = uri
	tx, err := p.recorder.AddTransaction(ctx, res.Receipt.TransactionInput())
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return Outcome{Result: res}, jobs.Permanent(fmt.Errorf("Process: record expense: %w", err))
		}
		return Outcome{Result: res}, fmt.Errorf("Process: record expense: %w", err)
	}

	p.log.Info().
		Str("vendor", res.Receipt.Vendor).
		Str("total", res.Receipt.Total.String()).
		Str("transaction_id", tx.ID).
		Msg("Receipt recorded as expense")
	return Outcome{Result: res, Transaction: tx}, nil
}

// HandleJob is a jobs.JobHandler for scan receipt jobs.
func (p *Processor) HandleJob(ctx context.Context, job jobs.Job) error {
	scan, ok := job.(*jobs.ScanReceiptJob)
	if !ok {
		return jobs.Permanent(fmt.Errorf("HandleJob: unexpected job type %s", job.GetType()))
	}

	out, err := p.Process(ctx, scan.ImageURI, scan.MIMEType)
	scan.Vendor = out.Result.Receipt.Vendor
	scan.Warnings = out.Result.Validation.Warnings
	if !out.Result.Receipt.Total.IsZero() {
		scan.Total = out.Result.Receipt.Total.String()
	}
	if err != nil {
		return err
	}
	scan.TransactionID = out.Transaction.ID
	return nil
}
