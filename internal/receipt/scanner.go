package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCurrency is attached to every scanned receipt.
const DefaultCurrency = "₹"

// ErrInsufficientData means OCR produced text without a vendor or a total.
var ErrInsufficientData = errors.New("insufficient data extracted from receipt")

// Extraction is raw OCR output.
type Extraction struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TextExtractor performs OCR on an image.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, mimeType string) (Extraction, error)
}

// Result is a parsed, enhanced receipt together with its validation.
type Result struct {
	Receipt    Receipt    `json:"receipt"`
	Validation Validation `json:"validation"`
}

// Scanner turns images or OCR text into validated receipts.
type Scanner struct {
	extractor TextExtractor
	log       zerolog.Logger
	now       func() time.Time
}

// NewScanner creates a scanner. extractor may be nil when only ParseText is used.
func NewScanner(extractor TextExtractor, log zerolog.Logger) *Scanner {
	return &Scanner{extractor: extractor, log: log, now: time.Now}
}

// ParseText parses OCR text that was produced elsewhere.
func (s *Scanner) ParseText(text string, confidence float64) Result {
	r := Parse(text, s.now())
	r.Confidence = confidence
	r.Currency = DefaultCurrency
	r = Enhance(r)
	return Result{Receipt: r, Validation: Validate(r)}
}

// Scan runs OCR on image and parses the text. When the text yields neither a
// vendor nor a total the partial result is returned with ErrInsufficientData.
func (s *Scanner) Scan(ctx context.Context, image []byte, mimeType string) (Result, error) {
	if s.extractor == nil {
		return Result{}, fmt.Errorf("Scan: no text extractor configured")
	}
	if len(image) == 0 {
		return Result{}, fmt.Errorf("Scan: empty image")
	}

	ext, err := s.extractor.ExtractText(ctx, image, mimeType)
	if err != nil {
		return Result{}, fmt.Errorf("Scan: extract text: %w", err)
	}

	res := s.ParseText(ext.Text, ext.Confidence)
	s.log.Debug().
		Str("vendor", res.Receipt.Vendor).
		Str("total", res.Receipt.Total.String()).
		Int("items", len(res.Receipt.Items)).
		Float64("confidence", ext.Confidence).
		Msg("Receipt parsed")

	if res.Receipt.Vendor == "" || !res.Receipt.Total.IsPositive() {
		return res, fmt.Errorf("Scan: %w", ErrInsufficientData)
	}
	return res, nil
}
