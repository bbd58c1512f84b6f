package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/receipt"
	"github.com/rs/zerolog"
)

// MaxReceiptBytes caps uploaded receipt images.
const MaxReceiptBytes = 10 << 20

// ReceiptsHandler handles receipt parsing and scan uploads.
type ReceiptsHandler struct {
	scanner   *receipt.Scanner
	images    receipt.ImageStore
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler. images and publisher may
// be nil when only text parsing is served.
func NewReceiptsHandler(scanner *receipt.Scanner, images receipt.ImageStore, publisher jobs.Publisher, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		scanner:   scanner,
		images:    images,
		publisher: publisher,
		log:       log,
	}
}

// ParseText handles POST /api/receipts/parse with OCR text already extracted
// by the client.
func (h *ReceiptsHandler) ParseText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteErrorKind(w, http.StatusBadRequest, KindValidation, "text is required")
		return
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	middleware.WriteJSON(w, http.StatusOK, h.scanner.ParseText(req.Text, confidence))
}

// Scan handles POST /api/receipts/scan. The request body is the raw image;
// it is stored and a scan job is queued.
func (h *ReceiptsHandler) Scan(w http.ResponseWriter, r *http.Request) {
	if h.images == nil || h.publisher == nil {
		middleware.WriteErrorKind(w, http.StatusNotImplemented, KindUnavailable, "Receipt scanning is not configured")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		middleware.WriteErrorKind(w, http.StatusUnsupportedMediaType, KindValidation, "Content-Type must be an image type")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxReceiptBytes))
	if err != nil {
		middleware.WriteErrorKind(w, http.StatusRequestEntityTooLarge, KindValidation, "Receipt image is too large")
		return
	}
	if len(data) == 0 {
		middleware.WriteErrorKind(w, http.StatusBadRequest, KindValidation, "Receipt image is empty")
		return
	}

	filename := filepath.Base(r.URL.Query().Get("filename"))
	if filename == "." || filename == "/" {
		filename = "receipt"
	}

	ctx := r.Context()
	uri, err := h.images.Put(ctx, filename, data, contentType)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to store receipt image")
		middleware.WriteErrorKind(w, http.StatusInternalServerError, KindInternal, "Failed to store receipt image")
		return
	}

	job := &jobs.ScanReceiptJob{ImageURI: uri, MIMEType: contentType}
	if err := h.publisher.PublishScanReceipt(ctx, job); err != nil {
		h.log.Error().Err(err).Str("image_uri", uri).Msg("Failed to enqueue scan job")
		middleware.WriteErrorKind(w, http.StatusServiceUnavailable, KindUnavailable, "Failed to enqueue scan job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("image_uri", uri).Int("bytes", len(data)).Msg("Receipt scan job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"image_uri": uri,
		"status":    string(job.Status),
	})
}
