package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/intent"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/receipt"
	"github.com/dvloznov/finance-dashboard/internal/store"
	"github.com/rs/zerolog"
)

// Error kinds reported in the "kind" field of error responses.
const (
	KindValidation      = "validation"
	KindUnauthenticated = "unauthenticated"
	KindRequestFailed   = "request_failed"
	KindNetwork         = "network"
	KindNotFound        = "not_found"
	KindUnavailable     = "unavailable"
	KindInternal        = "internal"
)

// classify maps an error to a status code and kind.
func classify(err error) (int, string) {
	var ve *domain.ValidationError
	var ne *apiclient.NetworkError
	var rf *apiclient.RequestFailedError

	switch {
	case errors.As(err, &ve), errors.Is(err, intent.ErrUnrecognized):
		return http.StatusBadRequest, KindValidation
	case apiclient.IsUnauthenticated(err):
		return http.StatusUnauthorized, KindUnauthenticated
	case errors.As(err, &ne):
		if ne.Timeout() {
			return http.StatusGatewayTimeout, KindNetwork
		}
		return http.StatusServiceUnavailable, KindNetwork
	case errors.As(err, &rf):
		if rf.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, KindNotFound
		}
		return http.StatusBadGateway, KindRequestFailed
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, receipt.ErrInsufficientData):
		return http.StatusUnprocessableEntity, KindValidation
	case errors.Is(err, store.ErrDestroyed):
		return http.StatusServiceUnavailable, KindUnavailable
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// writeErr logs err and writes it as {error, kind}. Validation and backend
// messages are shown to the user as is; internal errors are not.
func writeErr(w http.ResponseWriter, log zerolog.Logger, op string, err error) {
	status, kind := classify(err)
	message := err.Error()

	var rf *apiclient.RequestFailedError
	switch {
	case errors.As(err, &rf):
		message = rf.Message
	case kind == KindInternal:
		message = "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Int("status", status).Msg("Request failed")
	} else {
		log.Warn().Err(err).Str("op", op).Int("status", status).Msg("Request rejected")
	}
	middleware.WriteErrorKind(w, status, kind, message)
}
