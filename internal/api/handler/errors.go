package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/response"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/export"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/userdata"
)

// writeDSRError maps a domain error onto the Problem+JSON taxonomy. Unknown
// errors become a 500 without leaking internals to the caller.
func writeDSRError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *dsr.ValidationError
	if errors.As(err, &validationErr) {
		response.BadRequest(w, r, "validation failed", validationErr.Errors)
		return
	}

	var rateLimitErr *dsr.RateLimitError
	if errors.As(err, &rateLimitErr) {
		retryAfter := int(rateLimitErr.RetryAfter / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		response.TooManyRequestsWithInfo(w, r, "submission limit reached for this email", &response.RateLimitInfo{
			Limit:      dsr.DefaultSubmissionLimit,
			Remaining:  0,
			ResetAt:    time.Now().Add(rateLimitErr.RetryAfter).Unix(),
			RetryAfter: retryAfter,
		})
		return
	}

	var transitionErr *dsr.TransitionError
	if errors.As(err, &transitionErr) {
		response.Conflict(w, r, transitionErr.Error())
		return
	}

	switch {
	case errors.Is(err, dsr.ErrRequestNotFound):
		response.NotFound(w, r, "request not found")
	case errors.Is(err, userdata.ErrAccountNotFound):
		response.NotFound(w, r, "account not found")
	case errors.Is(err, dsr.ErrInvalidAssignee):
		response.BadRequest(w, r, "assignee must hold an elevated role", nil)
	case errors.Is(err, dsr.ErrNotErasable):
		response.Conflict(w, r, "request is not eligible for erasure in its current state")
	case errors.Is(err, dsr.ErrNotExportable):
		response.Conflict(w, r, "request is not eligible for export in its current state")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

// writeDownloadError maps delivery failures onto the 403/404 contract of the
// download endpoint.
func writeDownloadError(w http.ResponseWriter, r *http.Request, err error) {
	var integrityErr *export.IntegrityError
	if errors.As(err, &integrityErr) {
		response.Forbidden(w, r, "package failed integrity verification")
		return
	}

	switch {
	case errors.Is(err, export.ErrDeliveryNotFound), errors.Is(err, dsr.ErrRequestNotFound):
		response.NotFound(w, r, "no download available for this request")
	case errors.Is(err, export.ErrNotReady):
		response.NotFound(w, r, "export package is not ready yet")
	case errors.Is(err, export.ErrTokenInvalid), errors.Is(err, export.ErrTokenExpired):
		response.Forbidden(w, r, "download token is invalid or expired")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
