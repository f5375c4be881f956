package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MOYARU/vigil/internal/failure"
)

// classify maps a failure kind to an HTTP status, an error code and a message
// safe to show to the dashboard.
func classify(err error) (int, string, string) {
	reason := failure.ReasonOf(err)
	switch {
	case errors.Is(err, failure.ErrPolicyRejected):
		return http.StatusUnprocessableEntity, "policy_rejected", "URL not allowed: " + orDefault(reason, "denied by policy")
	case errors.Is(err, failure.ErrTimedOut):
		return http.StatusAccepted, "timed_out", "Analysis is still running; check back later."
	case errors.Is(err, failure.ErrInputRead):
		return http.StatusBadRequest, "input_read", orDefault(reason, "could not read input")
	case errors.Is(err, failure.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded", "Upstream quota exceeded; try again later."
	case errors.Is(err, failure.ErrUnauthorized):
		return http.StatusBadGateway, "upstream_unauthorized", "An upstream service rejected the configured credentials."
	case errors.Is(err, failure.ErrSubmissionDeclined):
		return http.StatusConflict, "submission_declined", "Submission was declined."
	case errors.Is(err, failure.ErrTransient):
		return http.StatusBadGateway, "upstream_unavailable", "An upstream service is unavailable."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled", "Request was canceled."
	default:
		return http.StatusInternalServerError, "internal", "Internal error."
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
