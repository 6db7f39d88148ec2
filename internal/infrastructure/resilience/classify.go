package resilience

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Rejected failures are the caller's fault: no retry, breaker untouched.
	Rejected = ErrorClassification{}
	// Broken failures are not retried but still trip the breaker.
	Broken = ErrorClassification{RecordFailure: true}
)

// Classify builds a classifier that settles cancellation and open circuits
// first and hands every other error to specific. Errors specific does not
// recognise are Broken.
func Classify(specific func(err error) (ErrorClassification, bool)) ErrorClassifier {
	return func(err error) ErrorClassification {
		switch {
		case err == nil:
			return Rejected
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return Rejected
		case IsCircuitOpen(err):
			return Transient
		}
		if specific != nil {
			if class, ok := specific(err); ok {
				return class
			}
		}
		return Broken
	}
}

// ClassifyHTTPStatus treats throttling and server-side statuses as transient
// and other client errors as rejected.
func ClassifyHTTPStatus(code int) (ErrorClassification, bool) {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return Transient, true
	case code >= 500 && code != http.StatusNotImplemented:
		return Transient, true
	case code >= 400:
		return Rejected, true
	default:
		return ErrorClassification{}, false
	}
}

// WrapTemporary tags err as domain.ErrTemporary when classifier would retry it,
// so callers can answer 503 instead of 500.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
