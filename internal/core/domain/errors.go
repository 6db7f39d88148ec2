package domain

import (
	"errors"
	"fmt"
)

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrFileTooLarge      = errors.New("file too large")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrStaleCycle        = errors.New("stale analysis cycle")
	ErrAnalysisFailure   = errors.New("analysis failed")
	ErrAnalysisTimeout   = errors.New("analysis timed out")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
