package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation covers malformed scripts and request input rejected at submission.
	ErrValidation = errors.New("validation error")
	// ErrAcquisition covers failures obtaining or reading the source video.
	ErrAcquisition = errors.New("acquisition error")
	// ErrSynthesis covers speech backend failures and unsupported voices.
	ErrSynthesis = errors.New("synthesis error")
	// ErrFit marks an utterance that cannot be compressed into its window.
	ErrFit = errors.New("fit error")
	// ErrEncode covers final mux/encode failures.
	ErrEncode = errors.New("encode error")
	// ErrNotFound marks lookups for unknown job identifiers.
	ErrNotFound = errors.New("not found")
	// ErrNotReady marks output retrieval before a job has completed.
	ErrNotReady = errors.New("not ready")
	// ErrJobFailed marks output retrieval for a job that ended in failure.
	ErrJobFailed = errors.New("job failed")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEncode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Summary strips the taxonomy prefix from a wrapped error so job records carry
// a human-readable message rather than the sentinel label.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	markers := []error{
		ErrValidation, ErrAcquisition, ErrSynthesis, ErrFit, ErrEncode,
		ErrNotFound, ErrNotReady, ErrJobFailed,
	}
	for _, marker := range markers {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
