package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a job failure for retry decisions and user messaging
type ErrorKind string

const (
	// ErrUnsupportedURL means the extractor does not recognise the source URL
	ErrUnsupportedURL ErrorKind = "UnsupportedURL"

	// ErrExtractorOutdated means the extractor rejected a supported site,
	// usually fixed by updating the extraction tool
	ErrExtractorOutdated ErrorKind = "ExtractorOutdated"

	// ErrNetwork is a transient transport failure (timeout, reset, 5xx)
	ErrNetwork ErrorKind = "NetworkError"

	// ErrFormatUnavailable means the requested format no longer exists
	ErrFormatUnavailable ErrorKind = "FormatUnavailable"

	// ErrInsufficientDiskSpace is raised by the disk guard, before or during
	// the transfer
	ErrInsufficientDiskSpace ErrorKind = "InsufficientDiskSpace"

	// ErrProcessorNotFound means no ffmpeg binary could be located
	ErrProcessorNotFound ErrorKind = "ProcessorNotFound"

	// ErrProcessing means a postprocessing sub-step failed
	ErrProcessing ErrorKind = "ProcessingError"

	// ErrCancelled marks a user-initiated stop; it is not a failure
	ErrCancelled ErrorKind = "Cancelled"

	// ErrInvalidState is returned by queue operations applied to a job whose
	// status does not permit them
	ErrInvalidState ErrorKind = "InvalidState"
)

// IsRetryable reports whether the executor may retry after this kind of error
func (k ErrorKind) IsRetryable() bool {
	return k == ErrNetwork
}

// JobError couples an ErrorKind with the underlying message. It is stored on
// the job as lastError and surfaced to observers unchanged.
type JobError struct {
	Kind    ErrorKind
	Message string
}

// NewJobError creates a JobError of the given kind
func NewJobError(kind ErrorKind, format string, args ...any) *JobError {
	return &JobError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *JobError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the ErrorKind from an error chain, defaulting to
// ProcessingError for errors produced outside the classification boundary.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return ErrProcessing
}
