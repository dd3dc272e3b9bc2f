package policy

import (
	"errors"

	"horse.fit/safeagree/internal/content"
)

var (
	ErrEmptyContent     = content.ErrEmptyContent
	ErrExtractionFailed = content.ErrExtractionFailed

	ErrGatewayTimeout     = errors.New("summarizer timed out")
	ErrGatewayFailure     = errors.New("summarizer failed")
	ErrStorageWriteFailed = errors.New("storage write failed")
	ErrCacheCorruption    = errors.New("catalog entry has no readable artifact")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrUniquenessViolation is returned by Catalog.InsertEntry when another
	// writer inserted the same fingerprint first. It never leaves this package.
	ErrUniquenessViolation = errors.New("fingerprint already cataloged")
)

// IsRetryable reports whether the same request may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) || errors.Is(err, ErrGatewayFailure)
}

// IsUserError reports whether err stems from the caller's input rather than
// the system.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrExtractionFailed) ||
		errors.Is(err, ErrNotFound)
}
