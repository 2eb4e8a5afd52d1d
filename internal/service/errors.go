package service

import (
	"errors"
	"strings"
)

var (
	// ErrUnavailable means the blob store is not reachable right now.
	ErrUnavailable = errors.New("database not available")
	// ErrNotFound means no document has been uploaded yet.
	ErrNotFound = errors.New("no PDF found")
	ErrReaderNil = errors.New("reader is nil")
)

// ValidationError is a client mistake in the upload request.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// IsPDFFilename reports whether name ends with ".pdf" in any letter case.
func IsPDFFilename(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
