package repository

import (
	"context"
	"io"

	"pdfslot/internal/model"
)

// DocumentRepository keeps at most one active document.
// No business logic here: validation and error mapping belong to the service.
type DocumentRepository interface {
	// Replace removes every stored document and then stores the new one.
	// Deletion always happens before the write, so a concurrent reader sees
	// either the old document, no document, or the new one, never two.
	Replace(ctx context.Context, in ReplaceInput) (*model.Document, error)

	// Current returns the active document and an open stream of its bytes.
	// The caller must close the stream. Returns ErrNoDocument when empty.
	Current(ctx context.Context) (*model.Document, io.ReadCloser, error)
}

// ReplaceInput is the document being stored. Size is -1 when unknown.
type ReplaceInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
