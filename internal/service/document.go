package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"pdfslot/internal/model"
	"pdfslot/internal/repository"
	"pdfslot/internal/storage"
)

const defaultContentType = "application/octet-stream"

// HealthStatus is the body of the health report.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// StatusChecker reports the blob store connection state. *storage.Conn implements it.
type StatusChecker interface {
	Status(ctx context.Context) storage.Status
}

// DocumentService defines the use cases for the single stored PDF.
type DocumentService interface {
	// Upload validates the filename and replaces the stored document with r.
	// size is -1 when unknown.
	Upload(ctx context.Context, r io.Reader, filename string, contentType string, size int64) (*model.Document, error)

	// Latest returns the current document and its payload stream. The caller closes the stream.
	Latest(ctx context.Context) (*model.Document, io.ReadCloser, error)

	// Health never fails; problems downgrade the status to unhealthy.
	Health(ctx context.Context) HealthStatus
}

type documentService struct {
	repo    repository.DocumentRepository
	checker StatusChecker
	metrics *Metrics
	log     zerolog.Logger
}

// NewDocumentService constructs a new DocumentService. metrics may be nil.
func NewDocumentService(repo repository.DocumentRepository, checker StatusChecker, metrics *Metrics, log zerolog.Logger) DocumentService {
	return &documentService{repo: repo, checker: checker, metrics: metrics, log: log}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, filename string, contentType string, size int64) (*model.Document, error) {
	if r == nil {
		return nil, &ValidationError{Field: "pdf", Message: "A PDF file is required.", Err: ErrReaderNil}
	}
	if !IsPDFFilename(filename) {
		s.metrics.failed("rejected")
		return nil, &ValidationError{Field: "pdf", Message: "File must be a PDF."}
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	doc, err := s.repo.Replace(ctx, repository.ReplaceInput{
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Body:        r,
	})
	if err != nil {
		if isUnavailable(err) {
			s.metrics.failed("unavailable")
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		s.metrics.failed("error")
		return nil, fmt.Errorf("replace document: %w", err)
	}
	s.metrics.replaced(doc.Size)
	return doc, nil
}

func (s *documentService) Latest(ctx context.Context) (*model.Document, io.ReadCloser, error) {
	doc, rc, err := s.repo.Current(ctx)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoDocument):
			return nil, nil, ErrNotFound
		case isUnavailable(err):
			return nil, nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, nil, fmt.Errorf("open latest document: %w", err)
	}
	return doc, rc, nil
}

func (s *documentService) Health(ctx context.Context) (h HealthStatus) {
	h = HealthStatus{Status: StatusUnhealthy, Database: string(storage.StatusConnectionFailed)}
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Msg("health_check_panic")
			h = HealthStatus{Status: StatusUnhealthy, Database: string(storage.StatusConnectionFailed)}
		}
	}()

	status := s.checker.Status(ctx)
	h.Database = string(status)
	if status == storage.StatusConnected {
		h.Status = StatusHealthy
	}
	return h
}

func isUnavailable(err error) bool {
	var connErr *storage.ConnectionError
	return errors.Is(err, storage.ErrNotConnected) || errors.As(err, &connErr)
}
