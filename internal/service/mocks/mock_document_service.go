package mocks

import (
	"context"
	"io"

	"pdfslot/internal/model"
	"pdfslot/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

var _ service.DocumentService = (*MockDocumentService)(nil)

func (m *MockDocumentService) Upload(ctx context.Context, r io.Reader, filename string, contentType string, size int64) (*model.Document, error) {
	args := m.Called(ctx, r, filename, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Latest(ctx context.Context) (*model.Document, io.ReadCloser, error) {
	args := m.Called(ctx)
	var (
		doc *model.Document
		rc  io.ReadCloser
	)
	if v := args.Get(0); v != nil {
		doc = v.(*model.Document)
	}
	if v := args.Get(1); v != nil {
		rc = v.(io.ReadCloser)
	}
	return doc, rc, args.Error(2)
}

func (m *MockDocumentService) Health(ctx context.Context) service.HealthStatus {
	args := m.Called(ctx)
	return args.Get(0).(service.HealthStatus)
}
