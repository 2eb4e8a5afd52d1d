package mocks

import (
	"context"
	"io"

	"pdfslot/internal/model"
	"pdfslot/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Replace(ctx context.Context, in repository.ReplaceInput) (*model.Document, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) Current(ctx context.Context) (*model.Document, io.ReadCloser, error) {
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
