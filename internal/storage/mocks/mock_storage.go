package mocks

import (
	"context"
	"io"
	"iter"

	"pdfslot/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

// Objects builds a List result yielding infos in order, then err if non-nil.
func Objects(err error, infos ...storage.ObjectInfo) iter.Seq2[storage.ObjectInfo, error] {
	return func(yield func(storage.ObjectInfo, error) bool) {
		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
		if err != nil {
			yield(storage.ObjectInfo{}, err)
		}
	}
}

func (m *MockStorage) List(ctx context.Context) iter.Seq2[storage.ObjectInfo, error] {
	args := m.Called(ctx)
	return args.Get(0).(iter.Seq2[storage.ObjectInfo, error])
}

func (m *MockStorage) Write(ctx context.Context, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, r, opt)
	if f, ok := args.Get(0).(func(context.Context, io.Reader, storage.PutObjectOptions) storage.ObjectInfo); ok {
		return f(ctx, r, opt), args.Error(1)
	}
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStorage) OpenLatest(ctx context.Context) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx)
	var rc io.ReadCloser
	if v := args.Get(0); v != nil {
		rc = v.(io.ReadCloser)
	}
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}
