package storage

import (
	"bytes"
	"context"
	"io"
	"iter"
	"sync"
	"time"
)

type memObject struct {
	info ObjectInfo
	data []byte
}

// Memory is a process-local Storage for development and tests.
// Payloads are kept in memory, so it is not meant for production traffic.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
	last    time.Time
	now     func() time.Time
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject), now: time.Now}
}

func (m *Memory) List(ctx context.Context) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(ObjectInfo{}, err)
			return
		}
		m.mu.RLock()
		infos := make([]ObjectInfo, 0, len(m.objects))
		for _, o := range m.objects {
			infos = append(infos, o.info)
		}
		m.mu.RUnlock()

		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

func (m *Memory) Write(ctx context.Context, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	created := m.now().UTC()
	if !created.After(m.last) {
		created = m.last.Add(time.Nanosecond)
	}
	m.last = created

	info := ObjectInfo{
		ID:          newID(),
		Filename:    opt.Filename,
		ContentType: opt.ContentType,
		Size:        int64(len(data)),
		CreatedAt:   created,
	}
	m.objects[info.ID] = memObject{info: info, data: data}
	return info, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) OpenLatest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		latest memObject
		found  bool
	)
	for _, o := range m.objects {
		if !found || newer(o.info, latest.info) {
			latest, found = o, true
		}
	}
	if !found {
		return nil, ObjectInfo{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(latest.data)), latest.info, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() error { return nil }
