package slot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"pdfslot/internal/lock"
	"pdfslot/internal/repository"
	"pdfslot/internal/storage"
	"pdfslot/internal/storage/mocks"
)

type fixedStore struct {
	s   storage.Storage
	err error
}

func (f fixedStore) Store() (storage.Storage, error) { return f.s, f.err }

func newMemoryRepo(t *testing.T) (*Repository, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	return New(fixedStore{s: mem}, lock.NewLocal(), time.Second, zerolog.Nop()), mem
}

func upload(t *testing.T, r *Repository, name string, body []byte) string {
	t.Helper()
	doc, err := r.Replace(context.Background(), repository.ReplaceInput{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	})
	require.NoError(t, err)
	return doc.ID
}

func count(t *testing.T, s storage.Storage) int {
	t.Helper()
	n := 0
	for _, err := range s.List(context.Background()) {
		require.NoError(t, err)
		n++
	}
	return n
}

func readCurrent(t *testing.T, r *Repository) (string, []byte) {
	t.Helper()
	doc, rc, err := r.Current(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, doc.Size, int64(len(body)))
	return doc.Filename, body
}

func TestCurrent_Empty(t *testing.T) {
	r, _ := newMemoryRepo(t)

	doc, rc, err := r.Current(context.Background())

	assert.ErrorIs(t, err, repository.ErrNoDocument)
	assert.Nil(t, doc)
	assert.Nil(t, rc)
}

func TestReplace_ExactlyOneAfterEachUpload(t *testing.T) {
	r, mem := newMemoryRepo(t)

	for i, name := range []string{"one.pdf", "two.pdf", "three.pdf", "four.pdf"} {
		body := bytes.Repeat([]byte{byte('a' + i)}, 10*(i+1))
		upload(t, r, name, body)

		assert.Equal(t, 1, count(t, mem))
		gotName, gotBody := readCurrent(t, r)
		assert.Equal(t, name, gotName)
		assert.Equal(t, body, gotBody)
	}
}

func TestReplace_SameContentTwice(t *testing.T) {
	r, _ := newMemoryRepo(t)
	body := []byte("%PDF-1.7 same bytes")

	first := upload(t, r, "same.pdf", body)
	_, got1 := readCurrent(t, r)
	second := upload(t, r, "same.pdf", body)
	_, got2 := readCurrent(t, r)

	assert.NotEqual(t, first, second)
	assert.Equal(t, body, got1)
	assert.Equal(t, body, got2)
}

func TestReplace_ScenarioAThenB(t *testing.T) {
	r, mem := newMemoryRepo(t)

	aID := upload(t, r, "a.pdf", bytes.Repeat([]byte("a"), 10))
	doc, rc, err := r.Current(context.Background())
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "a.pdf", doc.Filename)
	assert.Equal(t, int64(10), doc.Size)

	upload(t, r, "b.pdf", bytes.Repeat([]byte("b"), 20))
	doc, rc, err = r.Current(context.Background())
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "b.pdf", doc.Filename)
	assert.Equal(t, int64(20), doc.Size)

	for info, err := range mem.List(context.Background()) {
		require.NoError(t, err)
		assert.NotEqual(t, aID, info.ID)
		assert.NotEqual(t, "a.pdf", info.Filename)
	}
}

// gatedStore parks every Delete until release is closed, holding a replace
// between its listing and its write.
type gatedStore struct {
	*storage.Memory
	lists   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) List(ctx context.Context) iter.Seq2[storage.ObjectInfo, error] {
	g.lists.Add(1)
	return g.Memory.List(ctx)
}

func (g *gatedStore) Delete(ctx context.Context, id string) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Memory.Delete(ctx, id)
}

func TestReplace_ConcurrentEndsWithOne(t *testing.T) {
	ctx := context.Background()
	g := &gatedStore{
		Memory:  storage.NewMemory(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	_, err := g.Memory.Write(ctx, strings.NewReader("seed"), storage.PutObjectOptions{Filename: "seed.pdf", Size: -1})
	require.NoError(t, err)

	r := New(fixedStore{s: g}, lock.NewLocal(), 5*time.Second, zerolog.Nop())
	replace := func(wg *sync.WaitGroup, name string) {
		defer wg.Done()
		_, err := r.Replace(ctx, repository.ReplaceInput{
			Filename: name,
			Size:     -1,
			Body:     strings.NewReader(name),
		})
		assert.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go replace(&wg, "left.pdf")
	<-g.entered

	// left is parked inside its delete; right must not get as far as listing.
	go replace(&wg, "right.pdf")
	assert.Never(t, func() bool { return g.lists.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(g.release)
	wg.Wait()

	assert.EqualValues(t, 2, g.lists.Load())
	assert.Equal(t, 1, count(t, g))
	gotName, gotBody := readCurrent(t, r)
	assert.Contains(t, []string{"left.pdf", "right.pdf"}, gotName)
	assert.Equal(t, gotName, string(gotBody))
}

func TestReplace_NotConnected(t *testing.T) {
	r := New(fixedStore{err: storage.ErrNotConnected}, lock.NewLocal(), time.Second, zerolog.Nop())

	_, err := r.Replace(context.Background(), repository.ReplaceInput{Filename: "a.pdf", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, storage.ErrNotConnected)

	_, _, err = r.Current(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotConnected)
}

func TestReplace_DeletesBeforeWrite(t *testing.T) {
	ms := new(mocks.MockStorage)
	old := []storage.ObjectInfo{{ID: "old-1"}, {ID: "old-2"}}
	body := strings.NewReader("new")
	created := time.Now().UTC()

	mock.InOrder(
		ms.On("List", mock.Anything).Return(mocks.Objects(nil, old...)).Once(),
		ms.On("Delete", mock.Anything, "old-1").Return(nil).Once(),
		ms.On("Delete", mock.Anything, "old-2").Return(storage.ErrNotFound).Once(),
		ms.On("Write", mock.Anything, body, storage.PutObjectOptions{Filename: "n.pdf", ContentType: "application/pdf", Size: 3}).
			Return(storage.ObjectInfo{ID: "new-1", Filename: "n.pdf", ContentType: "application/pdf", Size: 3, CreatedAt: created}, nil).Once(),
	)

	r := New(fixedStore{s: ms}, lock.NewLocal(), time.Second, zerolog.Nop())
	doc, err := r.Replace(context.Background(), repository.ReplaceInput{
		Filename: "n.pdf", ContentType: "application/pdf", Size: 3, Body: body,
	})

	require.NoError(t, err)
	assert.Equal(t, "new-1", doc.ID)
	assert.Equal(t, created, doc.CreatedAt)
	ms.AssertExpectations(t)
}

func TestReplace_Failures(t *testing.T) {
	boom := errors.New("socket timeout")

	t.Run("list", func(t *testing.T) {
		ms := new(mocks.MockStorage)
		ms.On("List", mock.Anything).Return(mocks.Objects(boom))

		r := New(fixedStore{s: ms}, lock.NewLocal(), time.Second, zerolog.Nop())
		_, err := r.Replace(context.Background(), repository.ReplaceInput{Body: strings.NewReader("x")})

		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "list documents")
		ms.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delete stops before write", func(t *testing.T) {
		ms := new(mocks.MockStorage)
		ms.On("List", mock.Anything).Return(mocks.Objects(nil, storage.ObjectInfo{ID: "old"}))
		ms.On("Delete", mock.Anything, "old").Return(boom)

		r := New(fixedStore{s: ms}, lock.NewLocal(), time.Second, zerolog.Nop())
		_, err := r.Replace(context.Background(), repository.ReplaceInput{Body: strings.NewReader("x")})

		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "delete document old")
		ms.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("write", func(t *testing.T) {
		ms := new(mocks.MockStorage)
		ms.On("List", mock.Anything).Return(mocks.Objects(nil))
		ms.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, boom)

		r := New(fixedStore{s: ms}, lock.NewLocal(), time.Second, zerolog.Nop())
		_, err := r.Replace(context.Background(), repository.ReplaceInput{Body: strings.NewReader("x")})

		assert.ErrorIs(t, err, boom)
		assert.ErrorContains(t, err, "write document")
	})

	t.Run("current", func(t *testing.T) {
		ms := new(mocks.MockStorage)
		ms.On("OpenLatest", mock.Anything).Return(nil, storage.ObjectInfo{}, boom)

		r := New(fixedStore{s: ms}, lock.NewLocal(), time.Second, zerolog.Nop())
		_, _, err := r.Current(context.Background())

		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, repository.ErrNoDocument)
	})
}

func TestReplace_LockTimeout(t *testing.T) {
	locker := lock.NewLocal()
	hold, err := locker.Lock(context.Background())
	require.NoError(t, err)
	defer hold()

	r := New(fixedStore{s: storage.NewMemory()}, locker, 10*time.Millisecond, zerolog.Nop())
	_, err = r.Replace(context.Background(), repository.ReplaceInput{Body: strings.NewReader("x")})

	assert.ErrorIs(t, err, lock.ErrTimeout)
}

func TestReplace_Span(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	r := New(fixedStore{err: storage.ErrNotConnected}, lock.NewLocal(), time.Second, zerolog.Nop(), WithTracerProvider(tp))
	_, _ = r.Replace(context.Background(), repository.ReplaceInput{Filename: "a.pdf", Body: strings.NewReader("x")})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "slot.Replace", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
