// Package storage contains the blob store client: a streaming object store
// interface, its backends (PostgreSQL, MinIO, memory) and the connection
// holder that dials them with retry.
package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no object matches the request.
	ErrNotFound = errors.New("storage: object not found")
	// ErrNotConnected is returned while the backing store has never been reached.
	ErrNotConnected = errors.New("storage: not connected")
)

// ConnectionError reports a failed attempt to reach the backing store, or a
// connection lost during an operation (Attempts is then zero).
type ConnectionError struct {
	Backend  string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("storage: %s connection lost: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("storage: connect %s failed after %d attempt(s): %v", e.Backend, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PutObjectOptions describe the object being written.
// Size is the exact number of bytes if known, otherwise -1.
type PutObjectOptions struct {
	Filename    string
	ContentType string
	Size        int64
}

// ObjectInfo contains the metadata of a stored object.
type ObjectInfo struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Storage is a handle on a durable binary object store.
// Implementations are safe for concurrent use and never buffer a whole payload.
type Storage interface {
	// List enumerates every stored object. The sequence is finite and single-pass;
	// ordering is unspecified.
	List(ctx context.Context) iter.Seq2[ObjectInfo, error]
	// Write streams r into a new object with a fresh identifier and creation time.
	// Nothing is overwritten.
	Write(ctx context.Context, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, id string) error
	// OpenLatest opens the most recently created object, or returns ErrNotFound.
	// The caller must close the returned reader.
	OpenLatest(ctx context.Context) (io.ReadCloser, ObjectInfo, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}

// newer reports whether a was created after b, breaking ties on the identifier.
func newer(a, b ObjectInfo) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// newID returns a time-ordered UUIDv7 so identifiers sort by creation.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// classify wraps connection-level failures in a *ConnectionError so callers can
// tell an unreachable store apart from a failed operation. Other errors pass through.
func classify(backend string, err error) error {
	if err == nil || !isConnectionError(err) {
		return err
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	return &ConnectionError{Backend: backend, Err: err}
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pgConnErr *pgconn.ConnectError
	if errors.As(err, &pgConnErr) {
		return true
	}
	// *url.Error from the S3 transport and *net.OpError from pgx both land here.
	var netErr net.Error
	return errors.As(err, &netErr)
}
