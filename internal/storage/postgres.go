package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"
)

// defaultChunkSize matches GridFS so large payloads are split the same way.
const defaultChunkSize = 255 * 1024

var errReadClosed = errors.New("storage: read on closed object")

// PostgresStore keeps objects in PostgreSQL as a metadata row plus ordered chunk rows.
// A write happens in a single transaction, so readers never see a partial object.
// It uses database/sql with parameterized queries and is safe for concurrent use.
type PostgresStore struct {
	db        *sql.DB
	chunkSize int
	timeout   time.Duration
}

var _ Storage = (*PostgresStore)(nil)

// NewPostgresStore wraps an open pool. timeout bounds every single statement.
func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, chunkSize: defaultChunkSize, timeout: timeout}
}

func (s *PostgresStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// List streams every file row.
func (s *PostgresStore) List(ctx context.Context) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		qctx, cancel := s.opCtx(ctx)
		defer cancel()

		const q = `SELECT id, filename, content_type, length, created_at FROM blob_files`
		rows, err := s.db.QueryContext(qctx, q)
		if err != nil {
			yield(ObjectInfo{}, classify(BackendPostgres, fmt.Errorf("list objects: %w", err)))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var info ObjectInfo
			if err := rows.Scan(&info.ID, &info.Filename, &info.ContentType, &info.Size, &info.CreatedAt); err != nil {
				yield(ObjectInfo{}, fmt.Errorf("scan object: %w", err))
				return
			}
			if !yield(info, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(ObjectInfo{}, classify(BackendPostgres, fmt.Errorf("list objects: %w", err)))
		}
	}
}

// Write streams r into chunk rows inside one transaction.
func (s *PostgresStore) Write(ctx context.Context, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	info, err := s.write(ctx, r, opt)
	return info, classify(BackendPostgres, err)
}

func (s *PostgresStore) write(ctx context.Context, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if r == nil {
		return ObjectInfo{}, errors.New("storage: reader is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("begin write: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback() //nolint:errcheck

	info := ObjectInfo{
		ID:          newID(),
		Filename:    opt.Filename,
		ContentType: opt.ContentType,
	}

	const qFile = `
		INSERT INTO blob_files (id, filename, content_type, chunk_size)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	qctx, cancel := s.opCtx(ctx)
	err = tx.QueryRowContext(qctx, qFile, info.ID, info.Filename, info.ContentType, s.chunkSize).Scan(&info.CreatedAt)
	cancel()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("insert file: %w", err)
	}

	const qChunk = `INSERT INTO blob_chunks (file_id, n, data) VALUES ($1, $2, $3)`
	buf := make([]byte, s.chunkSize)
	for n := 0; ; n++ {
		read, rerr := io.ReadFull(r, buf)
		if read > 0 {
			qctx, cancel := s.opCtx(ctx)
			_, err := tx.ExecContext(qctx, qChunk, info.ID, n, buf[:read])
			cancel()
			if err != nil {
				return ObjectInfo{}, fmt.Errorf("insert chunk %d: %w", n, err)
			}
			info.Size += int64(read)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return ObjectInfo{}, fmt.Errorf("read payload: %w", rerr)
		}
	}

	const qLength = `UPDATE blob_files SET length = $2 WHERE id = $1`
	qctx, cancel = s.opCtx(ctx)
	_, err = tx.ExecContext(qctx, qLength, info.ID, info.Size)
	cancel()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("update length: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ObjectInfo{}, fmt.Errorf("commit write: %w", err)
	}
	return info, nil
}

// Delete removes the file row; chunks go with it through ON DELETE CASCADE.
// It does not return an error if the row does not exist.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	qctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `DELETE FROM blob_files WHERE id = $1`
	if _, err := s.db.ExecContext(qctx, q, id); err != nil {
		return classify(BackendPostgres, fmt.Errorf("delete object %s: %w", id, err))
	}
	return nil
}

// OpenLatest returns a reader that fetches one chunk per query as it is consumed.
// The metadata row and every chunk are read inside one read-only REPEATABLE READ
// transaction, so a replace committed mid-download cannot truncate the stream.
// The transaction is released by Close.
func (s *PostgresStore) OpenLatest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	rc, info, err := s.openLatest(ctx)
	return rc, info, classify(BackendPostgres, err)
}

func (s *PostgresStore) openLatest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("begin read: %w", err)
	}

	const q = `
		SELECT id, filename, content_type, length, chunk_size, created_at
		FROM blob_files
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var (
		info      ObjectInfo
		chunkSize int64
	)
	qctx, cancel := s.opCtx(ctx)
	err = tx.QueryRowContext(qctx, q).Scan(
		&info.ID,
		&info.Filename,
		&info.ContentType,
		&info.Size,
		&chunkSize,
		&info.CreatedAt,
	)
	cancel()
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("find latest object: %w", err)
	}
	if chunkSize <= 0 {
		_ = tx.Rollback()
		return nil, ObjectInfo{}, fmt.Errorf("object %s has invalid chunk size %d", info.ID, chunkSize)
	}

	cr := &chunkReader{
		ctx:    ctx,
		store:  s,
		tx:     tx,
		fileID: info.ID,
		chunks: int((info.Size + chunkSize - 1) / chunkSize),
	}
	return cr, info, nil
}

func (s *PostgresStore) readChunk(ctx context.Context, tx *sql.Tx, fileID string, n int) ([]byte, error) {
	qctx, cancel := s.opCtx(ctx)
	defer cancel()

	const q = `SELECT data FROM blob_chunks WHERE file_id = $1 AND n = $2`
	var data []byte
	if err := tx.QueryRowContext(qctx, q, fileID, n).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chunk %d of %s is gone: %w", n, fileID, io.ErrUnexpectedEOF)
		}
		return nil, classify(BackendPostgres, fmt.Errorf("read chunk %d of %s: %w", n, fileID, err))
	}
	return data, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	qctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.db.PingContext(qctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// chunkReader pins the snapshot transaction opened by OpenLatest until Close.
type chunkReader struct {
	ctx    context.Context
	store  *PostgresStore
	tx     *sql.Tx
	fileID string
	chunks int
	next   int
	buf    []byte
	closed bool
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.closed {
		return 0, errReadClosed
	}
	for len(c.buf) == 0 {
		if c.next >= c.chunks {
			return 0, io.EOF
		}
		data, err := c.store.readChunk(c.ctx, c.tx, c.fileID, c.next)
		if err != nil {
			return 0, err
		}
		c.next++
		c.buf = data
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// Close ends the read transaction. Nothing was written, so it rolls back.
func (c *chunkReader) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.buf = nil
	if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
