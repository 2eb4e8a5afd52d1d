package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pdfslot/internal/config"
)

// filenameMetaKey carries the client-supplied filename. S3 metadata must be
// ASCII, so the value is path-escaped.
const filenameMetaKey = "original-filename"

// minioStorage implements the Storage interface using an S3-compatible backend (MinIO, AWS S3, etc.).
// It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	client  *minio.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// newTransport bounds dialing, TLS handshakes and waiting for response headers.
func newTransport(t config.Timeouts) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if t.Connect > 0 {
		tr.DialContext = (&net.Dialer{Timeout: t.Connect, KeepAlive: 30 * time.Second}).DialContext
		tr.TLSHandshakeTimeout = t.Connect
	}
	if t.Socket > 0 {
		tr.ResponseHeaderTimeout = t.Socket
	}
	return tr
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(ctx context.Context, cfg config.MinIOConfig, t config.Timeouts) (Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: otelhttp.NewTransport(newTransport(t)),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ms := &minioStorage{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix, timeout: t.Socket}

	selection := t.ServerSelection
	if selection <= 0 {
		selection = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, selection)
	defer cancel()

	// Ensure bucket exists.
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return ms, nil
}

func (m *minioStorage) key(id string) string { return m.prefix + id }

func (m *minioStorage) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// List walks every object under the prefix. Stopping early cancels the listing.
func (m *minioStorage) List(ctx context.Context) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
			Prefix:    m.prefix,
			Recursive: true,
		})
		for obj := range objects {
			if obj.Err != nil {
				yield(ObjectInfo{}, classify(BackendMinIO, fmt.Errorf("list objects: %w", obj.Err)))
				return
			}
			info := ObjectInfo{
				ID:          strings.TrimPrefix(obj.Key, m.prefix),
				ContentType: obj.ContentType,
				Size:        obj.Size,
				CreatedAt:   obj.LastModified,
			}
			if !yield(info, nil) {
				return
			}
		}
	}
}

// Write uploads an object using streaming I/O only (no local disk).
func (m *minioStorage) Write(ctx context.Context, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if r == nil {
		return ObjectInfo{}, errors.New("storage: reader is nil")
	}
	size := opt.Size
	if size < 0 {
		size = -1
	}

	id := newID()
	putOpts := minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: map[string]string{filenameMetaKey: url.PathEscape(opt.Filename)},
	}
	up, err := m.client.PutObject(ctx, m.bucket, m.key(id), r, size, putOpts)
	if err != nil {
		return ObjectInfo{}, classify(BackendMinIO, fmt.Errorf("put object: %w", err))
	}

	info := ObjectInfo{
		ID:          id,
		Filename:    opt.Filename,
		ContentType: opt.ContentType,
		Size:        up.Size,
		CreatedAt:   up.LastModified,
	}

	// PutObject does not always report LastModified; the store's clock is authoritative.
	sctx, cancel := m.opCtx(ctx)
	defer cancel()
	if st, err := m.client.StatObject(sctx, m.bucket, m.key(id), minio.StatObjectOptions{}); err == nil {
		info.CreatedAt = st.LastModified
	} else if info.CreatedAt.IsZero() {
		info.CreatedAt = time.Now().UTC()
	}
	return info, nil
}

// Delete removes an object by key. Missing keys are not an error.
func (m *minioStorage) Delete(ctx context.Context, id string) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	err := m.client.RemoveObject(ctx, m.bucket, m.key(id), minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return classify(BackendMinIO, fmt.Errorf("remove object %s: %w", id, err))
	}
	return nil
}

// OpenLatest picks the newest listed object and opens it as a stream.
func (m *minioStorage) OpenLatest(ctx context.Context) (io.ReadCloser, ObjectInfo, error) {
	var (
		latest ObjectInfo
		found  bool
	)
	for info, err := range m.List(ctx) {
		if err != nil {
			return nil, ObjectInfo{}, err
		}
		if !found || newer(info, latest) {
			latest, found = info, true
		}
	}
	if !found {
		return nil, ObjectInfo{}, ErrNotFound
	}

	obj, err := m.client.GetObject(ctx, m.bucket, m.key(latest.ID), minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, classify(BackendMinIO, fmt.Errorf("get object: %w", err))
	}
	// Fetch stat to populate info; avoid reading content into memory.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, classify(BackendMinIO, fmt.Errorf("stat object: %w", err))
	}

	info := ObjectInfo{
		ID:          latest.ID,
		Filename:    filenameFromMetadata(st.UserMetadata),
		ContentType: st.ContentType,
		Size:        st.Size,
		CreatedAt:   st.LastModified,
	}
	return obj, info, nil
}

func (m *minioStorage) Ping(ctx context.Context) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", m.bucket)
	}
	return nil
}

// Close is a no-op: the MinIO client holds only pooled HTTP connections.
func (m *minioStorage) Close() error { return nil }

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// filenameFromMetadata finds the filename regardless of how the server cased the key.
func filenameFromMetadata(meta map[string]string) string {
	for k, v := range meta {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		if k != filenameMetaKey {
			continue
		}
		if name, err := url.PathUnescape(v); err == nil {
			return name
		}
		return v
	}
	return ""
}
