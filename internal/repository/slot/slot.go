// Package slot implements repository.DocumentRepository on top of a blob store
// that holds a single active document.
package slot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pdfslot/internal/lock"
	"pdfslot/internal/model"
	"pdfslot/internal/repository"
	"pdfslot/internal/storage"
)

const tracerName = "pdfslot/internal/repository/slot"

// StoreProvider hands out the current storage handle. *storage.Conn implements it.
type StoreProvider interface {
	Store() (storage.Storage, error)
}

// Repository serializes replaces behind a lock.Locker.
type Repository struct {
	stores      StoreProvider
	locker      lock.Locker
	lockTimeout time.Duration
	log         zerolog.Logger
	tracer      trace.Tracer
}

var _ repository.DocumentRepository = (*Repository)(nil)

// Option customizes a Repository.
type Option func(*Repository)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Repository) { r.tracer = tp.Tracer(tracerName) }
}

// New creates a Repository. lockTimeout <= 0 waits for the lock as long as ctx allows.
func New(stores StoreProvider, locker lock.Locker, lockTimeout time.Duration, log zerolog.Logger, opts ...Option) *Repository {
	r := &Repository{
		stores:      stores,
		locker:      locker,
		lockTimeout: lockTimeout,
		log:         log.With().Str("component", "slot").Logger(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Replace(ctx context.Context, in repository.ReplaceInput) (*model.Document, error) {
	ctx, span := r.tracer.Start(ctx, "slot.Replace", trace.WithAttributes(
		attribute.String("document.filename", in.Filename),
		attribute.Int64("document.size_hint", in.Size),
	))
	defer span.End()

	doc, removed, err := r.replace(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replace failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.id", doc.ID),
		attribute.Int("documents.removed", removed),
	)
	r.log.Info().
		Str("file_id", doc.ID).
		Str("filename", doc.Filename).
		Int64("size", doc.Size).
		Int("removed", removed).
		Msg("document_replaced")
	return doc, nil
}

func (r *Repository) replace(ctx context.Context, in repository.ReplaceInput) (*model.Document, int, error) {
	store, err := r.stores.Store()
	if err != nil {
		return nil, 0, err
	}

	unlock, err := r.acquire(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	// Collect first: some backends cannot delete while a listing is open.
	var ids []string
	for info, err := range store.List(ctx) {
		if err != nil {
			return nil, 0, fmt.Errorf("list documents: %w", err)
		}
		ids = append(ids, info.ID)
	}

	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, 0, fmt.Errorf("delete document %s: %w", id, err)
		}
	}

	info, err := store.Write(ctx, in.Body, storage.PutObjectOptions{
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        in.Size,
	})
	if err != nil {
		return nil, len(ids), fmt.Errorf("write document: %w", err)
	}
	return toDocument(info), len(ids), nil
}

func (r *Repository) acquire(ctx context.Context) (func(), error) {
	if r.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.lockTimeout)
		defer cancel()
	}
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire writer lock: %w", err)
	}
	return unlock, nil
}

func (r *Repository) Current(ctx context.Context) (*model.Document, io.ReadCloser, error) {
	store, err := r.stores.Store()
	if err != nil {
		return nil, nil, err
	}
	rc, info, err := store.OpenLatest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, repository.ErrNoDocument
		}
		return nil, nil, fmt.Errorf("open current document: %w", err)
	}
	return toDocument(info), rc, nil
}

func toDocument(info storage.ObjectInfo) *model.Document {
	return &model.Document{
		ID:          info.ID,
		Filename:    info.Filename,
		ContentType: info.ContentType,
		Size:        info.Size,
		CreatedAt:   info.CreatedAt,
	}
}
