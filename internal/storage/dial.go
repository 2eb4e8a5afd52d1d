package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pdfslot/internal/config"
	"pdfslot/internal/database"
	"pdfslot/internal/database/migration"
)

const (
	BackendPostgres = "postgres"
	BackendMinIO    = "minio"
	BackendMemory   = "memory"
)

// PostgresDialer opens the pool, applies the blob schema and wraps it in a PostgresStore.
func PostgresDialer(cfg config.DatabaseConfig, t config.Timeouts, log zerolog.Logger) Dialer {
	return func(ctx context.Context) (Storage, error) {
		db, err := database.NewPostgres(ctx, cfg, t)
		if err != nil {
			return nil, err
		}
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Host); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewPostgresStore(db, t.Socket), nil
	}
}

// MinIODialer creates the S3 client and makes sure the bucket exists.
func MinIODialer(cfg config.MinIOConfig, t config.Timeouts) Dialer {
	return func(ctx context.Context) (Storage, error) {
		return NewMinIO(ctx, cfg, t)
	}
}

// MemoryDialer always hands out the same in-memory store.
func MemoryDialer(m *Memory) Dialer {
	return func(context.Context) (Storage, error) {
		return m, nil
	}
}

// NewDialer picks the dialer for the configured backend.
func NewDialer(cfg *config.AppConfig, log zerolog.Logger) (Dialer, error) {
	switch cfg.Storage.Backend {
	case BackendPostgres:
		return PostgresDialer(cfg.Database, cfg.Storage.Timeouts, log), nil
	case BackendMinIO:
		return MinIODialer(cfg.MinIO, cfg.Storage.Timeouts), nil
	case BackendMemory:
		return MemoryDialer(NewMemory()), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
