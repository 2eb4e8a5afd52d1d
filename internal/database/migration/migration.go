package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type migrationStep struct {
	Name string
	SQL  string
}

// Objects are split GridFS-style: one metadata row per file plus fixed-size
// chunk rows, so a payload can be streamed back without loading it whole.
var steps = []migrationStep{
	{
		Name: "create_table_blob_files",
		SQL: `CREATE TABLE IF NOT EXISTS blob_files (
  id           UUID        PRIMARY KEY,
  filename     TEXT        NOT NULL,
  content_type TEXT        NOT NULL,
  length       BIGINT      NOT NULL DEFAULT 0 CHECK (length >= 0),
  chunk_size   INTEGER     NOT NULL CHECK (chunk_size > 0),
  created_at   TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);`,
	},
	{
		Name: "create_table_blob_chunks",
		SQL: `CREATE TABLE IF NOT EXISTS blob_chunks (
  file_id UUID    NOT NULL REFERENCES blob_files (id) ON DELETE CASCADE,
  n       INTEGER NOT NULL CHECK (n >= 0),
  data    BYTEA   NOT NULL,
  PRIMARY KEY (file_id, n)
);`,
	},
	{
		Name: "create_index_blob_files_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_blob_files_created_at ON blob_files (created_at DESC, id DESC);`,
	},
}

// sentinel is created by the last step, so its presence means every step ran.
const sentinel = "public.idx_blob_files_created_at"

// EnsureMigrated checks whether the blob schema exists and runs the migration steps if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log zerolog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_check").Str("status", "starting").Msg("checking schema")

	var exists bool
	query := "SELECT to_regclass($1) IS NOT NULL"
	if err := db.QueryRowContext(ctx, query, sentinel).Scan(&exists); err != nil {
		log.Error().Str("event", "db_migration_failed").Str("status", "error").
			Err(err).Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to check sentinel")
		return fmt.Errorf("failed to check sentinel: %w", err)
	}

	if exists {
		log.Info().Str("event", "db_migration_skip").Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	log.Info().Str("event", "db_migration_start").Str("status", "in_progress").Msg("migrating schema")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().Str("event", "db_migration_failed").Str("status", "error").
				Str("migration_step", step.Name).Err(err).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("migration step failed")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info().Str("event", "db_migration_step").Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("migration step applied")
	}

	log.Info().Str("event", "db_migration_success").Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("schema migrated")

	return nil
}
