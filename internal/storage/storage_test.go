package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRefused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"dial refused", dialRefused(), true},
		{"s3 transport", &url.Error{Op: "Get", URL: "http://minio:9000/pdfs", Err: dialRefused()}, true},
		{"wrapped dial", fmt.Errorf("list objects: %w", dialRefused()), true},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", sql.ErrConnDone, true},
		{"pgx connect", &pgconn.ConnectError{}, true},
		{"no rows", sql.ErrNoRows, false},
		{"query error", errors.New(`relation "blob_files" does not exist`), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConnectionError(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(BackendPostgres, nil))

	plain := errors.New("insert chunk 0: disk full")
	assert.Same(t, plain, classify(BackendPostgres, plain))

	err := classify(BackendMinIO, fmt.Errorf("put object: %w", dialRefused()))
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, BackendMinIO, connErr.Backend)
	assert.Equal(t, "storage: minio connection lost: put object: dial tcp: connection refused", err.Error())

	// already classified errors are not wrapped twice
	assert.Same(t, err, classify(BackendMinIO, err))
}
