package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pdfslot/internal/retry"
)

// Dialer opens a Storage handle and verifies the store is reachable.
type Dialer func(ctx context.Context) (Storage, error)

// Status is the connection state reported to health checks.
type Status string

const (
	StatusConnected        Status = "connected"
	StatusNotConnected     Status = "not connected"
	StatusConnectionFailed Status = "connection failed"
)

// Conn owns the process-wide Storage handle. It starts disconnected, dials with
// the retry policy and hands the handle out to callers once connected.
// A Conn is injected into the layers that need storage instead of living in a global.
type Conn struct {
	backend     string
	dial        Dialer
	policy      retry.Policy
	log         zerolog.Logger
	pingTimeout time.Duration

	mu    sync.RWMutex
	store Storage
}

// ConnOption customizes a Conn.
type ConnOption func(*Conn)

// WithPingTimeout bounds the ping used by Status.
func WithPingTimeout(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// NewConn returns a disconnected Conn for the named backend.
func NewConn(backend string, dial Dialer, policy retry.Policy, log zerolog.Logger, opts ...ConnOption) *Conn {
	c := &Conn{
		backend:     backend,
		dial:        dial,
		policy:      policy,
		log:         log.With().Str("component", "storage").Str("backend", backend).Logger(),
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the store, retrying per the policy. It returns a *ConnectionError
// when every attempt failed and is a no-op when already connected.
func (c *Conn) Connect(ctx context.Context) error {
	if _, err := c.Store(); err == nil {
		return nil
	}

	attempts := 0
	start := time.Now()
	store, err := retry.Do(ctx, c.policy, func(ctx context.Context) (Storage, error) {
		attempts++
		return c.dial(ctx)
	}, func(attempt int, err error, next time.Duration) {
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("storage_connect_retry")
	})
	if err != nil {
		c.log.Error().Err(err).Int("attempts", attempts).Msg("storage_connect_failed")
		return &ConnectionError{Backend: c.backend, Attempts: attempts, Err: err}
	}

	c.mu.Lock()
	if c.store != nil {
		c.mu.Unlock()
		_ = store.Close()
		return nil
	}
	c.store = store
	c.mu.Unlock()

	c.log.Info().Int("attempts", attempts).Int64("duration_ms", time.Since(start).Milliseconds()).Msg("storage_connected")
	return nil
}

// Store returns the connected handle or ErrNotConnected.
func (c *Conn) Store() (Storage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return nil, ErrNotConnected
	}
	return c.store, nil
}

// Status pings the store. It never fails; problems are folded into the result.
func (c *Conn) Status(ctx context.Context) Status {
	store, err := c.Store()
	if err != nil {
		return StatusNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		c.log.Warn().Err(err).Msg("storage_ping_failed")
		return StatusConnectionFailed
	}
	return StatusConnected
}

// Watch re-dials every interval while disconnected, until ctx is done.
func (c *Conn) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := c.Store(); err != nil {
				_ = c.Connect(ctx)
			}
		}
	}
}

// Close releases the handle, leaving the Conn disconnected.
func (c *Conn) Close() error {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.Close()
}
