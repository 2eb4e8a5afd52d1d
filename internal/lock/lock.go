// Package lock provides the single-writer guard taken around a replace.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTimeout is returned when the lock could not be taken before ctx expired.
var ErrTimeout = errors.New("lock: timed out waiting for writer lock")

// Locker serializes writers. Lock blocks until the lock is held or ctx is done;
// the returned func releases it and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}

// Local is an in-process Locker backed by a one-slot channel semaphore.
type Local struct {
	sem chan struct{}
}

// NewLocal returns an unlocked Local.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

func (l *Local) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, waitErr(ctx)
	}
	var once sync.Once
	return func() { once.Do(func() { <-l.sem }) }, nil
}

func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("lock: %w", ctx.Err())
}
