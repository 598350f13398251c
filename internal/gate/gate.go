// Package gate provides a binary mutual-exclusion primitive whose waits
// honour context cancellation.
package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Releaser gives back an acquired gate. Release is safe to call more than
// once and on every exit path, so callers can simply defer it.
type Releaser interface {
	Release()
}

// Gate is a counting semaphore of weight one.
type Gate struct {
	sem    *semaphore.Weighted
	locked atomic.Bool
}

// New returns an unlocked gate.
func New() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Lock blocks until the gate is acquired or ctx is done.
func (g *Gate) Lock(ctx context.Context) (Releaser, error) {
	if err := ctx.Err(); err != nil {
		return noop{}, err
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return noop{}, err
	}
	g.locked.Store(true)
	return &handle{gate: g}, nil
}

// TryLock waits at most timeout for the gate. When it is not acquired the
// returned Releaser does nothing. A done ctx never acquires, even a free gate.
func (g *Gate) TryLock(ctx context.Context, timeout time.Duration) (Releaser, bool) {
	if ctx.Err() != nil {
		return noop{}, false
	}
	if g.sem.TryAcquire(1) {
		g.locked.Store(true)
		return &handle{gate: g}, true
	}
	if timeout <= 0 {
		return noop{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r, err := g.Lock(ctx)
	if err != nil {
		return noop{}, false
	}
	return r, true
}

// IsLocked reports whether the gate is currently held. It is only a
// snapshot for diagnostics and tests.
func (g *Gate) IsLocked() bool {
	return g.locked.Load()
}

type handle struct {
	gate *Gate
	once sync.Once
}

func (h *handle) Release() {
	h.once.Do(func() {
		h.gate.locked.Store(false)
		h.gate.sem.Release(1)
	})
}

type noop struct{}

func (noop) Release() {}
