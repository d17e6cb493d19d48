// Package workpool bounds concurrent execution of CPU/IO heavy request work.
package workpool

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pool is a fixed-size slot pool. Do blocks until a slot frees up or the
// caller's context is cancelled, so burst traffic queues instead of fanning
// out unbounded goroutines.
type Pool struct {
	slots  chan struct{}
	logger *zap.Logger
}

// New builds a pool with the given number of slots.
func New(size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		slots:  make(chan struct{}, size),
		logger: logger,
	}
}

// Do runs fn on an acquired slot. The context both gates the wait for a slot
// and is handed to fn, so client disconnects cancel queued and in-flight work.
func (p *Pool) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.slots <- struct{}{}:
	}
	defer func() { <-p.slots }()

	if wait := time.Since(start); wait > 100*time.Millisecond {
		p.logger.Sugar().Warnw("workpool slot wait", "task", name, "wait", wait)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
