package app

import (
	"context"
	"sync"
	"time"

	"github.com/evanschultz/boardsync/internal/domain"
)

// Loop serializes every engine access onto one goroutine, giving the engine
// the run-to-completion semantics of a UI event loop.
type Loop struct {
	engine *Engine
	sweep  time.Duration
	work   chan func()

	once sync.Once
	done chan struct{}
}

// NewLoop constructs a loop. A positive sweep interval expires pending edits.
func NewLoop(engine *Engine, sweep time.Duration) *Loop {
	return &Loop{
		engine: engine,
		sweep:  sweep,
		work:   make(chan func()),
		done:   make(chan struct{}),
	}
}

// Run processes submitted work until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	var tick <-chan time.Time
	if l.sweep > 0 {
		ticker := time.NewTicker(l.sweep)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.work:
			fn()
		case <-tick:
			l.engine.Sweep()
		}
	}
}

// Do runs fn on the loop goroutine and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func(*Engine) error) error {
	result := make(chan error, 1)
	job := func() { result <- fn(l.engine) }
	select {
	case l.work <- job:
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish applies an inbound event on the loop.
func (l *Loop) Publish(ctx context.Context, ev domain.Inbound) error {
	return l.Do(ctx, func(e *Engine) error {
		e.Apply(ev)
		return nil
	})
}
