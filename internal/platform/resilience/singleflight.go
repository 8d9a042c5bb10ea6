package resilience

import (
	"context"
	"sync"
	"time"
)

// SingleFlight deduplicates concurrent calls for the same key. Callers that
// join an in-flight call receive the leader's result; a joining caller whose
// context ends stops waiting without affecting the leader.
type SingleFlight[T any] struct {
	mu    sync.Mutex
	calls map[string]*call[T]
}

type call[T any] struct {
	done chan struct{}
	val  T
	err  error
	dups int
}

func (g *SingleFlight[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[T])
	}

	if c, ok := g.calls[key]; ok {
		c.dups++
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err(), true
		}
	}

	c := &call[T]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	shared := false
	func() {
		defer func() {
			g.mu.Lock()
			delete(g.calls, key)
			shared = c.dups > 0
			g.mu.Unlock()
			close(c.done)
		}()
		c.val, c.err = fn(ctx)
	}()

	return c.val, c.err, shared
}

// DoDetached is Do for work that must outlive the caller that started it. fn
// runs under a context detached from every caller and bounded by timeout;
// each caller, the first one included, stops waiting when its own context
// ends while fn keeps running for the others.
func (g *SingleFlight[T]) DoDetached(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[T])
	}
	c, joined := g.calls[key]
	if joined {
		c.dups++
	} else {
		c = &call[T]{done: make(chan struct{})}
		g.calls[key] = c
	}
	g.mu.Unlock()

	if !joined {
		base := context.WithoutCancel(ctx)
		var (
			runCtx context.Context
			cancel context.CancelFunc
		)
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(base, timeout)
		} else {
			runCtx, cancel = context.WithCancel(base)
		}
		go func() {
			defer cancel()
			defer func() {
				g.mu.Lock()
				delete(g.calls, key)
				g.mu.Unlock()
				close(c.done)
			}()
			c.val, c.err = fn(runCtx)
		}()
	}

	select {
	case <-c.done:
		g.mu.Lock()
		shared := joined || c.dups > 0
		g.mu.Unlock()
		return c.val, c.err, shared
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err(), joined
	}
}

// InFlight reports whether a call for key is currently running.
func (g *SingleFlight[T]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}
