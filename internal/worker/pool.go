// Package worker provides a bounded-concurrency pool for independent event
// runs. One run failing must not cancel its siblings, so errors are collected
// rather than propagated through group cancellation.
package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one submitted task.
type Result struct {
	Name string
	Err  error
}

// Pool runs tasks with at most Limit running concurrently.
type Pool struct {
	group   *errgroup.Group
	ctx     context.Context
	mu      sync.Mutex
	results []Result
}

// NewPool creates a pool bounded at limit concurrent tasks.
func NewPool(ctx context.Context, limit int) *Pool {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	return &Pool{group: g, ctx: ctx}
}

// Go submits a named task. The task's error is recorded, not returned from
// the group, so sibling tasks keep running.
func (p *Pool) Go(name string, fn func(ctx context.Context) error) {
	p.group.Go(func() error {
		err := fn(p.ctx)
		p.mu.Lock()
		p.results = append(p.results, Result{Name: name, Err: err})
		p.mu.Unlock()
		return nil
	})
}

// Wait blocks until every submitted task finished and returns their results.
func (p *Pool) Wait() []Result {
	_ = p.group.Wait()
	return p.results
}
