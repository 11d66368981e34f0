package asyncx

import (
	"context"
	"errors"
	"sync"
)

// Pool hands out exclusively owned resources. A resource is used by one
// caller at a time and returned with Release.
type Pool[R any] struct {
	free  chan R
	all   []R
	close sync.Once
}

// NewPool creates a pool over resources
func NewPool[R any](resources ...R) *Pool[R] {
	p := &Pool[R]{free: make(chan R, len(resources)), all: resources}
	for _, r := range resources {
		p.free <- r
	}
	return p
}

// Len is the number of resources in the pool
func (p *Pool[R]) Len() int { return len(p.all) }

// Members returns every resource, free or not
func (p *Pool[R]) Members() []R { return append([]R(nil), p.all...) }

// Acquire blocks until a resource is free or ctx is done
func (p *Pool[R]) Acquire(ctx context.Context) (R, error) {
	select {
	case r := <-p.free:
		return r, nil
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Release returns a resource taken with Acquire
func (p *Pool[R]) Release(r R) {
	p.free <- r
}

// With runs fn with an acquired resource
func (p *Pool[R]) With(ctx context.Context, fn func(R) error) error {
	r, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(r)
	return fn(r)
}

// Close calls closeFn on every resource once
func (p *Pool[R]) Close(closeFn func(R) error) error {
	var errs []error
	p.close.Do(func() {
		for _, r := range p.all {
			if err := closeFn(r); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
