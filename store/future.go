package store

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// Future is the pending result of a single listing request. Concurrent
// fetches for the same key share one Future.
type Future struct {
	id   uuid.UUID
	key  string
	done chan struct{}
	keys []string
	err  error
}

func newFuture(key string) *Future {
	return &Future{id: uuid.New(), key: key, done: make(chan struct{})}
}

// newResolvedFuture returns an already completed Future
func newResolvedFuture(key string, keys []string, err error) *Future {
	f := newFuture(key)
	f.resolve(keys, err)
	return f
}

func (f *Future) resolve(keys []string, err error) {
	f.keys = keys
	f.err = err
	close(f.done)
}

// Key returns the node key being listed
func (f *Future) Key() string {
	return f.key
}

// Done is closed once the result has been applied to the store
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the fetch completes or ctx is done.
func (f *Future) Wait(ctx context.Context) ([]string, error) {
	select {
	case <-f.done:
		return slices.Clone(f.keys), f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
