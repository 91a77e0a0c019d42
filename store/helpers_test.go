package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/util"
)

// fakeLister serves listings from memory and counts calls per key. When gate
// is set every List call blocks until it is closed.
type fakeLister struct {
	mu       sync.Mutex
	listings map[string][]string
	errs     map[string]error
	calls    map[string]int
	gate     chan struct{}
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		listings: map[string][]string{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (l *fakeLister) set(key string, children ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listings[key] = children
	delete(l.errs, key)
}

func (l *fakeLister) fail(key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[key] = err
}

func (l *fakeLister) hold() chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gate = make(chan struct{})
	return l.gate
}

func (l *fakeLister) callCount(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[key]
}

func (l *fakeLister) List(ctx context.Context, key string) ([]string, error) {
	l.mu.Lock()
	l.calls[key]++
	gate := l.gate
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.errs[key]; err != nil {
		return nil, err
	}
	children, ok := l.listings[key]
	if !ok {
		return nil, fmt.Errorf("no such node: %s", key)
	}
	return slices.Clone(children), nil
}

// fakeWatcher records watch attempts and disposals and lets tests fire
// change callbacks.
type fakeWatcher struct {
	mu        sync.Mutex
	callbacks map[string]func()
	watches   map[string]int
	disposed  map[string]int
	errs      map[string]error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		callbacks: map[string]func(){},
		watches:   map[string]int{},
		disposed:  map[string]int{},
		errs:      map[string]error{},
	}
}

func (w *fakeWatcher) Watch(key string, onChange func()) (filetree.Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watches[key]++
	if err := w.errs[key]; err != nil {
		return nil, err
	}
	w.callbacks[key] = onChange
	return filetree.HandleFunc(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.disposed[key]++
		delete(w.callbacks, key)
	}), nil
}

func (w *fakeWatcher) trigger(key string) {
	w.mu.Lock()
	cb := w.callbacks[key]
	w.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (w *fakeWatcher) watchCount(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watches[key]
}

func (w *fakeWatcher) disposeCount(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disposed[key]
}

func createTestConfig() *config.Config {
	return config.NewConfig(&config.ConfigOverride{
		DebounceInterval: util.Pointer(5),
		FetchTimeout:     util.Pointer(2000),
	})
}

func newTestStore(t *testing.T, lister filetree.Lister, opts ...Option) *Store {
	t.Helper()
	s := New(createTestConfig(), lister, opts...)
	t.Cleanup(s.Close)
	return s
}

func waitIdle(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitIdle(ctx))
}

// sampleTree seeds a lister with:
//
//	/a/
//	├── x/
//	│   ├── z/
//	│   │   └── deep.txt
//	│   └── x.txt
//	└── y.txt
func sampleTree() *fakeLister {
	l := newFakeLister()
	l.set("/a/", "/a/x/", "/a/y.txt")
	l.set("/a/x/", "/a/x/z/", "/a/x/x.txt")
	l.set("/a/x/z/", "/a/x/z/deep.txt")
	l.set("/b/", "/b/q.txt")
	return l
}

// expandAll expands keys under root in order, waiting for each fetch
func expandAll(t *testing.T, s *Store, root string, keys ...string) {
	t.Helper()
	for _, key := range keys {
		s.Dispatch(Expand{Root: root, Key: key})
		waitIdle(t, s)
	}
}
