// Package store implements the hierarchical tree state cache: an immutable
// Snapshot swapped atomically by a single serialized dispatcher, with
// deduplicated asynchronous child fetches, reference-counted watch
// subscriptions, cascade purging and debounced change notification.
package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/config"
)

// Store owns the tree cache for one session. Mutations go through
// [Store.Dispatch] and are applied one at a time; queries read the current
// Snapshot without locking.
type Store struct {
	mu   sync.Mutex // serializes dispatch
	snap atomic.Pointer[Snapshot]

	lister       filetree.Lister
	watcher      filetree.Watcher
	deleter      filetree.Deleter
	classifier   filetree.Classifier
	notifier     *Notifier
	fetchTimeout time.Duration
	session      string

	// keys whose watch acquisition failed; they stay unwatched for the life
	// of the store
	unwatchable *xsync.Map[string, error]

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures optional collaborators of a [Store]
type Option func(s *Store)

// WithWatcher enables watch based invalidation of expanded nodes
func WithWatcher(w filetree.Watcher) Option {
	return func(s *Store) { s.watcher = w }
}

// WithDeleter enables [DeleteSelected]
func WithDeleter(del filetree.Deleter) Option {
	return func(s *Store) { s.deleter = del }
}

// WithClassifier overrides the container classifier derived from config
func WithClassifier(c filetree.Classifier) Option {
	return func(s *Store) { s.classifier = c }
}

// New creates an empty Store listing children through lister.
// A nil cfg uses [config.NewDefaultConfig].
func New(cfg *config.Config, lister filetree.Lister, opts ...Option) *Store {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		lister:       lister,
		classifier:   filetree.NewSuffixClassifier(cfg.ContainerSuffix),
		notifier:     NewNotifier(cfg.DebounceInterval),
		fetchTimeout: cfg.FetchTimeout,
		session:      newSessionID(),
		unwatchable:  xsync.NewMap[string, error](),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(newSnapshot())
	return s
}

// Snapshot returns the current immutable state
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Dispatch applies action and reports whether it changed the state.
// Actions are applied strictly in submission order.
func (s *Store) Dispatch(action Action) bool {
	return s.update(func(d *draft) { action.apply(s, d) })
}

// Subscribe registers fn for the coalesced change signal. Dispose the
// returned handle to unsubscribe.
func (s *Store) Subscribe(fn func()) filetree.Handle {
	return s.notifier.Subscribe(fn)
}

// Close disposes every subscription, stops pending notifications and
// cancels in-flight fetches. The store must not be used afterwards.
func (s *Store) Close() {
	s.Dispatch(Reset{})
	s.cancel()
	s.notifier.Stop()
}

// update runs fn against a draft of the current snapshot under the dispatch
// lock, publishes the result and then runs queued side effects and
// notification outside the lock.
func (s *Store) update(fn func(d *draft)) bool {
	s.mu.Lock()
	base := s.snap.Load()
	d := newDraft(base)
	fn(d)
	next := d.commit()
	if next != base {
		s.snap.Store(next)
	}
	s.mu.Unlock()

	for _, effect := range d.effects {
		effect()
	}
	if next == base {
		return false
	}
	if d.flush {
		s.notifier.Flush()
	} else {
		s.notifier.Schedule()
	}
	return true
}

// WaitIdle blocks until no fetch is in flight or ctx is done
func (s *Store) WaitIdle(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	h := s.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer h.Dispose()

	for {
		if s.IsIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (s *Store) isContainer(key string) bool {
	return s.classifier.IsContainer(key)
}
