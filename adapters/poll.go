package adapters

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

// PollWatcher implements [filetree.Watcher] for sources without native
// change events by re-listing each watched key every interval.
type PollWatcher struct {
	lister   filetree.Lister
	interval time.Duration
	active   *xsync.Map[uint64, string]
	lastID   atomic.Uint64
}

func NewPollWatcher(lister filetree.Lister, interval time.Duration) *PollWatcher {
	return &PollWatcher{
		lister:   lister,
		interval: interval,
		active:   xsync.NewMap[uint64, string](),
	}
}

// Watch starts polling key. onChange fires from the polling goroutine
// whenever the listing differs from the previous poll, or once when the
// key stops being listable.
func (w *PollWatcher) Watch(key string, onChange func()) (filetree.Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	id := w.lastID.Add(1)
	w.active.Store(id, key)
	go w.poll(ctx, key, onChange)

	var once sync.Once
	return filetree.HandleFunc(func() {
		once.Do(func() {
			cancel()
			w.active.Delete(id)
		})
	}), nil
}

// Active returns the number of undisposed watches
func (w *PollWatcher) Active() int {
	return w.active.Size()
}

func (w *PollWatcher) poll(ctx context.Context, key string, onChange func()) {
	logger := util.GetLogger("PollWatcher")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	prev, err := w.list(ctx, key)
	listable := err == nil
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur, err := w.list(ctx, key)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("Poll failed")
			if listable {
				listable = false
				onChange()
			}
			continue
		}
		if !listable || !slices.Equal(prev, cur) {
			logger.Trace().Str("key", key).Msg("Change detected")
			onChange()
		}
		prev, listable = cur, true
	}
}

func (w *PollWatcher) list(ctx context.Context, key string) ([]string, error) {
	keys, err := w.lister.List(ctx, key)
	if err != nil {
		return nil, err
	}
	keys = slices.Clone(keys)
	slices.Sort(keys)
	return keys, nil
}

var _ filetree.Watcher = (*PollWatcher)(nil)
