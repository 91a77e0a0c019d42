package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

// Fetch lists key's children unless a fetch for key is already in flight,
// in which case the pending Future is returned. It never blocks on the
// listing itself.
func (s *Store) Fetch(key string) *Future {
	if !s.isContainer(key) {
		return newResolvedFuture(key, nil, fmt.Errorf("%w: %s", filetree.ErrNotContainer, key))
	}
	var f *Future
	s.update(func(d *draft) { f = s.fetchLocked(d, key) })
	return f
}

// fetchLocked registers a fetch for key in the draft and schedules the
// listing call to start once the draft is published
func (s *Store) fetchLocked(d *draft, key string) *Future {
	if f, ok := d.loading[key]; ok {
		return f
	}
	f := newFuture(key)
	d.setLoading(key, f)
	d.after(func() { go s.runFetch(f) })
	return f
}

func (s *Store) runFetch(f *Future) {
	logger := util.GetLogger("ChildFetcher")
	logger.Debug().Str("key", f.key).Str("request_id", f.id.String()).Msg("Fetching children")

	ctx := s.ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	keys, err := s.lister.List(ctx, f.key)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", filetree.ErrFetch, f.key, err)
	}
	// completion is dispatched like any other mutation before waiters wake
	s.Dispatch(fetchCompleted{future: f, keys: keys, err: err})
	f.resolve(keys, err)
}

// fetchCompleted installs (or discards) the result of a listing request
type fetchCompleted struct {
	future *Future
	keys   []string
	err    error
}

func (a fetchCompleted) apply(s *Store, d *draft) {
	logger := util.GetLogger("ChildFetcher")
	key := a.future.key
	if d.loading[key] != a.future {
		// key was purged or the store reset while the fetch was in flight
		logger.Debug().Str("key", key).Str("request_id", a.future.id.String()).Msg("Discarding stale fetch result")
		return
	}
	d.deleteLoading(key)

	root, ok := d.RootForKey(key)
	if !ok {
		logger.Debug().Str("key", key).Msg("Discarding fetch result for key outside every root")
		return
	}
	if a.err != nil {
		logger.Error().Err(a.err).Str("key", key).Str("root", root).Msg("Failed to fetch children")
		s.collapseLocked(d, root, key)
		return
	}

	s.installChildKeysLocked(d, key, a.keys)
	// an unexpanded key holds no watch, so its listing is only a hint until
	// the next expand refetches it
	expanded := d.isExpandedAnywhere(key)
	d.setDirty(key, !expanded)
	if expanded {
		s.acquireLocked(d, key)
	}
	logger.Trace().Str("key", key).Int("children", len(a.keys)).Msg("Installed children")
}

// installChildKeysLocked replaces key's listing, purging any previously
// listed children that disappeared
func (s *Store) installChildKeysLocked(d *draft, key string, children []string) {
	if old, ok := d.childKeyMap[key]; ok {
		for _, gone := range old {
			if slices.Contains(children, gone) {
				continue
			}
			if s.isContainer(gone) {
				s.purgeDirectoryLocked(d, gone)
			} else {
				s.purgeLeafLocked(d, gone)
			}
		}
	}
	d.setChildKeys(key, children)
}

// ensureLoadedLocked fetches key when its listing is unknown or dirty and
// otherwise makes sure it is watched
func (s *Store) ensureLoadedLocked(d *draft, key string) {
	if !d.isCacheValid(key) {
		s.fetchLocked(d, key)
		return
	}
	s.acquireLocked(d, key)
}
