package store

import (
	"github.com/brettbedarf/filetree/internal/util"
)

// Watch handles are reference counted by the set of roots that currently
// expand a key: the handle is acquired when the first root expands it and
// disposed when the last one stops.

// acquireLocked starts watching key if it is not already watched.
// Acquisition failures are logged and leave key permanently unwatched.
func (s *Store) acquireLocked(d *draft, key string) {
	if s.watcher == nil || d.IsSubscribed(key) {
		return
	}
	if _, failed := s.unwatchable.Load(key); failed {
		return
	}
	logger := util.GetLogger("SubscriptionManager")

	handle, err := s.watcher.Watch(key, func() { s.onWatchChange(key) })
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to watch node; continuing unwatched")
		s.unwatchable.Store(key, err)
		return
	}
	d.setSubscription(key, &subscription{handle: handle})
	logger.Trace().Str("key", key).Msg("Watching node")
}

// onWatchChange refetches key after an external change signal
func (s *Store) onWatchChange(key string) {
	s.update(func(d *draft) {
		if !d.IsSubscribed(key) {
			return
		}
		s.fetchLocked(d, key)
	})
}

// releaseLocked drops root's reference to key. When no other root still
// expands key its watch is disposed and its listing marked dirty, since no
// further invalidation will arrive.
func (s *Store) releaseLocked(d *draft, root, key string) {
	d.removeExpanded(root, key)
	if d.isExpandedAnywhere(key) {
		return
	}
	if sub, ok := d.subscriptions[key]; ok {
		d.deleteSubscription(key)
		d.after(sub.dispose)
	}
	if _, cached := d.childKeyMap[key]; cached {
		d.setDirty(key, true)
	}
}

// releaseAllLocked disposes key's watch regardless of references
func (s *Store) releaseAllLocked(d *draft, key string) {
	if sub, ok := d.subscriptions[key]; ok {
		d.deleteSubscription(key)
		d.after(sub.dispose)
	}
}

// disposeAllLocked queues disposal of every held watch
func (s *Store) disposeAllLocked(d *draft) {
	for _, sub := range d.subscriptions {
		d.after(sub.dispose)
	}
}
