package store

import (
	"maps"
	"slices"

	"github.com/brettbedarf/filetree"
)

// draft is a copy-on-write builder for the next Snapshot. Maps are cloned the
// first time a mutation touches them so untouched state stays shared with
// the base snapshot. A draft is only used under the dispatch lock.
type draft struct {
	Snapshot
	base    *Snapshot
	changed bool
	flush   bool     // notify immediately instead of debouncing
	effects []func() // run after commit, outside the dispatch lock

	ownChildKeys, ownDirty, ownLoading, ownExpanded, ownSelected bool
	ownSubscriptions, ownPrevExpanded, ownVcsStatus             bool
	ownedExpandedRoots                                          map[string]bool
	ownedPrevRoots                                              map[string]bool
}

func newDraft(base *Snapshot) *draft {
	return &draft{
		Snapshot:           *base,
		base:               base,
		ownedExpandedRoots: map[string]bool{},
		ownedPrevRoots:     map[string]bool{},
	}
}

// commit returns the base snapshot if nothing changed, otherwise the new one
func (d *draft) commit() *Snapshot {
	if !d.changed {
		return d.base
	}
	next := d.Snapshot
	return &next
}

// after queues fn to run once the new snapshot is published
func (d *draft) after(fn func()) {
	d.effects = append(d.effects, fn)
}

// replace discards all state in favour of snap
func (d *draft) replace(snap *Snapshot) {
	d.Snapshot = *snap
	d.ownChildKeys, d.ownDirty, d.ownLoading, d.ownExpanded, d.ownSelected = true, true, true, true, true
	d.ownSubscriptions, d.ownPrevExpanded, d.ownVcsStatus = true, true, true
	d.ownedExpandedRoots = map[string]bool{}
	d.ownedPrevRoots = map[string]bool{}
	for root := range snap.expanded {
		d.ownedExpandedRoots[root] = true
	}
	d.changed = true
}

func own[M ~map[K]V, K comparable, V any](owned *bool, m *M) M {
	if !*owned {
		c := make(M, len(*m)+1)
		maps.Copy(c, *m)
		*m = c
		*owned = true
	}
	return *m
}

func (d *draft) setRoots(keys []string) {
	d.rootKeys = slices.Clone(keys)
	d.changed = true
}

func (d *draft) setChildKeys(key string, children []string) {
	if old, ok := d.childKeyMap[key]; ok && slices.Equal(old, children) {
		return
	}
	own(&d.ownChildKeys, &d.childKeyMap)[key] = slices.Clone(children)
	d.changed = true
}

func (d *draft) deleteChildKeys(key string) {
	if _, ok := d.childKeyMap[key]; !ok {
		return
	}
	delete(own(&d.ownChildKeys, &d.childKeyMap), key)
	d.changed = true
}

func (d *draft) setDirty(key string, dirty bool) {
	if d.IsDirty(key) == dirty {
		return
	}
	m := own(&d.ownDirty, &d.dirty)
	if dirty {
		m[key] = struct{}{}
	} else {
		delete(m, key)
	}
	d.changed = true
}

func (d *draft) setLoading(key string, f *Future) {
	own(&d.ownLoading, &d.loading)[key] = f
	d.changed = true
}

func (d *draft) deleteLoading(key string) {
	if _, ok := d.loading[key]; !ok {
		return
	}
	delete(own(&d.ownLoading, &d.loading), key)
	d.changed = true
}

// expandedSet returns a mutable expanded set for root
func (d *draft) expandedSet(root string) keySet {
	outer := own(&d.ownExpanded, &d.expanded)
	if !d.ownedExpandedRoots[root] {
		set := make(keySet, len(outer[root])+1)
		maps.Copy(set, outer[root])
		outer[root] = set
		d.ownedExpandedRoots[root] = true
	}
	return outer[root]
}

func (d *draft) addExpanded(root, key string) {
	if d.IsExpanded(root, key) {
		return
	}
	d.expandedSet(root)[key] = struct{}{}
	d.changed = true
}

func (d *draft) removeExpanded(root, key string) {
	if !d.IsExpanded(root, key) {
		return
	}
	delete(d.expandedSet(root), key)
	d.changed = true
}

func (d *draft) deleteExpandedRoot(root string) {
	if _, ok := d.expanded[root]; !ok {
		return
	}
	delete(own(&d.ownExpanded, &d.expanded), root)
	delete(d.ownedExpandedRoots, root)
	d.changed = true
}

func (d *draft) setSelected(root string, keys []string) {
	if slices.Equal(d.selected[root], keys) {
		return
	}
	m := own(&d.ownSelected, &d.selected)
	if len(keys) == 0 {
		delete(m, root)
	} else {
		m[root] = slices.Clone(keys)
	}
	d.changed = true
}

// filterSelected drops every key of root's selection matching drop
func (d *draft) filterSelected(root string, drop func(key string) bool) {
	cur := d.selected[root]
	if !slices.ContainsFunc(cur, drop) {
		return
	}
	kept := slices.DeleteFunc(slices.Clone(cur), drop)
	d.setSelected(root, kept)
}

func (d *draft) deleteSelectedRoot(root string) {
	if _, ok := d.selected[root]; !ok {
		return
	}
	delete(own(&d.ownSelected, &d.selected), root)
	d.changed = true
}

func (d *draft) setSubscription(key string, sub *subscription) {
	own(&d.ownSubscriptions, &d.subscriptions)[key] = sub
	d.changed = true
}

func (d *draft) deleteSubscription(key string) {
	if _, ok := d.subscriptions[key]; !ok {
		return
	}
	delete(own(&d.ownSubscriptions, &d.subscriptions), key)
	d.changed = true
}

func (d *draft) setPrevExpanded(root, key string, children []string) {
	outer := own(&d.ownPrevExpanded, &d.prevExpanded)
	if !d.ownedPrevRoots[root] {
		inner := make(map[string][]string, len(outer[root])+1)
		maps.Copy(inner, outer[root])
		outer[root] = inner
		d.ownedPrevRoots[root] = true
	}
	outer[root][key] = slices.Clone(children)
	d.changed = true
}

func (d *draft) deletePrevExpanded(root, key string) {
	if _, ok := d.prevExpanded[root][key]; !ok {
		return
	}
	outer := own(&d.ownPrevExpanded, &d.prevExpanded)
	inner := make(map[string][]string, len(outer[root]))
	for k, v := range outer[root] {
		if k != key {
			inner[k] = v
		}
	}
	if len(inner) == 0 {
		delete(outer, root)
		delete(d.ownedPrevRoots, root)
	} else {
		outer[root] = inner
		d.ownedPrevRoots[root] = true
	}
	d.changed = true
}

func (d *draft) deletePrevRoot(root string) {
	if _, ok := d.prevExpanded[root]; !ok {
		return
	}
	delete(own(&d.ownPrevExpanded, &d.prevExpanded), root)
	delete(d.ownedPrevRoots, root)
	d.changed = true
}

func (d *draft) setVcsStatus(root string, status map[string]filetree.StatusCode) {
	if cur, ok := d.vcsStatus[root]; ok && maps.Equal(cur, status) {
		return
	}
	own(&d.ownVcsStatus, &d.vcsStatus)[root] = maps.Clone(status)
	d.changed = true
}

func (d *draft) deleteVcsRoot(root string) {
	if _, ok := d.vcsStatus[root]; !ok {
		return
	}
	delete(own(&d.ownVcsStatus, &d.vcsStatus), root)
	d.changed = true
}

func (d *draft) setTracked(node *TrackedNode) {
	if node == nil && d.tracked == nil {
		return
	}
	if node != nil && d.tracked != nil && *node == *d.tracked {
		return
	}
	d.tracked = node
	d.changed = true
	d.flush = true
}
