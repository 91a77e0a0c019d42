package store

import (
	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

// purgeDirectoryLocked tears down key and every cached container below it:
// listings, watches, expansion, selection and remembered expansion. The
// subtree is walked with an explicit stack and purged children first.
// Unknown keys are a no-op.
func (s *Store) purgeDirectoryLocked(d *draft, key string) {
	order := make([]string, 0, 8)
	seen := keySet{}
	stack := []string{key}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		order = append(order, k)
		for _, child := range d.childKeyMap[k] {
			if s.isContainer(child) {
				stack = append(stack, child)
			}
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		k := order[i]
		d.deleteChildKeys(k)
		d.setDirty(k, false)
		// an in-flight fetch for a purged key must not resurrect it
		d.deleteLoading(k)
		s.releaseAllLocked(d, k)
		for _, root := range d.rootKeys {
			d.removeExpanded(root, k)
			d.deletePrevExpanded(root, k)
		}
		s.unselectSubtreeLocked(d, k)
		if d.tracked != nil && d.tracked.Key == k {
			d.setTracked(nil)
		}
	}

	logger := util.GetLogger("PurgeCascade")
	logger.Trace().Str("key", key).Int("purged", len(order)).Msg("Purged directory")
}

// purgeLeafLocked removes a vanished leaf from every selection
func (s *Store) purgeLeafLocked(d *draft, key string) {
	for root := range d.selected {
		d.filterSelected(root, func(k string) bool { return k == key })
	}
}

// unselectSubtreeLocked removes key and, for containers, every descendant
// from all selections
func (s *Store) unselectSubtreeLocked(d *draft, key string) {
	for root := range d.selected {
		d.filterSelected(root, func(k string) bool {
			return k == key || filetree.IsAncestor(key, k)
		})
	}
}

// purgeRootLocked drops everything registered under root. Watches are
// released respecting references from other roots. The root's own listing
// and those of its immediate containers are forgotten so a re-added root
// is fetched from scratch.
func (s *Store) purgeRootLocked(d *draft, root string) {
	for _, k := range d.ExpandedKeys(root) {
		s.releaseLocked(d, root, k)
	}
	d.deleteExpandedRoot(root)
	d.deleteSelectedRoot(root)
	d.deleteVcsRoot(root)
	d.deletePrevRoot(root)

	for _, child := range d.childKeyMap[root] {
		if s.isContainer(child) {
			d.deleteChildKeys(child)
			d.setDirty(child, false)
		}
	}
	d.deleteChildKeys(root)
	d.setDirty(root, false)

	if d.tracked != nil && d.tracked.RootKey == root {
		d.setTracked(nil)
	}
	logger := util.GetLogger("PurgeCascade")
	logger.Debug().Str("root", root).Msg("Purged root")
}

// dropOrphanedFetchesLocked forgets in-flight fetches for keys no longer
// under any root so their results are discarded on completion
func (s *Store) dropOrphanedFetchesLocked(d *draft) {
	for key := range d.loading {
		if _, ok := d.RootForKey(key); !ok {
			d.deleteLoading(key)
		}
	}
}
