package store

import (
	"slices"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

// Action is a mutation request accepted by [Store.Dispatch]
type Action interface {
	apply(s *Store, d *draft)
}

// SetRoots replaces the ordered root list. Removed roots are purged.
type SetRoots struct {
	Keys []string
}

// Expand expands a container under Root, fetching its children if they are
// unknown or dirty and restoring descendants expanded before its last
// collapse.
type Expand struct {
	Root string
	Key  string
}

// Collapse collapses Key under Root, remembering which descendants were
// expanded and deselecting everything below it.
type Collapse struct {
	Root string
	Key  string
}

// SetSelection replaces Root's selection with the ordered set Keys
type SetSelection struct {
	Root string
	Keys []string
}

// SetSelectionForest replaces the selection of every root at once. Roots
// missing from Selection end up with nothing selected.
type SetSelectionForest struct {
	Selection map[string][]string
}

// DeleteSelected clears the selection and deletes every previously selected
// node through the store's [filetree.Deleter].
type DeleteSelected struct{}

// CreateChild records a newly created Child under Parent without a refetch
type CreateChild struct {
	Parent string
	Child  string
}

// SetVcsStatus replaces Root's VCS status annotations
type SetVcsStatus struct {
	Root   string
	Status map[string]filetree.StatusCode
}

// SetTrackedNode marks the node consumers should scroll to. Changes are
// notified immediately.
type SetTrackedNode struct {
	Root string
	Key  string
}

// ClearTrackedNode drops the tracked node
type ClearTrackedNode struct{}

// Reset disposes every subscription and returns to an empty snapshot
type Reset struct{}

func (a SetRoots) apply(s *Store, d *draft) {
	keys := uniqueKeys(a.Keys)
	if slices.Equal(keys, d.rootKeys) {
		return
	}
	var removed []string
	for _, root := range d.rootKeys {
		if !slices.Contains(keys, root) {
			removed = append(removed, root)
		}
	}
	d.setRoots(keys)
	for _, root := range removed {
		s.purgeRootLocked(d, root)
	}
	s.dropOrphanedFetchesLocked(d)
	logger := util.GetLogger("Store.SetRoots")
	logger.Debug().Strs("roots", keys).Strs("removed", removed).Msg("Roots updated")
}

func (a Expand) apply(s *Store, d *draft) {
	if !d.hasRoot(a.Root) || !s.isContainer(a.Key) || !filetree.IsAncestor(a.Root, a.Key) {
		return
	}
	s.expandLocked(d, a.Root, a.Key)
}

func (s *Store) expandLocked(d *draft, root, key string) {
	stack := []string{key}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		d.addExpanded(root, k)
		s.ensureLoadedLocked(d, k)
		prev, ok := d.prevExpanded[root][k]
		if !ok {
			continue
		}
		d.deletePrevExpanded(root, k)
		for _, child := range prev {
			if s.isContainer(child) && filetree.IsAncestor(k, child) && !d.IsExpanded(root, child) {
				stack = append(stack, child)
			}
		}
	}
}

func (a Collapse) apply(s *Store, d *draft) {
	s.collapseLocked(d, a.Root, a.Key)
}

func (s *Store) collapseLocked(d *draft, root, key string) {
	if !d.IsExpanded(root, key) {
		return
	}
	d.filterSelected(root, func(k string) bool {
		return k != key && filetree.IsAncestor(key, k)
	})
	stack := []string{key}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		var expandedChildren []string
		for _, child := range d.childKeyMap[k] {
			if s.isContainer(child) && d.IsExpanded(root, child) {
				expandedChildren = append(expandedChildren, child)
				stack = append(stack, child)
			}
		}
		if len(expandedChildren) > 0 {
			d.setPrevExpanded(root, k, expandedChildren)
		}
		s.releaseLocked(d, root, k)
	}
	// expanded descendants not reachable through cached listings
	for _, k := range d.ExpandedKeys(root) {
		if filetree.IsAncestor(key, k) {
			s.releaseLocked(d, root, k)
		}
	}
}

func (a SetSelection) apply(s *Store, d *draft) {
	if !d.hasRoot(a.Root) {
		return
	}
	d.setSelected(a.Root, uniqueKeys(a.Keys))
}

func (a SetSelectionForest) apply(s *Store, d *draft) {
	for root := range d.selected {
		if _, ok := a.Selection[root]; !ok {
			d.setSelected(root, nil)
		}
	}
	for _, root := range d.rootKeys {
		d.setSelected(root, uniqueKeys(a.Selection[root]))
	}
}

func (a DeleteSelected) apply(s *Store, d *draft) {
	logger := util.GetLogger("Store.DeleteSelected")
	var keys []string
	for _, root := range d.rootKeys {
		for _, k := range d.selected[root] {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	if len(keys) == 0 {
		return
	}
	if s.deleter == nil {
		logger.Warn().Strs("keys", keys).Msg("No deleter configured; ignoring delete request")
		return
	}
	for _, root := range d.rootKeys {
		d.setSelected(root, nil)
	}
	for _, key := range keys {
		d.after(func() { go s.runDelete(key) })
	}
	logger.Debug().Strs("keys", keys).Msg("Deleting selected nodes")
}

func (s *Store) runDelete(key string) {
	if err := s.deleter.Delete(s.ctx, key); err != nil {
		logger := util.GetLogger("Store.DeleteSelected")
		logger.Error().Err(err).Str("key", key).Msg("Failed to delete node")
		return
	}
	s.Dispatch(deleteCompleted{key: key})
}

// deleteCompleted drops a deleted node from its parent listing and purges it
type deleteCompleted struct {
	key string
}

func (a deleteCompleted) apply(s *Store, d *draft) {
	parent := filetree.ParentKey(a.key)
	if children, ok := d.childKeyMap[parent]; ok && slices.Contains(children, a.key) {
		d.setChildKeys(parent, slices.DeleteFunc(slices.Clone(children), func(k string) bool { return k == a.key }))
	}
	if s.isContainer(a.key) {
		s.purgeDirectoryLocked(d, a.key)
	} else {
		s.purgeLeafLocked(d, a.key)
	}
}

func (a CreateChild) apply(s *Store, d *draft) {
	if !s.isContainer(a.Parent) || a.Child == a.Parent || !filetree.IsAncestor(a.Parent, a.Child) {
		return
	}
	children, ok := d.childKeyMap[a.Parent]
	if !ok {
		// seeded listing is partial until fetched
		d.setChildKeys(a.Parent, []string{a.Child})
		d.setDirty(a.Parent, true)
		return
	}
	if slices.Contains(children, a.Child) {
		return
	}
	d.setChildKeys(a.Parent, append(slices.Clone(children), a.Child))
}

func (a SetVcsStatus) apply(s *Store, d *draft) {
	if !d.hasRoot(a.Root) {
		return
	}
	d.setVcsStatus(a.Root, a.Status)
}

func (a SetTrackedNode) apply(s *Store, d *draft) {
	if !d.hasRoot(a.Root) || !filetree.IsAncestor(a.Root, a.Key) {
		return
	}
	d.setTracked(&TrackedNode{RootKey: a.Root, Key: a.Key})
}

func (a ClearTrackedNode) apply(s *Store, d *draft) {
	d.setTracked(nil)
}

func (a Reset) apply(s *Store, d *draft) {
	s.disposeAllLocked(d)
	d.replace(newSnapshot())
}

// uniqueKeys returns keys without duplicates, keeping first occurrence order
func uniqueKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}
