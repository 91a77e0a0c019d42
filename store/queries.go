package store

import (
	"github.com/brettbedarf/filetree"
)

// Node is a read-only view of one node under a root, derived from a Snapshot.
type Node struct {
	RootKey      string
	Key          string
	Name         string
	Depth        int // distance from RootKey; 0 for the root itself
	IsContainer  bool
	IsExpanded   bool
	IsSelected   bool
	IsLoading    bool
	IsCacheValid bool // children are known and not dirty
	VcsStatus    filetree.StatusCode
	HasVcsStatus bool
}

func (s *Store) node(snap *Snapshot, root, key string, depth int) Node {
	status, hasStatus := snap.VcsStatus(root, key)
	return Node{
		RootKey:      root,
		Key:          key,
		Name:         filetree.KeyName(key),
		Depth:        depth,
		IsContainer:  s.isContainer(key),
		IsExpanded:   snap.IsExpanded(root, key),
		IsSelected:   snap.IsSelected(root, key),
		IsLoading:    snap.IsLoading(key),
		IsCacheValid: snap.isCacheValid(key),
		VcsStatus:    status,
		HasVcsStatus: hasStatus,
	}
}

// GetChildKeys returns key's cached children. When they are unknown or
// dirty a fetch is started as a side effect and the (possibly empty)
// cached value is returned immediately.
func (s *Store) GetChildKeys(root, key string) []string {
	snap := s.Snapshot()
	if s.isContainer(key) && !snap.isCacheValid(key) {
		s.Fetch(key)
	}
	children, _ := snap.CachedChildKeys(key)
	return children
}

// GetCachedChildKeys returns key's cached children without ever fetching
func (s *Store) GetCachedChildKeys(root, key string) []string {
	children, _ := s.Snapshot().CachedChildKeys(key)
	return children
}

// GetVisibleNodes lists the nodes shown under root in display order: a
// depth first walk that descends only into expanded containers whose
// children are known and not dirty. It never fetches.
func (s *Store) GetVisibleNodes(root string) []Node {
	snap := s.Snapshot()
	if !snap.hasRoot(root) {
		return nil
	}
	type entry struct {
		key   string
		depth int
	}
	var visible []Node
	seen := keySet{}
	stack := []entry{{root, 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[e.key]; ok {
			continue
		}
		seen[e.key] = struct{}{}
		visible = append(visible, s.node(snap, root, e.key, e.depth))

		if !s.isContainer(e.key) || !snap.IsExpanded(root, e.key) || !snap.isCacheValid(e.key) {
			continue
		}
		children := snap.childKeyMap[e.key]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, entry{children[i], e.depth + 1})
		}
	}
	return visible
}

// GetSelectedNodes unions the selection of every root, in root order
func (s *Store) GetSelectedNodes() []Node {
	snap := s.Snapshot()
	var nodes []Node
	for _, root := range snap.rootKeys {
		for _, key := range snap.selected[root] {
			nodes = append(nodes, s.node(snap, root, key, depthBelow(root, key)))
		}
	}
	return nodes
}

// GetSingleSelectedNode returns the selected node only when exactly one
// root has a selection and it holds exactly one key
func (s *Store) GetSingleSelectedNode() (Node, bool) {
	snap := s.Snapshot()
	var (
		found Node
		roots int
	)
	for _, root := range snap.rootKeys {
		keys := snap.selected[root]
		if len(keys) == 0 {
			continue
		}
		roots++
		if roots > 1 || len(keys) != 1 {
			return Node{}, false
		}
		found = s.node(snap, root, keys[0], depthBelow(root, keys[0]))
	}
	return found, roots == 1
}

func (s *Store) RootKeys() []string {
	return s.Snapshot().RootKeys()
}

func (s *Store) RootForKey(key string) (string, bool) {
	return s.Snapshot().RootForKey(key)
}

func (s *Store) IsLoading(root, key string) bool {
	return s.Snapshot().IsLoading(key)
}

// IsIdle reports whether no fetch is in flight
func (s *Store) IsIdle() bool {
	return s.Snapshot().LoadingCount() == 0
}

func (s *Store) IsExpanded(root, key string) bool {
	return s.Snapshot().IsExpanded(root, key)
}

func (s *Store) IsSelected(root, key string) bool {
	return s.Snapshot().IsSelected(root, key)
}

func (s *Store) GetSelectedKeys(root string) []string {
	return s.Snapshot().SelectedKeys(root)
}

func (s *Store) GetExpandedKeys(root string) []string {
	return s.Snapshot().ExpandedKeys(root)
}

func (s *Store) GetVcsStatus(root, key string) (filetree.StatusCode, bool) {
	return s.Snapshot().VcsStatus(root, key)
}

func (s *Store) GetTrackedNode() (TrackedNode, bool) {
	return s.Snapshot().TrackedNode()
}

// depthBelow counts the path components of key beneath root
func depthBelow(root, key string) int {
	depth := 0
	for k := key; k != root && len(k) > len(root); k = filetree.ParentKey(k) {
		depth++
	}
	return depth
}
