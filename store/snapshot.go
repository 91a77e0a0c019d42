package store

import (
	"slices"
	"sort"
	"sync"

	"github.com/brettbedarf/filetree"
)

type keySet map[string]struct{}

// TrackedNode is the single node consumers should scroll to once pending
// loads settle.
type TrackedNode struct {
	RootKey string
	Key     string
}

// subscription wraps an external watch handle so it is disposed exactly once
// no matter how many snapshots still reference it.
type subscription struct {
	handle filetree.Handle
	once   sync.Once
}

func (s *subscription) dispose() {
	s.once.Do(func() {
		if s.handle != nil {
			s.handle.Dispose()
		}
	})
}

// Snapshot is an immutable view of the whole cache state. Every accepted
// mutation produces a new Snapshot sharing all untouched maps with its
// predecessor; readers may hold on to one indefinitely without locking.
type Snapshot struct {
	childKeyMap   map[string][]string
	dirty         keySet
	loading       map[string]*Future
	expanded      map[string]keySet // root -> expanded container keys
	selected      map[string][]string
	subscriptions map[string]*subscription
	prevExpanded  map[string]map[string][]string // root -> key -> expanded child containers
	vcsStatus     map[string]map[string]filetree.StatusCode
	tracked       *TrackedNode
	rootKeys      []string
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		childKeyMap:   map[string][]string{},
		dirty:         keySet{},
		loading:       map[string]*Future{},
		expanded:      map[string]keySet{},
		selected:      map[string][]string{},
		subscriptions: map[string]*subscription{},
		prevExpanded:  map[string]map[string][]string{},
		vcsStatus:     map[string]map[string]filetree.StatusCode{},
	}
}

// RootKeys returns the registered roots in order
func (s *Snapshot) RootKeys() []string {
	return slices.Clone(s.rootKeys)
}

func (s *Snapshot) hasRoot(root string) bool {
	return slices.Contains(s.rootKeys, root)
}

// RootForKey returns the first registered root that key descends from
func (s *Snapshot) RootForKey(key string) (string, bool) {
	for _, root := range s.rootKeys {
		if filetree.IsAncestor(root, key) {
			return root, true
		}
	}
	return "", false
}

// CachedChildKeys returns the cached listing for key without triggering a fetch
func (s *Snapshot) CachedChildKeys(key string) ([]string, bool) {
	children, ok := s.childKeyMap[key]
	return slices.Clone(children), ok
}

func (s *Snapshot) IsDirty(key string) bool {
	_, ok := s.dirty[key]
	return ok
}

// isCacheValid reports whether key has a listing that can be trusted
func (s *Snapshot) isCacheValid(key string) bool {
	_, ok := s.childKeyMap[key]
	return ok && !s.IsDirty(key)
}

func (s *Snapshot) IsLoading(key string) bool {
	_, ok := s.loading[key]
	return ok
}

// LoadingCount returns the number of in-flight fetches
func (s *Snapshot) LoadingCount() int {
	return len(s.loading)
}

func (s *Snapshot) IsExpanded(root, key string) bool {
	_, ok := s.expanded[root][key]
	return ok
}

func (s *Snapshot) isExpandedAnywhere(key string) bool {
	for _, set := range s.expanded {
		if _, ok := set[key]; ok {
			return true
		}
	}
	return false
}

// ExpandedKeys returns root's expanded keys in lexical order
func (s *Snapshot) ExpandedKeys(root string) []string {
	return sortedKeys(s.expanded[root])
}

// SelectedKeys returns root's selection in selection order
func (s *Snapshot) SelectedKeys(root string) []string {
	return slices.Clone(s.selected[root])
}

func (s *Snapshot) IsSelected(root, key string) bool {
	return slices.Contains(s.selected[root], key)
}

// IsSubscribed reports whether an external watch is held for key
func (s *Snapshot) IsSubscribed(key string) bool {
	_, ok := s.subscriptions[key]
	return ok
}

// SubscribedKeys returns every key holding a watch, in lexical order
func (s *Snapshot) SubscribedKeys() []string {
	keys := make([]string, 0, len(s.subscriptions))
	for k := range s.subscriptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PreviouslyExpanded returns the child containers that were expanded below
// key when it was last collapsed under root
func (s *Snapshot) PreviouslyExpanded(root, key string) ([]string, bool) {
	keys, ok := s.prevExpanded[root][key]
	return slices.Clone(keys), ok
}

func (s *Snapshot) VcsStatus(root, key string) (filetree.StatusCode, bool) {
	code, ok := s.vcsStatus[root][key]
	return code, ok
}

func (s *Snapshot) TrackedNode() (TrackedNode, bool) {
	if s.tracked == nil {
		return TrackedNode{}, false
	}
	return *s.tracked, true
}

func sortedKeys(set keySet) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
