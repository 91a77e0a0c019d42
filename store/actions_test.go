package store

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/mocks"
	"github.com/brettbedarf/filetree/internal/util"
)

func TestCollapse_ReexpandRestoresDescendants(t *testing.T) {
	t.Parallel()
	lister := sampleTree()
	s := newTestStore(t, lister)
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/", "/a/x/", "/a/x/z/")

	require.True(t, s.Dispatch(Collapse{Root: "/a/", Key: "/a/"}))
	assert.Empty(t, s.GetExpandedKeys("/a/"))
	prev, ok := s.Snapshot().PreviouslyExpanded("/a/", "/a/")
	require.True(t, ok)
	assert.Equal(t, []string{"/a/x/"}, prev)
	prev, ok = s.Snapshot().PreviouslyExpanded("/a/", "/a/x/")
	require.True(t, ok)
	assert.Equal(t, []string{"/a/x/z/"}, prev)

	s.Dispatch(Expand{Root: "/a/", Key: "/a/"})
	waitIdle(t, s)
	assert.Equal(t, []string{"/a/", "/a/x/", "/a/x/z/"}, s.GetExpandedKeys("/a/"))
	_, ok = s.Snapshot().PreviouslyExpanded("/a/", "/a/")
	assert.False(t, ok)
	// collapsed listings went stale and were refetched
	assert.Equal(t, 2, lister.callCount("/a/x/z/"))
}

func TestCollapse_DeselectsDescendants(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, sampleTree())
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/", "/a/x/")
	s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/x/", "/a/x/x.txt", "/a/y.txt"}})

	s.Dispatch(Collapse{Root: "/a/", Key: "/a/x/"})
	assert.Equal(t, []string{"/a/x/", "/a/y.txt"}, s.GetSelectedKeys("/a/"))
	assert.Equal(t, []string{"/a/"}, s.GetExpandedKeys("/a/"))
}

func TestCollapse_ReleasesUnlistedExpandedDescendants(t *testing.T) {
	t.Parallel()
	lister := sampleTree()
	s := newTestStore(t, lister)
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	gate := lister.hold()
	s.Dispatch(Expand{Root: "/a/", Key: "/a/"})
	s.Dispatch(Expand{Root: "/a/", Key: "/a/x/"})

	s.Dispatch(Collapse{Root: "/a/", Key: "/a/"})
	assert.Empty(t, s.GetExpandedKeys("/a/"))
	close(gate)
	waitIdle(t, s)
}

func TestPurgeDirectory_TearsDownSubtree(t *testing.T) {
	t.Parallel()
	watcher := newFakeWatcher()
	s := newTestStore(t, sampleTree(), WithWatcher(watcher))
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/", "/a/x/", "/a/x/z/")
	s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/y.txt", "/a/x/z/deep.txt", "/a/x/"}})
	s.Dispatch(SetTrackedNode{Root: "/a/", Key: "/a/x/z/"})

	require.True(t, s.update(func(d *draft) { s.purgeDirectoryLocked(d, "/a/x/") }))

	snap := s.Snapshot()
	for _, k := range []string{"/a/x/", "/a/x/z/"} {
		_, cached := snap.CachedChildKeys(k)
		assert.False(t, cached, k)
		assert.False(t, snap.IsDirty(k), k)
		assert.False(t, snap.IsLoading(k), k)
		assert.False(t, snap.IsSubscribed(k), k)
		assert.False(t, snap.IsExpanded("/a/", k), k)
		_, prev := snap.PreviouslyExpanded("/a/", k)
		assert.False(t, prev, k)
		assert.Equal(t, 1, watcher.disposeCount(k), k)
	}
	assert.Equal(t, []string{"/a/y.txt"}, snap.SelectedKeys("/a/"))
	_, tracked := snap.TrackedNode()
	assert.False(t, tracked)
	// the parent's listing is left for the caller to update
	assert.Equal(t, []string{"/a/x/", "/a/y.txt"}, s.GetCachedChildKeys("/a/", "/a/"))
	assert.True(t, snap.IsSubscribed("/a/"))
}

func TestPurgeDirectory_UnknownKeyIsNoop(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, sampleTree())
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	before := s.Snapshot()

	assert.False(t, s.update(func(d *draft) { s.purgeDirectoryLocked(d, "/nope/") }))
	assert.Same(t, before, s.Snapshot())
}

func TestSetRoots_PurgesRemovedRoot(t *testing.T) {
	t.Parallel()
	watcher := newFakeWatcher()
	s := newTestStore(t, sampleTree(), WithWatcher(watcher))
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/", "/a/x/")
	s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/y.txt"}})
	s.Dispatch(SetVcsStatus{Root: "/a/", Status: map[string]filetree.StatusCode{"/a/y.txt": filetree.StatusModified}})

	require.True(t, s.Dispatch(SetRoots{Keys: []string{"/b/"}}))

	snap := s.Snapshot()
	assert.Equal(t, []string{"/b/"}, snap.RootKeys())
	assert.Empty(t, snap.ExpandedKeys("/a/"))
	assert.Empty(t, snap.SelectedKeys("/a/"))
	assert.Empty(t, snap.SubscribedKeys())
	_, hasStatus := snap.VcsStatus("/a/", "/a/y.txt")
	assert.False(t, hasStatus)
	for _, k := range []string{"/a/", "/a/x/"} {
		_, cached := snap.CachedChildKeys(k)
		assert.False(t, cached, k)
		assert.Equal(t, 1, watcher.disposeCount(k), k)
	}
}

func TestSetRoots_Dedupes(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, sampleTree())

	s.Dispatch(SetRoots{Keys: []string{"/b/", "/a/", "/b/"}})
	assert.Equal(t, []string{"/b/", "/a/"}, s.RootKeys())
	root, ok := s.RootForKey("/a/x/x.txt")
	require.True(t, ok)
	assert.Equal(t, "/a/", root)
	_, ok = s.RootForKey("/c/")
	assert.False(t, ok)
}

func TestSetSelection(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, sampleTree())
	s.Dispatch(SetRoots{Keys: []string{"/a/", "/b/"}})

	assert.False(t, s.Dispatch(SetSelection{Root: "/c/", Keys: []string{"/c/d"}}))
	require.True(t, s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/y.txt", "/a/x/", "/a/y.txt"}}))
	assert.Equal(t, []string{"/a/y.txt", "/a/x/"}, s.GetSelectedKeys("/a/"))
	assert.True(t, s.IsSelected("/a/", "/a/x/"))
	assert.False(t, s.IsSelected("/b/", "/a/x/"))

	_, ok := s.GetSingleSelectedNode()
	assert.False(t, ok)

	require.True(t, s.Dispatch(SetSelectionForest{Selection: map[string][]string{"/b/": {"/b/q.txt"}}}))
	assert.Empty(t, s.GetSelectedKeys("/a/"))
	node, ok := s.GetSingleSelectedNode()
	require.True(t, ok)
	assert.Equal(t, "/b/", node.RootKey)
	assert.Equal(t, "/b/q.txt", node.Key)
	assert.Equal(t, "q.txt", node.Name)
	assert.Equal(t, 1, node.Depth)
	assert.False(t, node.IsContainer)
	assert.True(t, node.IsSelected)

	s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/y.txt"}})
	_, ok = s.GetSingleSelectedNode()
	assert.False(t, ok)
	nodes := s.GetSelectedNodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "/a/y.txt", nodes[0].Key)
	assert.Equal(t, "/b/q.txt", nodes[1].Key)
}

func TestDeleteSelected(t *testing.T) {
	t.Parallel()
	deleter := &mocks.MockDeleter{}
	deleter.On("Delete", mock.Anything, "/a/x/").Return(nil)
	deleter.On("Delete", mock.Anything, "/a/y.txt").Return(nil)
	watcher := newFakeWatcher()
	s := newTestStore(t, sampleTree(), WithDeleter(deleter), WithWatcher(watcher))
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/", "/a/x/")
	s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/x/", "/a/y.txt"}})

	require.True(t, s.Dispatch(DeleteSelected{}))
	assert.Empty(t, s.GetSelectedKeys("/a/"))

	assert.Eventually(t, func() bool {
		return len(s.GetCachedChildKeys("/a/", "/a/")) == 0
	}, 2*time.Second, 5*time.Millisecond)
	_, cached := s.Snapshot().CachedChildKeys("/a/x/")
	assert.False(t, cached)
	assert.Equal(t, 1, watcher.disposeCount("/a/x/"))
	deleter.AssertExpectations(t)
}

func TestCollapse_DisposesWatchHandleOnce(t *testing.T) {
	t.Parallel()
	handle := &mocks.MockHandle{}
	handle.On("Dispose").Return().Once()
	watcher := &mocks.MockWatcher{}
	watcher.On("Watch", "/a/", mock.Anything).Return(handle, nil).Once()
	s := newTestStore(t, sampleTree(), WithWatcher(watcher))
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/")

	require.True(t, s.Dispatch(Collapse{Root: "/a/", Key: "/a/"}))
	s.Dispatch(Reset{})

	watcher.AssertExpectations(t)
	handle.AssertExpectations(t)
}

func TestDeleteSelected_FailureKeepsListing(t *testing.T) {
	t.Parallel()
	done := make(chan struct{})
	deleter := &mocks.MockDeleter{}
	deleter.On("Delete", mock.Anything, "/a/y.txt").
		Return(errors.New("read-only")).
		Run(func(mock.Arguments) { close(done) })
	s := newTestStore(t, sampleTree(), WithDeleter(deleter))
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/")
	s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/y.txt"}})

	s.Dispatch(DeleteSelected{})
	<-done
	assert.Equal(t, []string{"/a/x/", "/a/y.txt"}, s.GetCachedChildKeys("/a/", "/a/"))
}

func TestDeleteSelected_WithoutDeleter(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, sampleTree())
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	s.Dispatch(SetSelection{Root: "/a/", Keys: []string{"/a/y.txt"}})

	assert.False(t, s.Dispatch(DeleteSelected{}))
	assert.Equal(t, []string{"/a/y.txt"}, s.GetSelectedKeys("/a/"))
}

func TestCreateChild(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, sampleTree())
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	expandAll(t, s, "/a/", "/a/")

	require.True(t, s.Dispatch(CreateChild{Parent: "/a/", Child: "/a/new.txt"}))
	assert.Equal(t, []string{"/a/x/", "/a/y.txt", "/a/new.txt"}, s.GetCachedChildKeys("/a/", "/a/"))
	assert.False(t, s.Dispatch(CreateChild{Parent: "/a/", Child: "/a/new.txt"}))
	assert.False(t, s.Dispatch(CreateChild{Parent: "/a/y.txt", Child: "/a/y.txt/z"}))
	assert.False(t, s.Dispatch(CreateChild{Parent: "/a/x/", Child: "/b/q.txt"}))

	// unknown parent gets a partial listing that is refetched on expand
	require.True(t, s.Dispatch(CreateChild{Parent: "/a/x/", Child: "/a/x/made/"}))
	assert.Equal(t, []string{"/a/x/made/"}, s.GetCachedChildKeys("/a/", "/a/x/"))
	assert.True(t, s.Snapshot().IsDirty("/a/x/"))
}

func TestSetVcsStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, sampleTree())
	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	status := map[string]filetree.StatusCode{"/a/y.txt": filetree.StatusAdded}

	assert.False(t, s.Dispatch(SetVcsStatus{Root: "/b/", Status: status}))
	require.True(t, s.Dispatch(SetVcsStatus{Root: "/a/", Status: status}))
	assert.False(t, s.Dispatch(SetVcsStatus{Root: "/a/", Status: status}))

	code, ok := s.GetVcsStatus("/a/", "/a/y.txt")
	require.True(t, ok)
	assert.Equal(t, filetree.StatusAdded, code)
	_, ok = s.GetVcsStatus("/a/", "/a/x/")
	assert.False(t, ok)

	// callers mutating their map afterwards do not leak into the snapshot
	status["/a/x/"] = filetree.StatusIgnored
	_, ok = s.GetVcsStatus("/a/", "/a/x/")
	assert.False(t, ok)
}

func TestTrackedNode_NotifiesImmediately(t *testing.T) {
	t.Parallel()
	cfg := config.NewConfig(&config.ConfigOverride{DebounceInterval: util.Pointer(60000)})
	s := New(cfg, sampleTree())
	t.Cleanup(s.Close)
	var count atomic.Int32
	h := s.Subscribe(func() { count.Add(1) })
	defer h.Dispose()

	s.Dispatch(SetRoots{Keys: []string{"/a/"}})
	assert.Zero(t, count.Load())

	assert.False(t, s.Dispatch(SetTrackedNode{Root: "/a/", Key: "/b/q.txt"}))
	require.True(t, s.Dispatch(SetTrackedNode{Root: "/a/", Key: "/a/y.txt"}))
	assert.Equal(t, int32(1), count.Load())
	node, ok := s.GetTrackedNode()
	require.True(t, ok)
	assert.Equal(t, TrackedNode{RootKey: "/a/", Key: "/a/y.txt"}, node)

	assert.False(t, s.Dispatch(SetTrackedNode{Root: "/a/", Key: "/a/y.txt"}))
	require.True(t, s.Dispatch(ClearTrackedNode{}))
	assert.Equal(t, int32(2), count.Load())
	_, ok = s.GetTrackedNode()
	assert.False(t, ok)
}
