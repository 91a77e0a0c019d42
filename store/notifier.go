package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/filetree"
)

// Notifier coalesces state changes into a single "changed" signal per
// debounce window. Scheduling again while a signal is pending cancels and
// re-arms it. Flush delivers a signal immediately for changes that must not
// wait.
type Notifier struct {
	interval  time.Duration
	mu        sync.Mutex // protects timer and gen
	timer     *time.Timer
	gen       uint64 // identifies the armed timer; stale fires are dropped
	listeners *xsync.Map[uint64, func()]
	lastID    atomic.Uint64
}

// NewNotifier creates a Notifier that waits interval after the last
// scheduled change before signalling
func NewNotifier(interval time.Duration) *Notifier {
	return &Notifier{
		interval:  interval,
		listeners: xsync.NewMap[uint64, func()](),
	}
}

// Subscribe registers fn and returns a handle removing it again.
// Disposing more than once is a no-op.
func (n *Notifier) Subscribe(fn func()) filetree.Handle {
	id := n.lastID.Add(1)
	n.listeners.Store(id, fn)
	var once sync.Once
	return filetree.HandleFunc(func() {
		once.Do(func() { n.listeners.Delete(id) })
	})
}

// Schedule arms a debounced signal, replacing any pending one
func (n *Notifier) Schedule() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.timer = time.AfterFunc(n.interval, func() { n.fire(gen) })
}

// Pending reports whether a debounced signal is armed
func (n *Notifier) Pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timer != nil
}

func (n *Notifier) fire(gen uint64) {
	n.mu.Lock()
	if gen != n.gen || n.timer == nil {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.mu.Unlock()
	n.emit()
}

// Flush signals all listeners immediately on the calling goroutine.
// A pending debounced signal is left armed.
func (n *Notifier) Flush() {
	n.emit()
}

// Stop cancels any pending signal
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.gen++
}

func (n *Notifier) emit() {
	n.listeners.Range(func(_ uint64, fn func()) bool {
		fn()
		return true
	})
}
