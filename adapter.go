// Package filetree contains the core domain types and collaborator contracts
// for the hierarchical tree state cache.
package filetree

import "context"

// Lister retrieves the ordered child keys of a container node from the
// underlying hierarchy (local disk, remote service, etc).
// Implementations must be safe for concurrent use as fetches for distinct
// keys run in parallel.
type Lister interface {
	// List returns the ordered child keys of key. Returned keys must be
	// fully qualified node keys, i.e. descendants of key by prefix.
	List(ctx context.Context, key string) ([]string, error)
}

// Watcher produces change subscriptions for container nodes.
type Watcher interface {
	// Watch starts watching key and invokes onChange whenever its direct
	// children may have changed. It fails synchronously if key cannot be
	// watched.
	//
	// NOTE: onChange must not be invoked synchronously from within Watch
	Watch(key string, onChange func()) (Handle, error)
}

// Handle is a disposable external resource such as a watch subscription.
type Handle interface {
	Dispose()
}

// Deleter removes nodes from the underlying hierarchy. It is optional; a
// cache without one cannot serve delete requests.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// HandleFunc adapts a plain function into a [Handle]
type HandleFunc func()

func (f HandleFunc) Dispose() {
	f()
}
