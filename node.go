package filetree

import (
	"errors"
	"strings"
)

// Separator delimits path components of a node key.
const Separator = "/"

// DefaultContainerSuffix marks container (directory-like) node keys.
const DefaultContainerSuffix = Separator

var (
	// ErrNotContainer is returned when a container-only operation receives a leaf key
	ErrNotContainer = errors.New("not a container key")
	// ErrFetch wraps listing collaborator failures
	ErrFetch = errors.New("fetch failed")
)

// Classifier decides whether a node key refers to a container that may
// have children.
type Classifier interface {
	IsContainer(key string) bool
}

// SuffixClassifier treats every key ending in Suffix as a container.
type SuffixClassifier struct {
	Suffix string
}

// NewSuffixClassifier returns a classifier for suffix, falling back to
// [DefaultContainerSuffix] when suffix is empty
func NewSuffixClassifier(suffix string) SuffixClassifier {
	if suffix == "" {
		suffix = DefaultContainerSuffix
	}
	return SuffixClassifier{Suffix: suffix}
}

func (c SuffixClassifier) IsContainer(key string) bool {
	return key != "" && strings.HasSuffix(key, c.Suffix)
}

// IsAncestor reports whether key is ancestor itself or lies beneath it.
// Ancestry is purely structural: ancestor must be a prefix of key.
func IsAncestor(ancestor, key string) bool {
	return ancestor != "" && strings.HasPrefix(key, ancestor)
}

// ParentKey returns the container key directly above key or "" for a key
// with no parent component.
//
//	ParentKey("/a/b/") == "/a/"
//	ParentKey("/a/b.txt") == "/a/"
func ParentKey(key string) string {
	trimmed := strings.TrimSuffix(key, Separator)
	i := strings.LastIndex(trimmed, Separator)
	if i < 0 {
		return ""
	}
	return trimmed[:i+1]
}

// KeyName returns the last path component of key without any container
// suffix.
func KeyName(key string) string {
	trimmed := strings.TrimSuffix(key, Separator)
	return trimmed[strings.LastIndex(trimmed, Separator)+1:]
}

// JoinKey builds a child key of parent. Container children end in
// [Separator].
func JoinKey(parent, name string, container bool) string {
	if !strings.HasSuffix(parent, Separator) {
		parent += Separator
	}
	key := parent + strings.Trim(name, Separator)
	if container {
		key += Separator
	}
	return key
}

// StatusCode is an opaque per-node VCS status annotation.
type StatusCode int

const (
	StatusClean StatusCode = iota
	StatusModified
	StatusAdded
	StatusRemoved
	StatusUntracked
	StatusIgnored
)

var statusNames = [...]string{"clean", "modified", "added", "removed", "untracked", "ignored"}

func (s StatusCode) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}
