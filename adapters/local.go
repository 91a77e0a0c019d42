package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/filetree"
)

// LocalSource lists directories on the local filesystem. Keys are
// slash-separated paths below Base, or absolute paths when Base is empty.
type LocalSource struct {
	Base       string `json:"base,omitempty"`
	ShowHidden bool   `json:"showHidden,omitempty"`
}

func RegisterLocal(r *Registry) {
	r.Register(LocalSourceType, ProviderFunc(func(raw []byte) (filetree.Lister, error) {
		var src LocalSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, err
		}
		return NewLocalLister(src)
	}))
}

// LocalLister implements [filetree.Lister] and [filetree.Deleter] over os
// directory reads. Directory children are returned as container keys.
type LocalLister struct {
	source LocalSource
}

func NewLocalLister(src LocalSource) (*LocalLister, error) {
	if src.Base != "" {
		base, err := filepath.Abs(src.Base)
		if err != nil {
			return nil, fmt.Errorf("resolve base %q: %w", src.Base, err)
		}
		src.Base = base
	}
	return &LocalLister{source: src}, nil
}

// Path maps key to its location on disk
func (l *LocalLister) Path(key string) string {
	rel := filepath.FromSlash(strings.TrimSuffix(key, filetree.Separator))
	if l.source.Base == "" {
		if rel == "" {
			return string(filepath.Separator)
		}
		return rel
	}
	return filepath.Join(l.source.Base, rel)
}

// Key maps an OS path to a container key of this lister
func (l *LocalLister) Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if l.source.Base != "" {
		rel, err := filepath.Rel(l.source.Base, abs)
		if err != nil {
			return "", err
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%q is outside base %q", path, l.source.Base)
		}
		abs = string(filepath.Separator)
		if rel != "." {
			abs += rel
		}
	}
	key := filepath.ToSlash(abs)
	if !strings.HasSuffix(key, filetree.Separator) {
		key += filetree.Separator
	}
	return key, nil
}

func (l *LocalLister) List(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.Path(key))
	if err != nil {
		return nil, err
	}
	children := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !l.source.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		children = append(children, filetree.JoinKey(key, name, l.isDir(key, entry)))
	}
	return children, nil
}

// isDir follows symlinks so linked directories can be expanded
func (l *LocalLister) isDir(parent string, entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(filepath.Join(l.Path(parent), entry.Name()))
	return err == nil && info.IsDir()
}

func (l *LocalLister) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := l.Path(key)
	if path == string(filepath.Separator) || path == l.source.Base {
		return fmt.Errorf("refusing to delete %q", path)
	}
	return os.RemoveAll(path)
}

var (
	_ filetree.Lister  = (*LocalLister)(nil)
	_ filetree.Deleter = (*LocalLister)(nil)
)
