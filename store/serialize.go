package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

// SchemaVersion is the version of [ExportedState] written by this package.
// Imports of any other version are ignored.
const SchemaVersion = 1

// ErrVersionMismatch is returned by [Store.LoadStateFile] when the file was
// written with a different schema version
var ErrVersionMismatch = errors.New("state schema version mismatch")

// ExportedState is the persisted subset of a Snapshot.
// ChildKeyMap only holds listings of keys expanded under some root.
type ExportedState struct {
	Version            int                 `json:"version" yaml:"version"`
	Session            string              `json:"session,omitempty" yaml:"session,omitempty"`
	RootKeys           []string            `json:"rootKeys" yaml:"rootKeys"`
	ExpandedKeysByRoot map[string][]string `json:"expandedKeysByRoot" yaml:"expandedKeysByRoot"`
	SelectedKeysByRoot map[string][]string `json:"selectedKeysByRoot" yaml:"selectedKeysByRoot"`
	ChildKeyMap        map[string][]string `json:"childKeyMap" yaml:"childKeyMap"`
}

func newSessionID() string {
	return uuid.NewString()
}

// Export captures the persistable part of the current state
func (s *Store) Export() *ExportedState {
	snap := s.Snapshot()
	state := &ExportedState{
		Version:            SchemaVersion,
		Session:            s.session,
		RootKeys:           snap.RootKeys(),
		ExpandedKeysByRoot: map[string][]string{},
		SelectedKeysByRoot: map[string][]string{},
		ChildKeyMap:        map[string][]string{},
	}
	for _, root := range snap.rootKeys {
		expanded := snap.ExpandedKeys(root)
		state.ExpandedKeysByRoot[root] = expanded
		state.SelectedKeysByRoot[root] = snap.SelectedKeys(root)
		for _, key := range expanded {
			if children, ok := snap.CachedChildKeys(key); ok {
				state.ChildKeyMap[key] = children
			}
		}
	}
	return state
}

// Import replaces roots, expansion, selection and cached listings with
// state and refetches and rewatches every imported listing. It reports
// false and leaves the store untouched when the schema version differs.
func (s *Store) Import(state *ExportedState) bool {
	logger := util.GetLogger("Serializer")
	if state == nil || state.Version != SchemaVersion {
		version := -1
		if state != nil {
			version = state.Version
		}
		logger.Warn().Int("version", version).Int("expected", SchemaVersion).Msg("Ignoring state with mismatched version")
		return false
	}

	s.update(func(d *draft) {
		s.disposeAllLocked(d)
		d.replace(newSnapshot())

		roots := uniqueKeys(state.RootKeys)
		d.setRoots(roots)
		for _, root := range roots {
			for _, key := range state.ExpandedKeysByRoot[root] {
				if s.isContainer(key) && filetree.IsAncestor(root, key) {
					d.addExpanded(root, key)
				}
			}
			var selected []string
			for _, key := range uniqueKeys(state.SelectedKeysByRoot[root]) {
				if filetree.IsAncestor(root, key) {
					selected = append(selected, key)
				}
			}
			d.setSelected(root, selected)
		}

		keys := make([]string, 0, len(state.ChildKeyMap))
		for key := range state.ChildKeyMap {
			if _, ok := d.RootForKey(key); ok && s.isContainer(key) {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			d.setChildKeys(key, state.ChildKeyMap[key])
			s.fetchLocked(d, key)
		}
		// expanded keys are rewatched and loaded even without a saved listing
		for _, root := range roots {
			for _, key := range d.ExpandedKeys(root) {
				s.acquireLocked(d, key)
				s.fetchLocked(d, key)
			}
		}
	})
	logger.Debug().Strs("roots", state.RootKeys).Int("listings", len(state.ChildKeyMap)).Msg("Imported state")
	return true
}

// SaveStateFile writes [Store.Export] to path as YAML (.yaml, .yml) or JSON
// (anything else)
func (s *Store) SaveStateFile(path string) error {
	state := s.Export()
	var (
		data []byte
		err  error
	)
	if isYAMLPath(path) {
		data, err = yaml.Marshal(state)
	} else {
		data, err = json.MarshalIndent(state, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// LoadStateFile reads a file written by [Store.SaveStateFile] and imports it
func (s *Store) LoadStateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var state ExportedState
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, &state)
	} else {
		err = json.Unmarshal(data, &state)
	}
	if err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}
	if !s.Import(&state) {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, state.Version, SchemaVersion)
	}
	return nil
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
