package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/store"
)

func TestLabel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc string
		node store.Node
		want string
	}{
		{"leaf", store.Node{Name: "a.txt"}, "a.txt"},
		{"container", store.Node{Name: "docs", IsContainer: true}, "docs/"},
		{"selected", store.Node{Name: "a.txt", IsSelected: true}, "* a.txt"},
		{"vcs status", store.Node{Name: "a.txt", HasVcsStatus: true, VcsStatus: filetree.StatusModified}, "a.txt [modified]"},
		{"clean status hidden", store.Node{Name: "a.txt", HasVcsStatus: true, VcsStatus: filetree.StatusClean}, "a.txt"},
		{"loading", store.Node{Name: "docs", IsContainer: true, IsLoading: true}, "docs/ (loading)"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.node))
		})
	}
}

func TestRenderVisible(t *testing.T) {
	t.Parallel()
	nodes := []store.Node{
		{Key: "/r/", Name: "r", IsContainer: true, IsExpanded: true},
		{Key: "/r/docs/", Name: "docs", Depth: 1, IsContainer: true, IsExpanded: true},
		{Key: "/r/docs/a.md", Name: "a.md", Depth: 2, IsSelected: true},
		{Key: "/r/main.go", Name: "main.go", Depth: 1},
	}

	out := RenderVisible(nodes)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "/r/", lines[0])
	assert.Contains(t, lines[1], "docs/")
	assert.Contains(t, lines[2], "* a.md")
	assert.Contains(t, lines[3], "main.go")
	// nested entries are indented deeper than their parent
	assert.Greater(t, strings.Index(lines[2], "*"), strings.Index(lines[1], "d"))

	assert.Empty(t, RenderVisible(nil))
}
