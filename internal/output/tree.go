package output

import (
	"strings"

	"github.com/disiqueira/gotree/v3"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/store"
)

// RenderVisible draws nodes, as returned by [store.Store.GetVisibleNodes],
// as a text tree. The first node is the root and is labelled by its key.
func RenderVisible(nodes []store.Node) string {
	if len(nodes) == 0 {
		return ""
	}
	tree := gotree.New(label(nodes[0], nodes[0].Key))
	parents := []gotree.Tree{tree}
	for _, n := range nodes[1:] {
		depth := min(max(n.Depth, 1), len(parents))
		parents = parents[:depth]
		parents = append(parents, parents[depth-1].Add(Label(n)))
	}
	return tree.Print()
}

// Label formats a single node: selection marker, name, container suffix,
// VCS status and loading state
func Label(n store.Node) string {
	name := n.Name
	if n.IsContainer {
		name += filetree.Separator
	}
	return label(n, name)
}

func label(n store.Node, name string) string {
	var b strings.Builder
	if n.IsSelected {
		b.WriteString("* ")
	}
	b.WriteString(name)
	if n.HasVcsStatus && n.VcsStatus != filetree.StatusClean {
		b.WriteString(" [" + n.VcsStatus.String() + "]")
	}
	if n.IsLoading {
		b.WriteString(" (loading)")
	}
	return b.String()
}
