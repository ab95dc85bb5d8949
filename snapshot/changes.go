package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
)

// Changes lists node IDs that differ between a recorded graph and a new one.
type Changes struct {
	Added   []string
	Removed []string
	// Modified maps a node ID to a readable diff of its attributes.
	Modified map[string]string
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Compare reports how next differs from prev. Edges follow from nodes and are not
// compared separately.
func Compare(prev, next stack.Graph) Changes {
	before := make(map[string]stack.Node, len(prev.Nodes))
	for _, n := range prev.Nodes {
		before[n.ID] = n
	}
	after := make(map[string]stack.Node, len(next.Nodes))
	for _, n := range next.Nodes {
		after[n.ID] = n
	}

	c := Changes{Modified: map[string]string{}}
	for id, n := range after {
		old, ok := before[id]
		if !ok {
			c.Added = append(c.Added, id)
			continue
		}
		if d := cmp.Diff(old, n); d != "" {
			c.Modified[id] = d
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	return c
}

// String renders the changes one node per line, prefixed with +, - or ~.
func (c Changes) String() string {
	if c.Empty() {
		return "No changes.\n"
	}
	var b strings.Builder
	for _, id := range c.Added {
		fmt.Fprintf(&b, "+ %s\n", id)
	}
	for _, id := range c.Removed {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	modified := make([]string, 0, len(c.Modified))
	for id := range c.Modified {
		modified = append(modified, id)
	}
	sort.Strings(modified)
	for _, id := range modified {
		fmt.Fprintf(&b, "~ %s\n", id)
	}
	return b.String()
}
