package stack

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/go-cmp/cmp"
)

type Kind string

const (
	KindTable    Kind = "table"
	KindFunction Kind = "function"
	KindGrant    Kind = "grant"
	KindAPI      Kind = "api"
	KindResource Kind = "resource"
	KindMethod   Kind = "method"
)

// rank orders kinds so that creation runs tables, handlers, grants, then the gateway.
var rank = map[Kind]int{
	KindTable:    0,
	KindFunction: 1,
	KindGrant:    2,
	KindAPI:      3,
	KindResource: 4,
	KindMethod:   5,
}

// Node is one declared construct.
type Node struct {
	ID         string
	Kind       Kind
	Collection string            `json:",omitempty"`
	Attributes map[string]string `json:",omitempty"`
}

// Edge means From depends on To: To is created first and destroyed last.
type Edge struct {
	From string
	To   string
}

// Graph is a plain value describing a stack. Two builds from identical inputs produce
// equal graphs.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

func tableID(name string) string { return "table/" + name }

func functionID(id string) string { return "function/" + id }

func grantID(handler string) string { return "grant/" + handler }

func apiID(name string) string { return "api/" + name }

func resourceID(path string) string { return "resource/" + path }

func methodID(m, path string) string {
	return fmt.Sprintf("method/%s /%s", m, path)
}

// Graph flattens the stack into nodes and dependency edges, sorted by ID.
func (s *Stack) Graph() Graph {
	var g Graph
	api := apiID(s.name)
	g.Nodes = append(g.Nodes, Node{ID: api, Kind: KindAPI, Attributes: map[string]string{
		"description": s.description,
	}})

	for _, c := range s.collections {
		name := c.Spec.Name
		tbl := tableID(c.Table.Name)
		g.Nodes = append(g.Nodes, Node{ID: tbl, Kind: KindTable, Collection: name, Attributes: map[string]string{
			"partitionKey":  c.Table.KeyDefinitions.PartitionKey.Name,
			"keyKind":       string(c.Table.KeyDefinitions.PartitionKey.Kind),
			"readCapacity":  strconv.FormatInt(c.Table.Capacity.Read, 10),
			"writeCapacity": strconv.FormatInt(c.Table.Capacity.Write, 10),
		}})

		for i, h := range c.Handlers {
			fn := functionID(h.ID)
			attrs := map[string]string{
				"method":     string(h.Method),
				"entryPoint": h.EntryPoint,
				"runtime":    h.Runtime,
				"memoryMB":   strconv.Itoa(int(h.MemoryMB)),
			}
			for k, v := range h.Config.Environment() {
				attrs["env."+k] = v
			}
			g.Nodes = append(g.Nodes, Node{ID: fn, Kind: KindFunction, Collection: name, Attributes: attrs})
			g.Edges = append(g.Edges, Edge{From: fn, To: tbl})

			gr := c.Grants[i]
			gid := grantID(gr.Handler)
			g.Nodes = append(g.Nodes, Node{ID: gid, Kind: KindGrant, Collection: name, Attributes: map[string]string{
				"kind":  string(gr.Kind),
				"table": gr.Table,
			}})
			g.Edges = append(g.Edges, Edge{From: gid, To: fn}, Edge{From: gid, To: tbl})
		}

		res := resourceID(c.Node.Path)
		g.Nodes = append(g.Nodes, Node{ID: res, Kind: KindResource, Collection: name, Attributes: map[string]string{
			"path": "/" + c.Node.Path,
		}})
		g.Edges = append(g.Edges, Edge{From: res, To: api})
		for _, b := range c.Node.Bindings {
			m := methodID(string(b.Method), c.Node.Path)
			g.Nodes = append(g.Nodes, Node{ID: m, Kind: KindMethod, Collection: name, Attributes: map[string]string{
				"handler": b.Handler,
			}})
			g.Edges = append(g.Edges,
				Edge{From: m, To: res},
				Edge{From: m, To: functionID(b.Handler)},
				Edge{From: m, To: grantID(b.Handler)},
			)
		}
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From != g.Edges[j].From {
			return g.Edges[i].From < g.Edges[j].From
		}
		return g.Edges[i].To < g.Edges[j].To
	})
	return g
}

// Count returns how many nodes of kind k the graph holds.
func (g Graph) Count(k Kind) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Kind == k {
			n++
		}
	}
	return n
}

// CreationOrder is a topological order of the node IDs: every node comes after the nodes it
// depends on. Ties are broken by kind, then ID, so the order is deterministic.
func (g Graph) CreationOrder() ([]string, error) {
	kinds := make(map[string]Kind, len(g.Nodes))
	indegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		kinds[n.ID] = n.Kind
		indegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		if _, ok := kinds[e.From]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", e.From)
		}
		if _, ok := kinds[e.To]; !ok {
			return nil, fmt.Errorf("edge from %q to unknown node %q", e.From, e.To)
		}
		indegree[e.From]++
		dependents[e.To] = append(dependents[e.To], e.From)
	}

	less := func(a, b string) bool {
		if rank[kinds[a]] != rank[kinds[b]] {
			return rank[kinds[a]] < rank[kinds[b]]
		}
		return a < b
	}
	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(order) != len(g.Nodes) {
		return nil, fmt.Errorf("dependency cycle among %d nodes", len(g.Nodes)-len(order))
	}
	return order, nil
}

// TeardownOrder is CreationOrder reversed.
func (g Graph) TeardownOrder() ([]string, error) {
	order, err := g.CreationOrder()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// Diff reports the structural differences between two stacks, or "" when they are equal.
func Diff(a, b *Stack) string {
	return cmp.Diff(a.Graph(), b.Graph())
}
