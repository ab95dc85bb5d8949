// Package gateway models the REST entry point shared by every collection: a root with one
// resource node per path segment, each binding HTTP methods to compute handlers.
//
// The tree is built once. A Root accepts each path exactly once and never holds bindings
// of its own; all bindings live on the nodes returned by Mount.
package gateway

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	ErrInvalidPath      = errors.New("invalid gateway path")
	ErrDuplicatePath    = errors.New("duplicate gateway path")
	ErrDuplicateBinding = errors.New("duplicate method binding")
	ErrUnknownMethod    = errors.New("unknown http method")
)

// Method is an HTTP verb a resource node can bind.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// Methods returns the verbs every collection exposes, in binding order.
func Methods() []Method {
	return []Method{MethodGet, MethodPost, MethodPut, MethodDelete}
}

func ParseMethod(s string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Binding routes one method of a node to a handler, identified by its logical ID.
type Binding struct {
	Method  Method
	Handler string
}

// Node is a mounted resource. It is a value; mutating a copy never affects the Root.
type Node struct {
	Path     string
	Bindings []Binding
}

// Handler returns the handler bound to m.
func (n Node) Handler(m Method) (string, bool) {
	for _, b := range n.Bindings {
		if b.Method == m {
			return b.Handler, true
		}
	}
	return "", false
}

// Root is the gateway itself.
type Root struct {
	Name        string
	Description string

	nodes []Node
	paths map[string]struct{}
}

func NewRoot(name, description string) *Root {
	return &Root{
		Name:        name,
		Description: description,
		paths:       make(map[string]struct{}),
	}
}

// segments are restricted to RFC 3986 unreserved characters.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// ValidatePath checks that path is a single URL-safe segment.
func ValidatePath(path string) error {
	if !segmentPattern.MatchString(path) || path == "." || path == ".." {
		return fmt.Errorf("%w: %q must be a single url-safe path segment", ErrInvalidPath, path)
	}
	return nil
}

// Mount attaches a node at /path. Nothing is attached when an error is returned.
func (r *Root) Mount(path string, bindings ...Binding) (Node, error) {
	if err := ValidatePath(path); err != nil {
		return Node{}, err
	}
	if _, ok := r.paths[path]; ok {
		return Node{}, fmt.Errorf("%w: /%s", ErrDuplicatePath, path)
	}
	seen := make(map[Method]struct{}, len(bindings))
	for _, b := range bindings {
		if _, err := ParseMethod(string(b.Method)); err != nil {
			return Node{}, err
		}
		if _, ok := seen[b.Method]; ok {
			return Node{}, fmt.Errorf("%w: %s /%s", ErrDuplicateBinding, b.Method, path)
		}
		if b.Handler == "" {
			return Node{}, fmt.Errorf("%s /%s: handler is required", b.Method, path)
		}
		seen[b.Method] = struct{}{}
	}
	node := Node{
		Path:     path,
		Bindings: append([]Binding(nil), bindings...),
	}
	r.paths[path] = struct{}{}
	r.nodes = append(r.nodes, node)
	return copyNode(node), nil
}

// Nodes returns the mounted nodes sorted by path.
func (r *Root) Nodes() []Node {
	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, copyNode(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Routes lists every "METHOD /path" pair the gateway serves.
func (r *Root) Routes() []string {
	var routes []string
	for _, n := range r.Nodes() {
		for _, b := range n.Bindings {
			routes = append(routes, fmt.Sprintf("%s /%s", b.Method, n.Path))
		}
	}
	return routes
}

func copyNode(n Node) Node {
	n.Bindings = append([]Binding(nil), n.Bindings...)
	return n
}
