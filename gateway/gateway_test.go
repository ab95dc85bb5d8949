package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allBindings(prefix string) []Binding {
	var out []Binding
	for _, m := range Methods() {
		out = append(out, Binding{Method: m, Handler: prefix + string(m)})
	}
	return out
}

func TestMount(t *testing.T) {
	t.Run("binds every verb", func(t *testing.T) {
		root := NewRoot("api", "")
		node, err := root.Mount("events", allBindings("events-")...)
		require.NoError(t, err)
		require.Equal(t, "events", node.Path)
		for _, m := range Methods() {
			h, ok := node.Handler(m)
			require.True(t, ok, "missing %s", m)
			require.Equal(t, "events-"+string(m), h)
		}
		require.Equal(t, []string{
			"GET /events", "POST /events", "PUT /events", "DELETE /events",
		}, root.Routes())
	})
	t.Run("duplicate path", func(t *testing.T) {
		root := NewRoot("api", "")
		_, err := root.Mount("events", allBindings("a-")...)
		require.NoError(t, err)
		_, err = root.Mount("events", allBindings("b-")...)
		require.ErrorIs(t, err, ErrDuplicatePath)
		require.Len(t, root.Nodes(), 1)
	})
	t.Run("duplicate verb", func(t *testing.T) {
		root := NewRoot("api", "")
		_, err := root.Mount("events",
			Binding{Method: MethodGet, Handler: "a"},
			Binding{Method: MethodGet, Handler: "b"},
		)
		require.ErrorIs(t, err, ErrDuplicateBinding)
		require.Empty(t, root.Nodes(), "failed mount must not attach a node")
	})
	t.Run("unknown verb", func(t *testing.T) {
		root := NewRoot("api", "")
		_, err := root.Mount("events", Binding{Method: "PATCH", Handler: "a"})
		require.ErrorIs(t, err, ErrUnknownMethod)
	})
	t.Run("missing handler", func(t *testing.T) {
		root := NewRoot("api", "")
		_, err := root.Mount("events", Binding{Method: MethodGet})
		require.ErrorContains(t, err, "handler is required")
	})
}

func TestValidatePath(t *testing.T) {
	for _, ok := range []string{"events", "stocks", "my-things", "v1.items", "a_b~c"} {
		assert.NoError(t, ValidatePath(ok), ok)
	}
	for _, bad := range []string{"", "/events", "a/b", "ev ents", "événements", "..", "a?b"} {
		assert.ErrorIs(t, ValidatePath(bad), ErrInvalidPath, bad)
	}
}

func TestNodesAreCopies(t *testing.T) {
	root := NewRoot("api", "")
	node, err := root.Mount("stocks", allBindings("s-")...)
	require.NoError(t, err)
	node.Bindings[0].Handler = "tampered"

	nodes := root.Nodes()
	nodes[0].Bindings[1].Handler = "tampered"

	h, _ := root.Nodes()[0].Handler(MethodGet)
	require.Equal(t, "s-GET", h)
	h, _ = root.Nodes()[0].Handler(MethodPost)
	require.Equal(t, "s-POST", h)
}

func TestNodesSortedByPath(t *testing.T) {
	root := NewRoot("api", "")
	for _, p := range []string{"stocks", "events"} {
		_, err := root.Mount(p, allBindings(p)...)
		require.NoError(t, err)
	}
	nodes := root.Nodes()
	require.Equal(t, "events", nodes[0].Path)
	require.Equal(t, "stocks", nodes[1].Path)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("DELETE")
	require.NoError(t, err)
	require.Equal(t, MethodDelete, m)
	_, err = ParseMethod("get")
	require.ErrorIs(t, err, ErrUnknownMethod)
}
