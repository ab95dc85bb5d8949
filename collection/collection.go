// Package collection provisions one REST resource collection: a storage table, a handler
// per HTTP method, the grants those handlers hold on the table, and the gateway node that
// routes each method to its handler.
package collection

import (
	"errors"
	"fmt"

	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/dynamodb/table"
	"github.com/Louis4933/CYFEAST-2023-BACK/gateway"
	"github.com/Louis4933/CYFEAST-2023-BACK/grant"
)

var (
	ErrInvalidSpec   = errors.New("invalid collection spec")
	ErrDuplicateName = errors.New("duplicate collection identifier")
)

// Spec parameterizes the provisioner.
type Spec struct {
	// Name is both the gateway path segment and the suffix of the default table name.
	Name string
	// PartitionKey is the string-typed key attribute of the table.
	PartitionKey string
	TableName    string
	Capacity     table.Capacity
	// EntryPoint is shared by the four handlers, which dispatch on the method themselves.
	EntryPoint  string
	MemoryMB    int32
	Runtime     string
	// Description prefixes the generated handler descriptions.
	Description string
	// Descriptions replaces the description of the handler serving a method, keyed by
	// method name ("GET", "POST", ...).
	Descriptions map[string]string
}

// Validate reports every problem of the spec.
func (s Spec) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, fmt.Errorf("%w: name is required", ErrInvalidSpec))
	} else if err := gateway.ValidatePath(s.Name); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidSpec, err))
	}
	if s.PartitionKey == "" {
		errs = append(errs, fmt.Errorf("%w: collection %q: partition key name is required", ErrInvalidSpec, s.Name))
	}
	if s.EntryPoint == "" {
		errs = append(errs, fmt.Errorf("%w: collection %q: handler entry point is required", ErrInvalidSpec, s.Name))
	}
	if s.Runtime == "" {
		errs = append(errs, fmt.Errorf("%w: collection %q: runtime is required", ErrInvalidSpec, s.Name))
	}
	if err := table.Positive("memory", s.MemoryMB); err != nil {
		errs = append(errs, fmt.Errorf("%w: collection %q: %w", ErrInvalidSpec, s.Name, err))
	}
	for m := range s.Descriptions {
		if _, err := gateway.ParseMethod(m); err != nil {
			errs = append(errs, fmt.Errorf("%w: collection %q: description for %w", ErrInvalidSpec, s.Name, err))
		}
	}
	if err := s.tableDefinition().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: collection %q: %w", ErrInvalidSpec, s.Name, err))
	}
	return errors.Join(errs...)
}

func (s Spec) tableDefinition() table.TableDefinition {
	return table.TableDefinition{
		Name: s.TableName,
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: s.PartitionKey, Kind: table.KeyKindS},
		},
		Capacity: s.Capacity,
	}
}

// Collection is everything provisioned for one Spec. Handlers and Grants are indexed in
// gateway.Methods() order.
type Collection struct {
	Spec     Spec
	Table    table.TableDefinition
	Handlers [4]compute.Function
	Grants   [4]grant.Grant
	Node     gateway.Node
}

// Handler returns the handler serving m.
func (c Collection) Handler(m gateway.Method) (compute.Function, bool) {
	for _, h := range c.Handlers {
		if h.Method == m {
			return h, true
		}
	}
	return compute.Function{}, false
}

// Grant returns the grant held by the handler serving m.
func (c Collection) Grant(m gateway.Method) (grant.Grant, bool) {
	h, ok := c.Handler(m)
	if !ok {
		return grant.Grant{}, false
	}
	for _, g := range c.Grants {
		if g.Handler == h.ID {
			return g, true
		}
	}
	return grant.Grant{}, false
}

// Provision declares the collection and mounts it on root. On error root is unchanged.
func Provision(spec Spec, root *gateway.Root) (Collection, error) {
	if err := spec.Validate(); err != nil {
		return Collection{}, err
	}
	c := Collection{
		Spec:  spec,
		Table: spec.tableDefinition(),
	}

	methods := gateway.Methods()
	bindings := make([]gateway.Binding, 0, len(methods))
	for i, m := range methods {
		fn := compute.Function{
			ID:          compute.FunctionID(spec.Name, m),
			Collection:  spec.Name,
			Method:      m,
			EntryPoint:  spec.EntryPoint,
			Runtime:     spec.Runtime,
			MemoryMB:    spec.MemoryMB,
			Description: describe(spec, m),
			Config:      compute.Config{Table: c.Table.Name},
		}
		if err := fn.Validate(); err != nil {
			return Collection{}, fmt.Errorf("collection %q: %w", spec.Name, err)
		}
		g, err := grant.New(fn.ID, c.Table.Name, m)
		if err != nil {
			return Collection{}, fmt.Errorf("collection %q: %w", spec.Name, err)
		}
		c.Handlers[i] = fn
		c.Grants[i] = g
		bindings = append(bindings, gateway.Binding{Method: m, Handler: fn.ID})
	}

	node, err := root.Mount(spec.Name, bindings...)
	if err != nil {
		if errors.Is(err, gateway.ErrDuplicatePath) {
			return Collection{}, fmt.Errorf("%w: %w", ErrDuplicateName, err)
		}
		return Collection{}, fmt.Errorf("collection %q: %w", spec.Name, err)
	}
	c.Node = node
	return c, nil
}

func describe(spec Spec, m gateway.Method) string {
	if d, ok := spec.Descriptions[string(m)]; ok {
		return d
	}
	d := compute.DefaultDescription(spec.Name, m)
	if spec.Description != "" {
		d = spec.Description + ": " + d
	}
	return d
}
