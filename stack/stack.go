// Package stack assembles a whole deployment: a shared gateway root and one provisioned
// collection per spec. Build validates every spec before declaring anything, so a
// deployment either yields a complete graph or nothing at all.
package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/Louis4933/CYFEAST-2023-BACK/collection"
	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/gateway"
	"github.com/Louis4933/CYFEAST-2023-BACK/internal/ctxlog"
)

type Config struct {
	// Name of the gateway, e.g. "cyFeastApi". Its CamelCase form is the gateway's logical
	// id, so it is limited to letters, digits and '-', '_', '.', '~'.
	Name string
	// DisplayName is the name the gateway is published under, e.g. "CY Feast API".
	// Defaults to Name.
	DisplayName string
	Description string
	Collections []collection.Spec
}

// Stack is the immutable result of Build.
type Stack struct {
	name        string
	displayName string
	description string
	root        *gateway.Root
	collections []collection.Collection
}

// Build validates cfg and provisions every collection on a fresh gateway root.
func Build(ctx context.Context, cfg Config) (*Stack, error) {
	logger := ctxlog.FromContext(ctx)
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.Name
	}
	root := gateway.NewRoot(cfg.Name, cfg.Description)
	s := &Stack{
		name:        cfg.Name,
		displayName: cfg.DisplayName,
		description: cfg.Description,
		root:        root,
	}
	for _, spec := range cfg.Collections {
		c, err := collection.Provision(spec, root)
		if err != nil {
			return nil, fmt.Errorf("provision %q: %w", spec.Name, err)
		}
		logger.Debug("Provisioned collection.", "collection", spec.Name, "table", c.Table.Name, "path", "/"+c.Node.Path)
		s.collections = append(s.collections, c)
	}
	logger.Debug("Built stack.", "stack", cfg.Name, "collections", len(s.collections))
	return s, nil
}

// Validate checks every spec and the identifiers they must not share.
func Validate(cfg Config) error {
	var errs []error
	if cfg.Name == "" {
		errs = append(errs, errors.New("stack name is required"))
	} else if !compute.ValidLogicalID(compute.ExportName(cfg.Name)) {
		errs = append(errs, fmt.Errorf("stack name %q must contain only letters, digits and '-', '_', '.', '~'", cfg.Name))
	}
	names := make(map[string]struct{}, len(cfg.Collections))
	logicalIDs := make(map[string]string, len(cfg.Collections))
	tables := make(map[string]string, len(cfg.Collections))
	for _, spec := range cfg.Collections {
		if err := spec.Validate(); err != nil {
			errs = append(errs, err)
		}
		if _, ok := names[spec.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: collection name %q declared twice", collection.ErrDuplicateName, spec.Name))
		}
		names[spec.Name] = struct{}{}

		// "line-items" and "lineItems" would both own a handler called getLineItems.
		id := compute.ExportName(spec.Name)
		if other, ok := logicalIDs[id]; ok && other != spec.Name {
			errs = append(errs, fmt.Errorf("%w: collections %q and %q share logical id %q", collection.ErrDuplicateName, other, spec.Name, id))
		}
		logicalIDs[id] = spec.Name

		if spec.TableName != "" {
			if other, ok := tables[spec.TableName]; ok {
				errs = append(errs, fmt.Errorf("%w: table %q used by %q and %q", collection.ErrDuplicateName, spec.TableName, other, spec.Name))
			}
			tables[spec.TableName] = spec.Name
		}
	}
	return errors.Join(errs...)
}

func (s *Stack) Name() string        { return s.name }
func (s *Stack) Description() string { return s.description }

// DisplayName is the name the gateway is published under.
func (s *Stack) DisplayName() string { return s.displayName }

// Collections returns the provisioned collections in declaration order.
func (s *Stack) Collections() []collection.Collection {
	return append([]collection.Collection(nil), s.collections...)
}

func (s *Stack) Collection(name string) (collection.Collection, bool) {
	for _, c := range s.collections {
		if c.Spec.Name == name {
			return c, true
		}
	}
	return collection.Collection{}, false
}

// Resources returns the gateway nodes mounted under the root.
func (s *Stack) Resources() []gateway.Node {
	return s.root.Nodes()
}

// Routes lists the "METHOD /path" pairs the gateway serves.
func (s *Stack) Routes() []string {
	return s.root.Routes()
}
