// Package compute declares the stateless handlers that serve a collection, one per HTTP
// method, and the typed configuration they receive at invocation time.
package compute

import (
	"errors"
	"fmt"

	"github.com/Louis4933/CYFEAST-2023-BACK/dynamodb/table"
	"github.com/Louis4933/CYFEAST-2023-BACK/gateway"
)

// EnvTable is the only environment key shared between the provisioner and a handler.
const EnvTable = "TABLE"

const (
	DefaultMemoryMB = 128
	DefaultRuntime  = "nodejs18.x"
)

// Config is the configuration record injected into a handler.
type Config struct {
	// Table is the identifier of the collection's storage table.
	Table string
}

// Environment renders the config as the handler's environment variables.
func (c Config) Environment() map[string]string {
	return map[string]string{EnvTable: c.Table}
}

// Function is one compute handler.
type Function struct {
	// ID is the logical identifier, e.g. "getEvents".
	ID          string
	Collection  string
	Method      gateway.Method
	EntryPoint  string
	Runtime     string
	MemoryMB    int32
	Description string
	Config      Config
}

func (f Function) Validate() error {
	var errs []error
	if f.ID == "" {
		errs = append(errs, errors.New("function id is required"))
	}
	if f.EntryPoint == "" {
		errs = append(errs, fmt.Errorf("function %s: entry point is required", f.ID))
	}
	if f.Runtime == "" {
		errs = append(errs, fmt.Errorf("function %s: runtime is required", f.ID))
	}
	if f.Config.Table == "" {
		errs = append(errs, fmt.Errorf("function %s: %s is required", f.ID, EnvTable))
	}
	if err := table.Positive("memory", f.MemoryMB); err != nil {
		errs = append(errs, fmt.Errorf("function %s: %w", f.ID, err))
	}
	return errors.Join(errs...)
}

// FunctionID names the handler of collection for m: "getEvents", "deleteStocks", ...
func FunctionID(collection string, m gateway.Method) string {
	return verbPrefix(m) + ExportName(collection)
}

// RoleName is the execution role created for the handler.
func (f Function) RoleName() string {
	return f.ID + "-role"
}

func verbPrefix(m gateway.Method) string {
	switch m {
	case gateway.MethodGet:
		return "get"
	case gateway.MethodPost:
		return "post"
	case gateway.MethodPut:
		return "put"
	case gateway.MethodDelete:
		return "delete"
	}
	return "unknown"
}

// DefaultDescription describes what the handler of collection does for m.
func DefaultDescription(collection string, m gateway.Method) string {
	switch m {
	case gateway.MethodGet:
		return "List " + collection
	case gateway.MethodPost:
		return "Add to " + collection
	case gateway.MethodPut:
		return "Update in " + collection
	case gateway.MethodDelete:
		return "Remove from " + collection
	}
	return string(m) + " " + collection
}

// ValidLogicalID reports whether s is usable as a template logical id: ASCII letters and
// digits only.
func ValidLogicalID(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// ExportName is the CamelCase form of a collection name used in logical IDs. The first
// letter of each word separated by '-', '_', '.' or '~' is upper-cased.
func ExportName(s string) string {
	out := make([]byte, 0, len(s))
	upper := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' || c == '_' || c == '.' || c == '~' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}
