// Package config reads the deployment declaration: the gateway, its defaults, and the
// collections to provision. Declarations are written in YAML (cyfeast.yaml) or HCL
// (cyfeast.hcl); without a file the reference deployment is used.
package config

import (
	"strings"

	"github.com/Louis4933/CYFEAST-2023-BACK/collection"
	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/dynamodb/table"
	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
	"github.com/Louis4933/CYFEAST-2023-BACK/synth"
)

const (
	DefaultTablePrefix  = "cy-feast-"
	DefaultEntryPattern = "lambda/{name}ApiHandlerLambda.ts"
)

// File is a deployment declaration.
type File struct {
	Name string `yaml:"name" hcl:"name,optional"`
	// DisplayName is the name the gateway is published under. Defaults to Name.
	DisplayName string `yaml:"displayName" hcl:"display_name,optional"`
	Description string `yaml:"description" hcl:"description,optional"`
	// TablePrefix is prepended to a collection name to form its table name. nil means
	// DefaultTablePrefix; an explicit empty string disables the prefix.
	TablePrefix *string `yaml:"tablePrefix" hcl:"table_prefix,optional"`
	Partition   string  `yaml:"partition" hcl:"partition,optional"`
	Region      string  `yaml:"region" hcl:"region,optional"`
	Account     string  `yaml:"account" hcl:"account,optional"`
	StageName   string  `yaml:"stageName" hcl:"stage_name,optional"`

	Defaults    *Defaults    `yaml:"defaults" hcl:"defaults,block"`
	Collections []Collection `yaml:"collections" hcl:"collection,block"`
}

// Defaults apply to every collection that leaves the matching field unset. Numeric fields
// are pointers so that an explicit zero is kept and rejected when the stack is built.
type Defaults struct {
	MemoryMB      *int32 `yaml:"memoryMB" hcl:"memory_mb,optional"`
	Runtime       string `yaml:"runtime" hcl:"runtime,optional"`
	ReadCapacity  *int64 `yaml:"readCapacity" hcl:"read_capacity,optional"`
	WriteCapacity *int64 `yaml:"writeCapacity" hcl:"write_capacity,optional"`
	// EntryPattern derives an entry point from the collection name; "{name}" is replaced.
	EntryPattern string `yaml:"entryPattern" hcl:"entry_pattern,optional"`
}

type Collection struct {
	Name          string `yaml:"name" hcl:"name,label"`
	PartitionKey  string `yaml:"partitionKey" hcl:"partition_key,optional"`
	TableName     string `yaml:"tableName" hcl:"table_name,optional"`
	Entry         string `yaml:"entry" hcl:"entry,optional"`
	ReadCapacity  *int64 `yaml:"readCapacity" hcl:"read_capacity,optional"`
	WriteCapacity *int64 `yaml:"writeCapacity" hcl:"write_capacity,optional"`
	MemoryMB      *int32 `yaml:"memoryMB" hcl:"memory_mb,optional"`
	Runtime       string `yaml:"runtime" hcl:"runtime,optional"`
	Description   string `yaml:"description" hcl:"description,optional"`
	// Descriptions sets the description of the handler serving a method, keyed by
	// "GET", "POST", "PUT" or "DELETE".
	Descriptions map[string]string `yaml:"descriptions" hcl:"descriptions,optional"`
}

// Reference is the CY Feast deployment: events and stocks behind "CY Feast API".
func Reference() *File {
	return &File{
		Name:        "cyFeastApi",
		DisplayName: "CY Feast API",
		Description: "Gestionnaire d'évènements du CY Feast",
		Collections: []Collection{
			{
				Name:         "events",
				PartitionKey: "event-id",
				Descriptions: map[string]string{
					"GET":    "Appeler une liste d'évènements",
					"POST":   "Ajouter un évènement",
					"DELETE": "Supprimer un évènement",
					"PUT":    "Mettre à jour un évènement",
				},
			},
			{
				Name:         "stocks",
				PartitionKey: "stock-id",
				Descriptions: map[string]string{
					"GET":    "Appeler une liste de stocks",
					"POST":   "Ajouter un stock",
					"DELETE": "Supprimer un stock",
					"PUT":    "Mettre à jour un stock",
				},
			},
		},
	}
}

type resolvedDefaults struct {
	memoryMB     int32
	runtime      string
	capacity     table.Capacity
	entryPattern string
}

func (f *File) defaults() resolvedDefaults {
	d := Defaults{}
	if f.Defaults != nil {
		d = *f.Defaults
	}
	return resolvedDefaults{
		memoryMB: valueOr(d.MemoryMB, compute.DefaultMemoryMB),
		runtime:  orDefault(d.Runtime, compute.DefaultRuntime),
		capacity: table.Capacity{
			Read:  valueOr(d.ReadCapacity, table.DefaultCapacity.Read),
			Write: valueOr(d.WriteCapacity, table.DefaultCapacity.Write),
		},
		entryPattern: orDefault(d.EntryPattern, DefaultEntryPattern),
	}
}

func (f *File) tablePrefix() string {
	if f.TablePrefix == nil {
		return DefaultTablePrefix
	}
	return *f.TablePrefix
}

// StackConfig resolves defaults into the provisioner's input. Values are not validated
// here; stack.Build rejects what it cannot provision.
func (f *File) StackConfig() stack.Config {
	d := f.defaults()
	cfg := stack.Config{
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Description: f.Description,
	}
	for _, c := range f.Collections {
		spec := collection.Spec{
			Name:         c.Name,
			PartitionKey: c.PartitionKey,
			TableName:    c.TableName,
			Capacity: table.Capacity{
				Read:  valueOr(c.ReadCapacity, d.capacity.Read),
				Write: valueOr(c.WriteCapacity, d.capacity.Write),
			},
			EntryPoint:   c.Entry,
			MemoryMB:     valueOr(c.MemoryMB, d.memoryMB),
			Runtime:      orDefault(c.Runtime, d.runtime),
			Description:  c.Description,
			Descriptions: c.Descriptions,
		}
		if spec.TableName == "" && c.Name != "" {
			spec.TableName = f.tablePrefix() + c.Name
		}
		if spec.EntryPoint == "" && c.Name != "" {
			spec.EntryPoint = strings.ReplaceAll(d.entryPattern, "{name}", c.Name)
		}
		cfg.Collections = append(cfg.Collections, spec)
	}
	return cfg
}

// SynthOptions returns the template options declared in the file.
func (f *File) SynthOptions() synth.Options {
	return synth.Options{StageName: f.StageName}
}

// SynthEnv returns the account the SDK request plan targets.
func (f *File) SynthEnv() synth.Env {
	return synth.Env{Partition: f.Partition, Region: f.Region, Account: f.Account}
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
