package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Louis4933/CYFEAST-2023-BACK/internal/ctxlog"
)

var ErrUnsupportedFormat = errors.New("unsupported config format")

// FileNames are the declaration files Find looks for, in order of preference.
var FileNames = []string{"cyfeast.yaml", "cyfeast.yml", "cyfeast.hcl"}

const (
	EnvRegion      = "CYFEAST_REGION"
	EnvAccount     = "CYFEAST_ACCOUNT"
	EnvPartition   = "CYFEAST_PARTITION"
	EnvTablePrefix = "CYFEAST_TABLE_PREFIX"
	EnvStageName   = "CYFEAST_STAGE"
)

// Load reads a declaration from path. The format follows the file extension.
func Load(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)
	var (
		f   *File
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err = loadYAML(path)
	case ".hcl":
		f, err = loadHCL(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded deployment declaration.", "path", path, "collections", len(f.Collections))
	return f, nil
}

func loadYAML(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file %s: %w", path, err)
	}
	return &f, nil
}

func loadHCL(path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	return &f, nil
}

// Find searches for a declaration file walking up from dir. Returns "" if none is found.
func Find(dir string) string {
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Resolve loads the declaration at path, or the one Find locates from the working
// directory when path is empty. With neither, the reference deployment is returned.
// The second result names where the declaration came from.
func Resolve(ctx context.Context, path string) (*File, string, error) {
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = Find(wd)
		}
	}
	if path == "" {
		ctxlog.FromContext(ctx).Debug("No deployment declaration found, using reference deployment.")
		return Reference(), "reference", nil
	}
	f, err := Load(ctx, path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}

// LoadDotEnv loads variables from the given .env files into the process environment
// without overriding variables already set. With no files, ./.env is tried and its
// absence is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv overrides account and naming fields from CYFEAST_* variables.
func (f *File) ApplyEnv(lookup LookupFunc) {
	if v, ok := lookup(EnvRegion); ok && v != "" {
		f.Region = v
	}
	if v, ok := lookup(EnvAccount); ok && v != "" {
		f.Account = v
	}
	if v, ok := lookup(EnvPartition); ok && v != "" {
		f.Partition = v
	}
	if v, ok := lookup(EnvStageName); ok && v != "" {
		f.StageName = v
	}
	if v, ok := lookup(EnvTablePrefix); ok {
		f.TablePrefix = &v
	}
}
