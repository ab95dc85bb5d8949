package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Louis4933/CYFEAST-2023-BACK/collection"
	"github.com/Louis4933/CYFEAST-2023-BACK/gateway"
	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReferenceBuilds(t *testing.T) {
	cfg := Reference().StackConfig()
	require.Equal(t, "cyFeastApi", cfg.Name)
	require.Len(t, cfg.Collections, 2)

	events := cfg.Collections[0]
	require.Equal(t, "cy-feast-events", events.TableName)
	require.Equal(t, "event-id", events.PartitionKey)
	require.Equal(t, "lambda/eventsApiHandlerLambda.ts", events.EntryPoint)
	require.Equal(t, int64(1), events.Capacity.Read)
	require.Equal(t, int64(1), events.Capacity.Write)
	require.Equal(t, int32(128), events.MemoryMB)
	require.Equal(t, "nodejs18.x", events.Runtime)
	require.Equal(t, "cy-feast-stocks", cfg.Collections[1].TableName)

	s, err := stack.Build(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, s.Routes(), 8)
	require.Equal(t, "CY Feast API", s.DisplayName())
	require.Equal(t, "Gestionnaire d'évènements du CY Feast", s.Description())

	c, ok := s.Collection("events")
	require.True(t, ok)
	get, _ := c.Handler(gateway.MethodGet)
	require.Equal(t, "Appeler une liste d'évènements", get.Description)
	c, _ = s.Collection("stocks")
	put, _ := c.Handler(gateway.MethodPut)
	require.Equal(t, "Mettre à jour un stock", put.Description)
}

func TestExplicitZeroIsRejected(t *testing.T) {
	for name, content := range map[string]string{
		"collection capacity": `
name: cyFeastApi
collections:
  - name: events
    partitionKey: event-id
    readCapacity: 0
`,
		"default memory": `
name: cyFeastApi
defaults:
  memoryMB: 0
collections:
  - name: events
    partitionKey: event-id
`,
	} {
		t.Run(name, func(t *testing.T) {
			f, err := Load(context.Background(), writeFile(t, t.TempDir(), "cyfeast.yaml", content))
			require.NoError(t, err)
			s, err := stack.Build(context.Background(), f.StackConfig())
			require.ErrorIs(t, err, collection.ErrInvalidSpec)
			require.ErrorContains(t, err, "must be positive")
			require.Nil(t, s)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cyfeast.yaml", `
name: feastApi
tablePrefix: dev-
region: eu-west-3
defaults:
  memoryMB: 256
  readCapacity: 5
collections:
  - name: events
    partitionKey: event-id
    writeCapacity: 2
  - name: stocks
    partitionKey: stock-id
    entry: bin/stocks.js
    memoryMB: 512
`)
	f, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "eu-west-3", f.SynthEnv().Region)

	cfg := f.StackConfig()
	require.Equal(t, "feastApi", cfg.Name)
	events, stocks := cfg.Collections[0], cfg.Collections[1]
	require.Equal(t, "dev-events", events.TableName)
	require.Equal(t, int64(5), events.Capacity.Read)
	require.Equal(t, int64(2), events.Capacity.Write)
	require.Equal(t, int32(256), events.MemoryMB)
	require.Equal(t, "bin/stocks.js", stocks.EntryPoint)
	require.Equal(t, int32(512), stocks.MemoryMB)
	require.Equal(t, int64(1), stocks.Capacity.Write)
}

func TestLoadHCL(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cyfeast.hcl", `
name       = "cyFeastApi"
stage_name = "dev"

defaults {
  memory_mb = 192
}

collection "events" {
  partition_key = "event-id"
}

collection "stocks" {
  partition_key = "stock-id"
  table_name    = "stock-table"
  descriptions = {
    GET = "Appeler une liste de stocks"
  }
}
`)
	f, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "dev", f.SynthOptions().StageName)

	cfg := f.StackConfig()
	require.Len(t, cfg.Collections, 2)
	require.Equal(t, "events", cfg.Collections[0].Name)
	require.Equal(t, "cy-feast-events", cfg.Collections[0].TableName)
	require.Equal(t, "stock-table", cfg.Collections[1].TableName)
	require.Equal(t, int32(192), cfg.Collections[1].MemoryMB)
	require.Equal(t, map[string]string{"GET": "Appeler une liste de stocks"}, cfg.Collections[1].Descriptions)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(context.Background(), writeFile(t, dir, "cyfeast.toml", ""))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(context.Background(), writeFile(t, dir, "bad.hcl", `collection {`))
	require.Error(t, err)

	_, err = Load(context.Background(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestMissingPartitionKeyRejectedByBuild(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cyfeast.yaml", `
name: cyFeastApi
collections:
  - name: events
    partitionKey: event-id
  - name: stocks
`)
	f, err := Load(context.Background(), path)
	require.NoError(t, err)

	s, err := stack.Build(context.Background(), f.StackConfig())
	require.Error(t, err)
	require.Nil(t, s)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	require.Equal(t, "", Find(nested))

	want := writeFile(t, root, "cyfeast.hcl", "")
	require.Equal(t, want, Find(nested))

	want = writeFile(t, filepath.Join(root, "a"), "cyfeast.yaml", "")
	require.Equal(t, want, Find(nested))
}

func TestResolve(t *testing.T) {
	path := writeFile(t, t.TempDir(), "deploy.yaml", "name: other\n")
	f, source, err := Resolve(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, path, source)
	require.Equal(t, "other", f.Name)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvRegion:      "us-east-1",
		EnvAccount:     "123456789012",
		EnvTablePrefix: "",
		EnvStageName:   "qa",
	}
	f := Reference()
	f.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	require.Equal(t, "us-east-1", f.Region)
	require.Equal(t, "123456789012", f.Account)
	require.Equal(t, "qa", f.StageName)
	require.Equal(t, "events", f.StackConfig().Collections[0].TableName)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), "test.env", "CYFEAST_ACCOUNT_TEST_ONLY=42\n")
	t.Setenv("CYFEAST_ACCOUNT_TEST_ONLY", "")
	require.NoError(t, os.Unsetenv("CYFEAST_ACCOUNT_TEST_ONLY"))

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "42", os.Getenv("CYFEAST_ACCOUNT_TEST_ONLY"))

	require.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
