package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Louis4933/CYFEAST-2023-BACK/collection"
	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/dynamodb/table"
	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
)

func newTestStore(t *testing.T) *Store {
	store, err := Open(StoreOptions{InMemory: true})
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func spec(name, pk string, memory int32) collection.Spec {
	return collection.Spec{
		Name:         name,
		PartitionKey: pk,
		TableName:    "cy-feast-" + name,
		Capacity:     table.DefaultCapacity,
		EntryPoint:   "lambda/" + name + "ApiHandlerLambda.ts",
		MemoryMB:     memory,
		Runtime:      compute.DefaultRuntime,
	}
}

func build(t *testing.T, specs ...collection.Spec) *stack.Stack {
	t.Helper()
	s, err := stack.Build(context.Background(), stack.Config{Name: "cyFeastApi", Collections: specs})
	require.NoError(t, err)
	return s
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Load(ctx, "cyFeastApi")
	require.ErrorIs(t, err, ErrNotFound)

	s := build(t, spec("events", "event-id", 128), spec("stocks", "stock-id", 128))
	saved, err := store.Save(ctx, s, "yaml", []byte("Resources: {}\n"))
	require.NoError(t, err)

	got, err := store.Load(ctx, "cyFeastApi")
	require.NoError(t, err)
	require.Equal(t, saved, got)
	require.Equal(t, s.Graph(), got.Graph)
	require.Equal(t, "yaml", got.Format)
	require.Equal(t, "Resources: {}\n", string(got.Template))

	names, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"cyFeastApi"}, names)

	require.NoError(t, store.Delete(ctx, "cyFeastApi"))
	_, err = store.Load(ctx, "cyFeastApi")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompare(t *testing.T) {
	prev := build(t, spec("events", "event-id", 128), spec("stocks", "stock-id", 128)).Graph()

	require.True(t, Compare(prev, prev).Empty())
	require.Equal(t, "No changes.\n", Compare(prev, prev).String())

	next := build(t, spec("events", "event-id", 256), spec("menus", "menu-id", 128)).Graph()
	c := Compare(prev, next)

	require.Contains(t, c.Added, "table/cy-feast-menus")
	require.Contains(t, c.Added, "method/GET /menus")
	require.Contains(t, c.Removed, "function/getStocks")
	require.Len(t, c.Added, 1+4+4+1+4)
	require.Len(t, c.Removed, 1+4+4+1+4)

	require.Len(t, c.Modified, 4)
	require.Contains(t, c.Modified, "function/postEvents")
	require.Contains(t, c.Modified["function/postEvents"], "256")
	require.Contains(t, c.String(), "~ function/deleteEvents\n")
	require.Contains(t, c.String(), "+ grant/putMenus\n")
}
