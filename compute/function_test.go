package compute

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Louis4933/CYFEAST-2023-BACK/dynamodb/table"
	"github.com/Louis4933/CYFEAST-2023-BACK/gateway"
)

func TestFunctionID(t *testing.T) {
	require.Equal(t, "getEvents", FunctionID("events", gateway.MethodGet))
	require.Equal(t, "postStocks", FunctionID("stocks", gateway.MethodPost))
	require.Equal(t, "putEvents", FunctionID("events", gateway.MethodPut))
	require.Equal(t, "deleteStocks", FunctionID("stocks", gateway.MethodDelete))
	require.Equal(t, "getLineItems", FunctionID("line-items", gateway.MethodGet))
	require.Equal(t, "V1Items", ExportName("v1.items"))
}

func TestEnvironment(t *testing.T) {
	cfg := Config{Table: "cy-feast-events"}
	require.Equal(t, map[string]string{"TABLE": "cy-feast-events"}, cfg.Environment())
}

func TestValidate(t *testing.T) {
	fn := Function{
		ID:         "getEvents",
		Collection: "events",
		Method:     gateway.MethodGet,
		EntryPoint: "lambda/events.ts",
		Runtime:    DefaultRuntime,
		MemoryMB:   DefaultMemoryMB,
		Config:     Config{Table: "cy-feast-events"},
	}
	require.NoError(t, fn.Validate())
	require.Equal(t, "getEvents-role", fn.RoleName())

	bad := fn
	bad.MemoryMB = 0
	bad.Config.Table = ""
	bad.EntryPoint = ""
	err := bad.Validate()
	require.ErrorIs(t, err, table.ErrInvalidDefinition)
	require.ErrorContains(t, err, "memory must be positive")
	require.ErrorContains(t, err, "TABLE is required")
	require.ErrorContains(t, err, "entry point is required")
}

func TestDefaultDescription(t *testing.T) {
	require.Equal(t, "List events", DefaultDescription("events", gateway.MethodGet))
	require.Equal(t, "Remove from stocks", DefaultDescription("stocks", gateway.MethodDelete))
}

func TestValidLogicalID(t *testing.T) {
	require.True(t, ValidLogicalID(ExportName("cyFeastApi")))
	require.True(t, ValidLogicalID(ExportName("cy-feast.api")))
	require.False(t, ValidLogicalID(ExportName("CY Feast API")))
	require.False(t, ValidLogicalID(""))
}
