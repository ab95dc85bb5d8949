package table

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

var eventsTable = TableDefinition{
	Name: "cy-feast-events",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "event-id", Kind: KeyKindS},
	},
	Capacity: DefaultCapacity,
}

func TestValidate(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		require.NoError(t, eventsTable.Validate())
	})
	t.Run("missing partition key", func(t *testing.T) {
		def := eventsTable
		def.KeyDefinitions.PartitionKey.Name = ""
		err := def.Validate()
		require.ErrorIs(t, err, ErrInvalidDefinition)
		require.ErrorContains(t, err, "partition key name is required")
	})
	t.Run("unsupported key kind", func(t *testing.T) {
		def := eventsTable
		def.KeyDefinitions.PartitionKey.Kind = "BOOL"
		require.ErrorIs(t, def.Validate(), ErrInvalidDefinition)
	})
	t.Run("reports every problem", func(t *testing.T) {
		err := TableDefinition{Capacity: Capacity{Read: 0, Write: -1}}.Validate()
		require.ErrorContains(t, err, "table name is required")
		require.ErrorContains(t, err, "partition key name is required")
		require.ErrorContains(t, err, "read capacity must be positive, got 0")
		require.ErrorContains(t, err, "write capacity must be positive, got -1")
	})
}

func TestCreateTableInput(t *testing.T) {
	in := eventsTable.CreateTableInput()
	require.Equal(t, "cy-feast-events", aws.ToString(in.TableName))
	require.Equal(t, types.BillingModeProvisioned, in.BillingMode)
	require.Len(t, in.KeySchema, 1)
	require.Equal(t, "event-id", aws.ToString(in.KeySchema[0].AttributeName))
	require.Equal(t, types.KeyTypeHash, in.KeySchema[0].KeyType)
	require.Len(t, in.AttributeDefinitions, 1)
	require.Equal(t, types.ScalarAttributeTypeS, in.AttributeDefinitions[0].AttributeType)
	require.Equal(t, int64(1), aws.ToInt64(in.ProvisionedThroughput.ReadCapacityUnits))
	require.Equal(t, int64(1), aws.ToInt64(in.ProvisionedThroughput.WriteCapacityUnits))

	require.Equal(t, "cy-feast-events", aws.ToString(eventsTable.DeleteTableInput().TableName))
}

func TestARN(t *testing.T) {
	require.Equal(t, "arn:aws:dynamodb:eu-west-3:123456789012:table/cy-feast-events",
		eventsTable.ARN("", "eu-west-3", "123456789012"))
	require.Equal(t, "arn:aws-cn:dynamodb:cn-north-1:1:table/cy-feast-events",
		eventsTable.ARN("aws-cn", "cn-north-1", "1"))
}

func TestKey(t *testing.T) {
	t.Run("string key", func(t *testing.T) {
		key, err := eventsTable.Key("evt-1")
		require.NoError(t, err)
		require.Equal(t, map[string]types.AttributeValue{
			"event-id": &types.AttributeValueMemberS{Value: "evt-1"},
		}, key)
	})
	t.Run("kind mismatch", func(t *testing.T) {
		_, err := eventsTable.Key(42)
		require.ErrorContains(t, err, "partition key kind does not match")
	})
	t.Run("nil value", func(t *testing.T) {
		_, err := eventsTable.Key(nil)
		require.ErrorContains(t, err, "is required but got nil")
	})
}

func TestExtractPrimaryKey(t *testing.T) {
	t.Run("finds partition key", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"event-id": &types.AttributeValueMemberS{Value: "evt-1"},
			"title":    &types.AttributeValueMemberS{Value: "Gala"},
		}
		pk, err := eventsTable.ExtractPrimaryKey(doc)
		require.NoError(t, err)
		require.Equal(t, "event-id", pk.Definition.PartitionKey.Name)
		require.Equal(t, "evt-1", pk.Values.PartitionKey)
	})
	t.Run("missing partition key", func(t *testing.T) {
		_, err := eventsTable.ExtractPrimaryKey(map[string]types.AttributeValue{})
		require.ErrorContains(t, err, `partition key "event-id" not found`)
	})
	t.Run("wrong kind", func(t *testing.T) {
		doc := map[string]types.AttributeValue{
			"event-id": &types.AttributeValueMemberN{Value: "1"},
		}
		_, err := eventsTable.ExtractPrimaryKey(doc)
		require.ErrorContains(t, err, "kind does not match definition")
	})
}
