package table

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
)

// ErrInvalidDefinition is matched by every validation failure of a TableDefinition.
var ErrInvalidDefinition = errors.New("invalid table definition")

// TableDefinition declares a provisioned-throughput table keyed by a single partition key.
type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	Capacity       Capacity
}

// Capacity is the provisioned read and write throughput of a table.
type Capacity struct {
	Read  int64
	Write int64
}

// DefaultCapacity is the smallest provisioned throughput DynamoDB accepts.
var DefaultCapacity = Capacity{Read: 1, Write: 1}

// Validate reports every problem with the definition at once.
func (t TableDefinition) Validate() error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, fmt.Errorf("%w: table name is required", ErrInvalidDefinition))
	}
	if err := t.KeyDefinitions.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := t.Capacity.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Capacity) Validate() error {
	return errors.Join(
		Positive("read capacity", c.Read),
		Positive("write capacity", c.Write),
	)
}

// Positive rejects zero and negative sizing knobs such as capacity units or memory.
func Positive[T constraints.Integer](field string, v T) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidDefinition, field, v)
	}
	return nil
}

// CreateTableInput returns the SDK request that creates this table.
func (t TableDefinition) CreateTableInput() *dynamodb.CreateTableInput {
	pk := t.KeyDefinitions.PartitionKey
	return &dynamodb.CreateTableInput{
		TableName: aws.String(t.Name),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(pk.Name),
				AttributeType: types.ScalarAttributeType(pk.Kind),
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(pk.Name),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModeProvisioned,
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(t.Capacity.Read),
			WriteCapacityUnits: aws.Int64(t.Capacity.Write),
		},
	}
}

// DeleteTableInput returns the SDK request that removes this table on teardown.
func (t TableDefinition) DeleteTableInput() *dynamodb.DeleteTableInput {
	return &dynamodb.DeleteTableInput{
		TableName: aws.String(t.Name),
	}
}

// ARN is the table's resource name in the given partition, region and account.
func (t TableDefinition) ARN(partition, region, account string) string {
	if partition == "" {
		partition = "aws"
	}
	return fmt.Sprintf("arn:%s:dynamodb:%s:%s:table/%s", partition, region, account, t.Name)
}

// ExtractPrimaryKey extracts the primary key values from a document.
func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

// Key builds the key map a handler sends to address one record of this table.
func (t TableDefinition) Key(value any) (map[string]types.AttributeValue, error) {
	return PrimaryKey{
		Definition: t.KeyDefinitions,
		Values:     PrimaryKeyValues{PartitionKey: value},
	}.DDB()
}
