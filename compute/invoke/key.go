package invoke

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/dynamodb/table"
)

var ErrNoRecordKey = errors.New("request does not carry a record key")

// Table is the definition of the table a handler serves: the configured table name and
// the collection's string partition key.
func Table(cfg compute.Config, partitionKey string) table.TableDefinition {
	return table.TableDefinition{
		Name: cfg.Table,
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: partitionKey, Kind: table.KeyKindS},
		},
	}
}

// RecordKey returns the key of the record req addresses, ready for GetItem, UpdateItem or
// DeleteItem. The partition key is read from the path parameters, then the query string,
// then a JSON object body.
func RecordKey(def table.TableDefinition, req events.APIGatewayProxyRequest) (map[string]types.AttributeValue, error) {
	name := def.KeyDefinitions.PartitionKey.Name
	if v, ok := req.PathParameters[name]; ok {
		return def.Key(v)
	}
	if v, ok := req.QueryStringParameters[name]; ok {
		return def.Key(v)
	}

	doc, err := RecordBody(req)
	if err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	pk, err := def.ExtractPrimaryKey(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoRecordKey, err)
	}
	return pk.DDB()
}

// RecordBody decodes the request body as a JSON object.
func RecordBody(req events.APIGatewayProxyRequest) (map[string]any, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("decode request body: %w", err)
		}
		body = decoded
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNoRecordKey)
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: body is not a JSON object: %w", ErrNoRecordKey, err)
	}
	return doc, nil
}
