package invoke

import (
	"encoding/base64"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
)

func TestRecordKey(t *testing.T) {
	def := Table(compute.Config{Table: "cy-feast-events"}, "event-id")
	require.Equal(t, "cy-feast-events", def.Name)
	want := map[string]types.AttributeValue{
		"event-id": &types.AttributeValueMemberS{Value: "e-1"},
	}

	tests := []struct {
		name string
		req  events.APIGatewayProxyRequest
	}{
		{"path", events.APIGatewayProxyRequest{PathParameters: map[string]string{"event-id": "e-1"}}},
		{"query", events.APIGatewayProxyRequest{QueryStringParameters: map[string]string{"event-id": "e-1"}}},
		{"body", events.APIGatewayProxyRequest{Body: `{"event-id":"e-1","name":"Gala"}`}},
		{"base64 body", events.APIGatewayProxyRequest{
			Body:            base64.StdEncoding.EncodeToString([]byte(`{"event-id":"e-1"}`)),
			IsBase64Encoded: true,
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key, err := RecordKey(def, tc.req)
			require.NoError(t, err)
			require.Equal(t, want, key)
		})
	}
}

func TestRecordKeyErrors(t *testing.T) {
	def := Table(compute.Config{Table: "cy-feast-stocks"}, "stock-id")

	_, err := RecordKey(def, events.APIGatewayProxyRequest{})
	require.ErrorIs(t, err, ErrNoRecordKey)

	_, err = RecordKey(def, events.APIGatewayProxyRequest{Body: `[1, 2]`})
	require.ErrorIs(t, err, ErrNoRecordKey)

	_, err = RecordKey(def, events.APIGatewayProxyRequest{Body: `{"name":"flour"}`})
	require.ErrorIs(t, err, ErrNoRecordKey)
	require.ErrorContains(t, err, `partition key "stock-id" not found`)

	_, err = RecordKey(def, events.APIGatewayProxyRequest{Body: `{"stock-id":42}`})
	require.ErrorIs(t, err, ErrNoRecordKey)
	require.ErrorContains(t, err, "kind does not match")
}
