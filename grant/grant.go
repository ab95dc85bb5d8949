// Package grant assigns least-privilege table permissions to handlers.
//
// The kind of access a handler receives is a pure function of the HTTP method it serves:
//
//	GET    read
//	POST   write
//	PUT    read-write
//	DELETE read-write
//
// A method without an entry fails closed with ErrNoPolicy.
package grant

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/Louis4933/CYFEAST-2023-BACK/gateway"
)

var ErrNoPolicy = errors.New("no grant policy for method")

type Kind string

const (
	KindRead      Kind = "read"
	KindWrite     Kind = "write"
	KindReadWrite Kind = "read-write"
)

var policy = map[gateway.Method]Kind{
	gateway.MethodGet:    KindRead,
	gateway.MethodPost:   KindWrite,
	gateway.MethodPut:    KindReadWrite,
	gateway.MethodDelete: KindReadWrite,
}

// For returns the grant kind a handler serving m receives.
func For(m gateway.Method) (Kind, error) {
	k, ok := policy[m]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrNoPolicy, m)
	}
	return k, nil
}

var (
	readActions = []string{
		"dynamodb:BatchGetItem",
		"dynamodb:GetRecords",
		"dynamodb:GetShardIterator",
		"dynamodb:Query",
		"dynamodb:GetItem",
		"dynamodb:Scan",
		"dynamodb:ConditionCheckItem",
		"dynamodb:DescribeTable",
	}
	writeActions = []string{
		"dynamodb:BatchWriteItem",
		"dynamodb:PutItem",
		"dynamodb:UpdateItem",
		"dynamodb:DeleteItem",
		"dynamodb:DescribeTable",
	}
)

// Actions lists the IAM actions of a kind, sorted and without duplicates.
func (k Kind) Actions() ([]string, error) {
	if !k.CanRead() && !k.CanWrite() {
		return nil, fmt.Errorf("unknown grant kind %q", k)
	}
	var actions []string
	if k.CanRead() {
		actions = append(actions, readActions...)
	}
	if k.CanWrite() {
		actions = append(actions, writeActions...)
	}
	return dedupeSorted(actions), nil
}

func (k Kind) CanRead() bool  { return k == KindRead || k == KindReadWrite }
func (k Kind) CanWrite() bool { return k == KindWrite || k == KindReadWrite }

func dedupeSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Grant is a directed permission edge from a handler to a table.
type Grant struct {
	Handler string
	Table   string
	Kind    Kind
}

// New derives the grant for the handler serving m on table.
func New(handler, table string, m gateway.Method) (Grant, error) {
	k, err := For(m)
	if err != nil {
		return Grant{}, fmt.Errorf("grant for %s: %w", handler, err)
	}
	return Grant{Handler: handler, Table: table, Kind: k}, nil
}

// PolicyDocument is an IAM policy in its JSON shape.
type PolicyDocument struct {
	Version   string      `json:"Version" yaml:"Version"`
	Statement []Statement `json:"Statement" yaml:"Statement"`
}

type Statement struct {
	Effect   string   `json:"Effect" yaml:"Effect"`
	Action   []string `json:"Action" yaml:"Action"`
	Resource []any    `json:"Resource" yaml:"Resource"`
}

const policyVersion = "2012-10-17"

// Document renders the grant against a table and its indexes. Both are usually ARN
// strings, but template intrinsics (such as a Fn::GetAtt map) are accepted as is.
func (g Grant) Document(tableARN, indexARN any) (PolicyDocument, error) {
	actions, err := g.Kind.Actions()
	if err != nil {
		return PolicyDocument{}, err
	}
	return PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{{
			Effect:   "Allow",
			Action:   actions,
			Resource: []any{tableARN, indexARN},
		}},
	}, nil
}

// IndexARN is the resource pattern covering every index of the table at tableARN.
func IndexARN(tableARN string) string {
	return tableARN + "/index/*"
}

// PolicyName is the inline policy name attached to the handler's role.
func (g Grant) PolicyName() string {
	return fmt.Sprintf("%s-%s-%s", g.Handler, g.Table, g.Kind)
}

// PutRolePolicyInput returns the SDK request attaching the grant to role.
func (g Grant) PutRolePolicyInput(role, tableARN string) (*iam.PutRolePolicyInput, error) {
	doc, err := g.Document(tableARN, IndexARN(tableARN))
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal policy document: %w", err)
	}
	return &iam.PutRolePolicyInput{
		RoleName:       aws.String(role),
		PolicyName:     aws.String(g.PolicyName()),
		PolicyDocument: aws.String(string(raw)),
	}, nil
}

// AssumeRolePolicy is the trust policy letting Lambda assume a handler's role.
func AssumeRolePolicy() map[string]any {
	return map[string]any{
		"Version": policyVersion,
		"Statement": []any{
			map[string]any{
				"Effect":    "Allow",
				"Principal": map[string]any{"Service": "lambda.amazonaws.com"},
				"Action":    "sts:AssumeRole",
			},
		},
	}
}
