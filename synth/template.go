// Package synth renders a built stack into deployable artifacts: a CloudFormation template,
// or the AWS SDK requests that create and tear down the stateful parts of it.
//
// Rendering never calls AWS. Resource names inside the template are resolved by
// CloudFormation intrinsics (Ref, Fn::GetAtt, Fn::Sub) at deploy time.
package synth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"gopkg.in/yaml.v3"

	"github.com/Louis4933/CYFEAST-2023-BACK/collection"
	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/dynamodb/table"
	"github.com/Louis4933/CYFEAST-2023-BACK/grant"
	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
)

const (
	formatVersion        = "2010-09-09"
	basicExecutionRole   = "arn:${AWS::Partition}:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"
	assetsBucketParam    = "AssetsBucket"
	DefaultStageName     = "prod"
	DefaultLambdaHandler = "index.handler"
)

// ErrDuplicateLogicalID is returned when two constructs of a stack would render under the
// same logical id, e.g. the role of the events GET handler and the GET handler of
// events-role.
var ErrDuplicateLogicalID = errors.New("duplicate logical id")

type Template struct {
	AWSTemplateFormatVersion string               `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string               `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]Resource  `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output    `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

type Parameter struct {
	Type        string `json:"Type" yaml:"Type"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
}

type Resource struct {
	Type       string         `json:"Type" yaml:"Type"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
	Properties map[string]any `json:"Properties" yaml:"Properties"`
	Metadata   map[string]any `json:"Metadata,omitempty" yaml:"Metadata,omitempty"`
}

type Output struct {
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any    `json:"Value" yaml:"Value"`
}

// Options tune the rendered template.
type Options struct {
	// StageName is the API Gateway stage the deployment is published to.
	StageName string
	// LambdaHandler is the exported function inside each bundled entry point.
	LambdaHandler string
}

func (o Options) withDefaults() Options {
	if o.StageName == "" {
		o.StageName = DefaultStageName
	}
	if o.LambdaHandler == "" {
		o.LambdaHandler = DefaultLambdaHandler
	}
	return o
}

func (t *Template) addResource(id string, r Resource) error {
	if _, ok := t.Resources[id]; ok {
		return fmt.Errorf("%w %q: %s collides with %s", ErrDuplicateLogicalID, id, r.Type, t.Resources[id].Type)
	}
	t.Resources[id] = r
	return nil
}

func (t *Template) addOutput(id string, o Output) error {
	if _, ok := t.Outputs[id]; ok {
		return fmt.Errorf("%w %q: output declared twice", ErrDuplicateLogicalID, id)
	}
	t.Outputs[id] = o
	return nil
}

func ref(id string) map[string]any { return map[string]any{"Ref": id} }

func getAtt(id, attr string) map[string]any {
	return map[string]any{"Fn::GetAtt": []string{id, attr}}
}

func sub(format string) map[string]any { return map[string]any{"Fn::Sub": format} }

func apiLogicalID(s *stack.Stack) string { return compute.ExportName(s.Name()) }

func tableLogicalID(c collection.Collection) string {
	return "Table" + compute.ExportName(c.Spec.Name)
}

func functionLogicalID(fn compute.Function) string { return compute.ExportName(fn.ID) }

func resourceLogicalID(c collection.Collection) string {
	return "Api" + compute.ExportName(c.Node.Path)
}

// AssetKey is the S3 key the bundled entry point is expected under.
func AssetKey(entry string) string {
	return strings.TrimSuffix(entry, path.Ext(entry)) + ".zip"
}

// CloudFormation renders s as a template. It fails with ErrDuplicateLogicalID rather than
// let one construct replace another.
func CloudFormation(s *stack.Stack, opts Options) (*Template, error) {
	opts = opts.withDefaults()
	api := apiLogicalID(s)
	t := &Template{
		AWSTemplateFormatVersion: formatVersion,
		Description:              s.Description(),
		Parameters: map[string]Parameter{
			assetsBucketParam: {Type: "String", Description: "Bucket holding the bundled handler code"},
		},
		Resources: map[string]Resource{},
		Outputs:   map[string]Output{},
	}
	var errs []error
	add := func(id string, r Resource) {
		if err := t.addResource(id, r); err != nil {
			errs = append(errs, err)
		}
	}
	output := func(id string, o Output) {
		if err := t.addOutput(id, o); err != nil {
			errs = append(errs, err)
		}
	}

	add(api, Resource{
		Type: "AWS::ApiGateway::RestApi",
		Properties: map[string]any{
			"Name":        s.DisplayName(),
			"Description": s.Description(),
		},
	})

	var methods []string
	for _, c := range s.Collections() {
		tbl := tableLogicalID(c)
		add(tbl, tableResource(c.Table))
		output(tbl+"Name", Output{Description: "Table backing /" + c.Node.Path, Value: ref(tbl)})

		res := resourceLogicalID(c)
		add(res, Resource{
			Type: "AWS::ApiGateway::Resource",
			Properties: map[string]any{
				"RestApiId": ref(api),
				"ParentId":  getAtt(api, "RootResourceId"),
				"PathPart":  c.Node.Path,
			},
		})

		for i, fn := range c.Handlers {
			fnID := functionLogicalID(fn)
			roleID := fnID + "Role"
			policyID := fnID + "Policy"

			add(roleID, Resource{
				Type: "AWS::IAM::Role",
				Properties: map[string]any{
					"AssumeRolePolicyDocument": grant.AssumeRolePolicy(),
					"ManagedPolicyArns":        []any{sub(basicExecutionRole)},
				},
			})
			doc, err := c.Grants[i].Document(getAtt(tbl, "Arn"), sub(grant.IndexARN("${"+tbl+".Arn}")))
			if err != nil {
				return nil, fmt.Errorf("render grant of %s: %w", fn.ID, err)
			}
			add(policyID, Resource{
				Type: "AWS::IAM::Policy",
				Properties: map[string]any{
					"PolicyName":     c.Grants[i].PolicyName(),
					"PolicyDocument": doc,
					"Roles":          []any{ref(roleID)},
				},
			})
			add(fnID, functionResource(fn, roleID, tbl, opts))
			sourceARN := sub(fmt.Sprintf(
				"arn:${AWS::Partition}:execute-api:${AWS::Region}:${AWS::AccountId}:${%s}/*/%s/%s",
				api, fn.Method, c.Node.Path))
			add(fnID+"InvokePermission", Resource{
				Type: "AWS::Lambda::Permission",
				Properties: map[string]any{
					"Action":       "lambda:InvokeFunction",
					"FunctionName": getAtt(fnID, "Arn"),
					"Principal":    "apigateway.amazonaws.com",
					"SourceArn":    sourceARN,
				},
			})
		}

		for _, b := range c.Node.Bindings {
			fn, _ := c.Handler(b.Method)
			fnID := functionLogicalID(fn)
			methodID := res + string(b.Method)
			methods = append(methods, methodID)
			uri := sub(fmt.Sprintf(
				"arn:${AWS::Partition}:apigateway:${AWS::Region}:lambda:path/2015-03-31/functions/${%s.Arn}/invocations",
				fnID))
			add(methodID, Resource{
				Type:      "AWS::ApiGateway::Method",
				DependsOn: []string{fnID + "Policy"},
				Properties: map[string]any{
					"RestApiId":         ref(api),
					"ResourceId":        ref(res),
					"HttpMethod":        string(b.Method),
					"AuthorizationType": "NONE",
					"Integration": map[string]any{
						"Type":                  "AWS_PROXY",
						"IntegrationHttpMethod": "POST",
						"Uri":                   uri,
					},
				},
			})
		}
	}

	deployment := api + "Deployment"
	add(deployment, Resource{
		Type:       "AWS::ApiGateway::Deployment",
		DependsOn:  methods,
		Properties: map[string]any{"RestApiId": ref(api)},
	})
	add(api+"Stage", Resource{
		Type: "AWS::ApiGateway::Stage",
		Properties: map[string]any{
			"RestApiId":    ref(api),
			"DeploymentId": ref(deployment),
			"StageName":    opts.StageName,
		},
	})
	output(api+"Endpoint", Output{
		Description: "Base URL of the gateway",
		Value:       sub(fmt.Sprintf("https://${%s}.execute-api.${AWS::Region}.${AWS::URLSuffix}/%s/", api, opts.StageName)),
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return t, nil
}

func tableResource(def table.TableDefinition) Resource {
	in := def.CreateTableInput()
	keySchema := make([]map[string]any, 0, len(in.KeySchema))
	for _, k := range in.KeySchema {
		keySchema = append(keySchema, map[string]any{
			"AttributeName": aws.ToString(k.AttributeName),
			"KeyType":       string(k.KeyType),
		})
	}
	attrs := make([]map[string]any, 0, len(in.AttributeDefinitions))
	for _, a := range in.AttributeDefinitions {
		attrs = append(attrs, map[string]any{
			"AttributeName": aws.ToString(a.AttributeName),
			"AttributeType": string(a.AttributeType),
		})
	}
	return Resource{
		Type: "AWS::DynamoDB::Table",
		Properties: map[string]any{
			"TableName":            aws.ToString(in.TableName),
			"KeySchema":            keySchema,
			"AttributeDefinitions": attrs,
			"BillingMode":          string(in.BillingMode),
			"ProvisionedThroughput": map[string]any{
				"ReadCapacityUnits":  aws.ToInt64(in.ProvisionedThroughput.ReadCapacityUnits),
				"WriteCapacityUnits": aws.ToInt64(in.ProvisionedThroughput.WriteCapacityUnits),
			},
		},
	}
}

func functionResource(fn compute.Function, roleID, tableID string, opts Options) Resource {
	// TABLE resolves to the table name through Ref at deploy time.
	vars := map[string]any{}
	for k := range fn.Config.Environment() {
		vars[k] = ref(tableID)
	}
	return Resource{
		Type:      "AWS::Lambda::Function",
		DependsOn: []string{roleID},
		Properties: map[string]any{
			"Description": fn.Description,
			"Runtime":     fn.Runtime,
			"MemorySize":  fn.MemoryMB,
			"Handler":     opts.LambdaHandler,
			"Role":        getAtt(roleID, "Arn"),
			"Code": map[string]any{
				"S3Bucket": ref(assetsBucketParam),
				"S3Key":    AssetKey(fn.EntryPoint),
			},
			"Environment": map[string]any{"Variables": vars},
		},
		Metadata: map[string]any{
			"cyfeast:entry":  fn.EntryPoint,
			"cyfeast:method": string(fn.Method),
		},
	}
}

// YAML encodes the template with two-space indentation.
func (t *Template) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Template) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return append(out, '\n'), nil
}
