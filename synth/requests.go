package synth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/Louis4933/CYFEAST-2023-BACK/compute"
	"github.com/Louis4933/CYFEAST-2023-BACK/grant"
	"github.com/Louis4933/CYFEAST-2023-BACK/stack"
)

// Env locates the account the requests target; table ARNs are built from it.
type Env struct {
	Partition string
	Region    string
	Account   string
}

func (e Env) Validate() error {
	if e.Region == "" || e.Account == "" {
		return fmt.Errorf("region and account are required to address tables, got region=%q account=%q", e.Region, e.Account)
	}
	return nil
}

func (e Env) partition() string {
	if e.Partition == "" {
		return "aws"
	}
	return e.Partition
}

// maxRoleName is the IAM limit on role name length.
const maxRoleName = 64

// RoleName is the execution role of fn in stack s. Roles are account-wide, so the name is
// scoped by the stack name.
func RoleName(s *stack.Stack, fn compute.Function) (string, error) {
	name := s.Name() + "-" + fn.RoleName()
	if len(name) > maxRoleName {
		return "", fmt.Errorf("role name %q exceeds %d characters", name, maxRoleName)
	}
	return name, nil
}

// RequestPlan holds the SDK inputs for the stateful part of a stack: tables and the roles
// and policies that carry the grants. Create*, Attach* and Put* run in field order; the
// Delete* and Detach* requests tear the same resources down in reverse.
type RequestPlan struct {
	CreateTables       []*dynamodb.CreateTableInput `json:"createTables"`
	CreateRoles        []*iam.CreateRoleInput       `json:"createRoles"`
	AttachRolePolicies []*iam.AttachRolePolicyInput `json:"attachRolePolicies"`
	PutRolePolicies    []*iam.PutRolePolicyInput    `json:"putRolePolicies"`
	DeleteRolePolicies []*iam.DeleteRolePolicyInput `json:"deleteRolePolicies"`
	DetachRolePolicies []*iam.DetachRolePolicyInput `json:"detachRolePolicies"`
	DeleteRoles        []*iam.DeleteRoleInput       `json:"deleteRoles"`
	DeleteTables       []*dynamodb.DeleteTableInput `json:"deleteTables"`
}

// Requests renders s as SDK requests against env.
func Requests(s *stack.Stack, env Env) (*RequestPlan, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	trust, err := json.Marshal(grant.AssumeRolePolicy())
	if err != nil {
		return nil, fmt.Errorf("marshal trust policy: %w", err)
	}

	managed := strings.ReplaceAll(basicExecutionRole, "${AWS::Partition}", env.partition())
	plan := &RequestPlan{}
	for _, c := range s.Collections() {
		plan.CreateTables = append(plan.CreateTables, c.Table.CreateTableInput())
	}
	for _, c := range s.Collections() {
		arn := c.Table.ARN(env.Partition, env.Region, env.Account)
		for i, fn := range c.Handlers {
			role, err := RoleName(s, fn)
			if err != nil {
				return nil, err
			}
			plan.CreateRoles = append(plan.CreateRoles, &iam.CreateRoleInput{
				RoleName:                 aws.String(role),
				AssumeRolePolicyDocument: aws.String(string(trust)),
				Description:              aws.String(fn.Description),
			})
			plan.AttachRolePolicies = append(plan.AttachRolePolicies, &iam.AttachRolePolicyInput{
				RoleName:  aws.String(role),
				PolicyArn: aws.String(managed),
			})
			in, err := c.Grants[i].PutRolePolicyInput(role, arn)
			if err != nil {
				return nil, fmt.Errorf("policy for %s: %w", fn.ID, err)
			}
			plan.PutRolePolicies = append(plan.PutRolePolicies, in)
		}
	}

	for i := len(plan.PutRolePolicies) - 1; i >= 0; i-- {
		p := plan.PutRolePolicies[i]
		plan.DeleteRolePolicies = append(plan.DeleteRolePolicies, &iam.DeleteRolePolicyInput{
			RoleName:   p.RoleName,
			PolicyName: p.PolicyName,
		})
	}
	for i := len(plan.AttachRolePolicies) - 1; i >= 0; i-- {
		a := plan.AttachRolePolicies[i]
		plan.DetachRolePolicies = append(plan.DetachRolePolicies, &iam.DetachRolePolicyInput{
			RoleName:  a.RoleName,
			PolicyArn: a.PolicyArn,
		})
	}
	for i := len(plan.CreateRoles) - 1; i >= 0; i-- {
		plan.DeleteRoles = append(plan.DeleteRoles, &iam.DeleteRoleInput{
			RoleName: plan.CreateRoles[i].RoleName,
		})
	}
	collections := s.Collections()
	for i := len(collections) - 1; i >= 0; i-- {
		plan.DeleteTables = append(plan.DeleteTables, collections[i].Table.DeleteTableInput())
	}
	return plan, nil
}

func (p *RequestPlan) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode request plan: %w", err)
	}
	return append(out, '\n'), nil
}
