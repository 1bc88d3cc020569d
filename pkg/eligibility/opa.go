/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package eligibility

import (
	"context"
	_ "embed" // default policy
	"encoding/json"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/rego"
	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
)

const query = "data.provider.eligibility.result"

//go:embed policy.rego
var defaultPolicy string

// PolicyEngine evaluates a rego eligibility policy.
type PolicyEngine struct {
	query rego.PreparedEvalQuery
}

type policyInput struct {
	Consumer  string       `json:"consumer"`
	ServiceID string       `json:"serviceId"`
	Asset     *asset.Asset `json:"asset"`
}

type policyResult struct {
	Allow   bool     `json:"allow"`
	Reasons []string `json:"reasons"`
}

// NewPolicyEngine compiles the policy in file, or the default policy if file is empty.
func NewPolicyEngine(ctx context.Context, file string) (*PolicyEngine, error) {
	name, module := "policy.rego", defaultPolicy

	if file != "" {
		b, err := os.ReadFile(file) //nolint:gosec
		if err != nil {
			return nil, errors.Wrap(err, "read eligibility policy")
		}

		name, module = file, string(b)
	}

	prepared, err := rego.New(
		rego.Query(query),
		rego.Module(name, module),
		rego.StrictBuiltinErrors(true),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile eligibility policy")
	}

	return &PolicyEngine{query: prepared}, nil
}

// Check evaluates the policy for the consumer.
func (e *PolicyEngine) Check(ctx context.Context, a *asset.Asset, service *asset.Service, consumer string) error {
	results, err := e.query.Eval(ctx, rego.EvalInput(&policyInput{
		Consumer:  consumer,
		ServiceID: service.ID,
		Asset:     a,
	}))
	if err != nil {
		return errors.Wrap(err, "evaluate eligibility policy")
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return errors.New("empty eligibility policy result")
	}

	payload, err := json.Marshal(results[0].Expressions[0].Value)
	if err != nil {
		return errors.Wrap(err, "marshal eligibility policy result")
	}

	var result policyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return errors.Wrap(err, "decode eligibility policy result")
	}

	if !result.Allow {
		return errors.Wrap(ErrNotConsumable, strings.Join(result.Reasons, ", "))
	}

	return nil
}
