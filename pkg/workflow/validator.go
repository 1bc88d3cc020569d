/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package workflow authorizes compute workflows. Every input of a workflow must be paid for, hosted by this
// provider where required and allowed to run the requested algorithm before a stage is built.
package workflow

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	"github.com/trustbloc/datatoken-provider-go/pkg/api/order"
	api "github.com/trustbloc/datatoken-provider-go/pkg/api/workflow"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/ledger"
	"github.com/trustbloc/datatoken-provider-go/pkg/metrics"
	"github.com/trustbloc/datatoken-provider-go/pkg/policy"
)

var logger = logfields.New("provider-workflow")

// Stage resources.
const (
	DefaultNamespace = "ocean-compute"
	DefaultMaxTime   = 3600
	instances        = 1
)

type metadataStore interface {
	Resolve(ctx context.Context, did string) (*asset.Asset, error)
	URL() string
}

type eligibilityChecker interface {
	Check(ctx context.Context, a *asset.Asset, service *asset.Service, consumer string) error
}

type filesResolver interface {
	URLs(a *asset.Asset, service *asset.Service) []string
}

type orderVerifier interface {
	Verify(ctx context.Context, consumer, txID string, a *asset.Asset,
		service *asset.Service) (*order.Order, *order.Transfer, error)
}

type consumptionLedger interface {
	Consume(ctx context.Context, did, serviceID, txID, consumer, datatoken string) (*ledger.Record, error)
}

type algorithmPolicy interface {
	Check(ctx context.Context, service *asset.Service, algo policy.AlgorithmRef) error
}

type containerValidator interface {
	Validate(ctx context.Context, c *asset.Container) error
}

type metricsProvider interface {
	WorkflowValidated(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) WorkflowValidated(string) {}

// Providers are the collaborators of the validator.
type Providers struct {
	Metadata    metadataStore
	Eligibility eligibilityChecker
	Files       filesResolver
	Orders      orderVerifier
	Ledger      consumptionLedger
	Policy      algorithmPolicy
}

// Validator validates compute workflows. It holds no per-request state and may be shared.
type Validator struct {
	metadata    metadataStore
	eligibility eligibilityChecker
	files       filesResolver
	orders      orderVerifier
	ledger      consumptionLedger
	policy      algorithmPolicy
	containers  containerValidator
	metrics     metricsProvider
	namespace   string
	maxTime     int
}

// Option is a validator option.
type Option func(v *Validator)

// WithContainerValidator validates the containers of raw algorithms against an image registry.
func WithContainerValidator(c containerValidator) Option {
	return func(v *Validator) {
		v.containers = c
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(m metricsProvider) Option {
	return func(v *Validator) {
		v.metrics = m
	}
}

// WithCompute sets the namespace and maximum run time of stages.
func WithCompute(namespace string, maxTime int) Option {
	return func(v *Validator) {
		if namespace != "" {
			v.namespace = namespace
		}

		if maxTime > 0 {
			v.maxTime = maxTime
		}
	}
}

// New returns a workflow validator.
func New(p *Providers, opts ...Option) *Validator {
	v := &Validator{
		metadata:    p.Metadata,
		eligibility: p.Eligibility,
		files:       p.Files,
		orders:      p.Orders,
		ledger:      p.Ledger,
		policy:      p.Policy,
		metrics:     noopMetrics{},
		namespace:   DefaultNamespace,
		maxTime:     DefaultMaxTime,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate authorizes a compute request and returns its workflow. The first failing input aborts the
// workflow; the returned error is a *ValidationError.
func (v *Validator) Validate(ctx context.Context, req *api.ComputeRequest) (*api.Workflow, error) {
	wf, err := v.validate(ctx, req)
	if err != nil {
		v.metrics.WorkflowValidated(metrics.OutcomeFailure)

		var verr *ValidationError
		if errors.As(err, &verr) {
			logger.Info("workflow rejected", logfields.WithConsumer(req.ConsumerAddress),
				logfields.WithIndex(verr.Index), logfields.WithState(verr.From), logfields.WithError(err))
		}

		return nil, err
	}

	v.metrics.WorkflowValidated(metrics.OutcomeSuccess)

	logger.Debug("workflow validated", logfields.WithConsumer(req.ConsumerAddress),
		logfields.WithStage(wf.Stages[0]), logfields.WithValidUntil(wf.ValidUntil))

	return wf, nil
}

func (v *Validator) validate(ctx context.Context, req *api.ComputeRequest) (*api.Workflow, error) {
	state := StateCreated

	inputs, validUntil, err := v.validateInputs(ctx, req)
	if err != nil {
		return nil, failed(state, err)
	}

	algo, err := v.validateAlgorithm(ctx, &req.Algorithm, req.ConsumerAddress)
	if err != nil {
		return nil, failed(state, err)
	}

	validUntil = earliest(validUntil, algo.validUntil)
	state = state.next()

	output, err := v.validateOutput(req)
	if err != nil {
		return nil, failed(state, err)
	}

	state = state.next()

	stage := &api.Stage{
		Index: 0,
		Input: inputs,
		Compute: api.Compute{
			Instances: instances,
			Namespace: v.namespace,
			MaxTime:   v.maxTime,
		},
		Algorithm: algo.algorithm,
		Output:    output,
	}

	state = state.next()

	logger.Debug("workflow finalized", logfields.WithState(state), logfields.WithStage(stage))

	return &api.Workflow{Stages: []*api.Stage{stage}, ValidUntil: validUntil, State: state.String()}, nil
}

func (v *Validator) validateInputs(ctx context.Context, req *api.ComputeRequest) ([]*api.StageInput, int64, error) {
	items := req.Inputs()
	inputs := make([]*api.StageInput, 0, len(items))

	var validUntil int64

	for i := range items {
		validated, err := v.ValidateItem(ctx, i, &items[i], &req.Algorithm, req.ConsumerAddress)
		if err != nil {
			return nil, 0, err
		}

		inputs = append(inputs, validated.Input)
		validUntil = earliest(validUntil, validated.ValidUntil)
	}

	return inputs, validUntil, nil
}

func (v *Validator) validateOutput(req *api.ComputeRequest) (*api.StageOutput, error) {
	def, err := decodeOutput(req.Output)
	if err != nil {
		return nil, fail(noIndex, "output", err, "Output is invalid or can not be decoded.")
	}

	owner := def.Owner
	if owner == "" {
		owner = req.ConsumerAddress
	}

	return &api.StageOutput{MetadataURI: v.metadata.URL(), Owner: owner}, nil
}

// decodeOutput accepts an output object, or a JSON string holding one.
func decodeOutput(raw json.RawMessage) (*api.OutputDefinition, error) {
	def := &api.OutputDefinition{}

	if len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return def, nil
		}

		raw = json.RawMessage(s)
	}

	if err := json.Unmarshal(raw, def); err != nil {
		return nil, err
	}

	return def, nil
}

func failed(state State, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		verr.From = state
	}

	return err
}

// earliest returns the earlier of two deadlines; 0 means no deadline.
func earliest(a, b int64) int64 {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	case b < a:
		return b
	default:
		return a
	}
}
