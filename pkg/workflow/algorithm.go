/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	api "github.com/trustbloc/datatoken-provider-go/pkg/api/workflow"
)

// ErrInvalidAlgorithm is the cause of failures due to a malformed algorithm.
var ErrInvalidAlgorithm = errors.New("invalid algorithm")

// validatedAlgorithm is the stage algorithm together with the deadline of the order paying for it.
type validatedAlgorithm struct {
	algorithm  *api.StageAlgorithm
	validUntil int64
}

// validateAlgorithm authorizes the algorithm of a compute request and formats it for the stage.
func (v *Validator) validateAlgorithm(ctx context.Context, algo *api.AlgorithmInput,
	consumer string) (*validatedAlgorithm, error) {
	var (
		result *validatedAlgorithm
		err    error
	)

	if algo.IsRaw() {
		result, err = v.rawAlgorithm(ctx, algo)
	} else {
		result, err = v.publishedAlgorithm(ctx, algo, consumer)
	}

	if err != nil {
		return nil, err
	}

	if err := checkFormatted(result.algorithm); err != nil {
		return nil, err
	}

	return result, nil
}

func (v *Validator) rawAlgorithm(ctx context.Context, algo *api.AlgorithmInput) (*validatedAlgorithm, error) {
	if algo.Meta == nil {
		return nil, fail(noIndex, "algorithm", ErrMissingField,
			"both meta and documentId are missing from algorithm input, at least one of these is required.")
	}

	container, err := algo.Meta.ParseContainer()
	if err != nil {
		return nil, fail(noIndex, "algorithm", ErrInvalidAlgorithm, "%s", err)
	}

	if v.containers != nil {
		if err := v.containers.Validate(ctx, container); err != nil {
			return nil, fail(noIndex, "algorithm", err, "algorithm `container` is not valid: %s", err)
		}
	}

	return &validatedAlgorithm{
		algorithm: &api.StageAlgorithm{
			URL:       algo.Meta.URL,
			RawCode:   algo.Meta.RawCode,
			Container: container,
			UserData:  algo.UserData,
		},
	}, nil
}

func (v *Validator) publishedAlgorithm(ctx context.Context, algo *api.AlgorithmInput,
	consumer string) (*validatedAlgorithm, error) {
	a, err := v.metadata.Resolve(ctx, algo.DocumentID)
	if err != nil {
		return nil, fail(noIndex, "algorithm", err, "Asset for did %s not found.", algo.DocumentID)
	}

	if !a.IsAlgorithm() {
		return nil, fail(noIndex, "algorithm", ErrInvalidAlgorithm, "DID %s is not a valid algorithm", a.ID)
	}

	if algo.ServiceID == "" {
		return nil, fail(noIndex, "algorithm", ErrMissingField, "No serviceId in algorithm input item.")
	}

	service := a.ServiceByID(string(algo.ServiceID))
	if service == nil {
		return nil, fail(noIndex, "algorithm", nil, "Service id %s not found.", algo.ServiceID)
	}

	urls := v.files.URLs(a, service)
	if len(urls) == 0 && service.IsCompute() {
		return nil, fail(noIndex, "algorithm", nil,
			"Services in algorithm with compute type must be in the same provider you are calling.")
	}

	o, _, err := v.orders.Verify(ctx, consumer, algo.TransferTxID, a, service)
	if err == nil {
		_, err = v.ledger.Consume(ctx, a.ID, service.ID, algo.TransferTxID, consumer, service.DatatokenAddress)
	}

	if err != nil {
		return nil, fail(noIndex, "algorithm", err, "Algorithm is already in use or can not be found on chain.")
	}

	return &validatedAlgorithm{
		algorithm:  buildPublishedAlgorithm(a, service, algo, urls),
		validUntil: o.ValidUntil,
	}, nil
}

func buildPublishedAlgorithm(a *asset.Asset, service *asset.Service, algo *api.AlgorithmInput,
	urls []string) *api.StageAlgorithm {
	sa := &api.StageAlgorithm{ID: a.ID, UserData: algo.UserData}

	if len(urls) > 0 {
		sa.URL = appendUserData(urls[0], algo.UserData)
	} else {
		sa.Remote = &api.Remote{TxID: algo.TransferTxID, ServiceID: service.ID, UserData: algo.UserData}
	}

	if a.Metadata.Algorithm != nil {
		// A malformed container leaves the section empty and fails the format check below.
		if c, err := a.Metadata.Algorithm.ParseContainer(); err == nil {
			sa.Container = c
		}
	}

	return sa
}

// checkFormatted checks that the stage algorithm can be run.
func checkFormatted(sa *api.StageAlgorithm) error {
	if sa.ID != "" && sa.URL == "" && sa.Remote == nil {
		return fail(noIndex, "algorithm", ErrInvalidAlgorithm, "cannot get url for the algorithmDid %s", sa.ID)
	}

	if sa.URL == "" && sa.RawCode == "" && sa.Remote == nil {
		return fail(noIndex, "algorithm", ErrInvalidAlgorithm,
			"algorithmMeta must define one of `url` or `rawcode` or `remote`, but all seem missing.")
	}

	c := sa.Container
	if c == nil || c.Entrypoint == "" || c.Image == "" || c.Tag == "" {
		return fail(noIndex, "algorithm", ErrInvalidAlgorithm,
			"algorithm `container` must specify values for all of entrypoint, image and tag.")
	}

	return nil
}
