/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package workflow

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	api "github.com/trustbloc/datatoken-provider-go/pkg/api/workflow"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/policy"
)

// ErrMissingField is the cause of failures due to an incomplete request.
var ErrMissingField = errors.New("missing field")

// resolved is an input item whose asset and service are known.
type resolved struct {
	index   int
	item    *api.InputItem
	asset   *asset.Asset
	service *asset.Service
}

// ValidatedItem is an authorized input item.
type ValidatedItem struct {
	Input *api.StageInput
	// ValidUntil is the deadline of the order paying for the item; 0 means no deadline.
	ValidUntil int64
}

// ValidateItem authorizes one input item of a compute request: the item must reference a consumable
// service, the algorithm must be allowed to run on it and the consumer must have paid for it.
func (v *Validator) ValidateItem(ctx context.Context, index int, item *api.InputItem, algo *api.AlgorithmInput,
	consumer string) (*ValidatedItem, error) {
	if err := checkRequired(index, item); err != nil {
		return nil, err
	}

	r, err := v.resolve(ctx, index, item)
	if err != nil {
		return nil, err
	}

	if err := v.checkEligibility(ctx, r, consumer); err != nil {
		return nil, err
	}

	if err := checkServiceType(r); err != nil {
		return nil, err
	}

	urls, err := v.localFiles(r)
	if err != nil {
		return nil, err
	}

	if r.service.IsCompute() {
		if err := v.checkAlgorithm(ctx, r, algo); err != nil {
			return nil, err
		}
	}

	validUntil, err := v.validateUsage(ctx, r, consumer)
	if err != nil {
		return nil, err
	}

	return &ValidatedItem{Input: buildInput(r, urls), ValidUntil: validUntil}, nil
}

func checkRequired(index int, item *api.InputItem) error {
	if item.DocumentID == "" {
		return fail(index, "documentId", ErrMissingField, "No documentId in input item.")
	}

	if item.TransferTxID == "" {
		return fail(index, "transferTxId", ErrMissingField, "No transferTxId in input item.")
	}

	if item.ServiceID == "" {
		return fail(index, "serviceId", ErrMissingField, "No serviceId in input item.")
	}

	return nil
}

func (v *Validator) resolve(ctx context.Context, index int, item *api.InputItem) (*resolved, error) {
	a, err := v.metadata.Resolve(ctx, item.DocumentID)
	if err != nil {
		return nil, fail(index, "documentId", err, "Asset for did %s not found.", item.DocumentID)
	}

	service := a.ServiceByID(string(item.ServiceID))
	if service == nil {
		return nil, fail(index, "serviceId", nil, "Service id %s not found.", item.ServiceID)
	}

	return &resolved{index: index, item: item, asset: a, service: service}, nil
}

func (v *Validator) checkEligibility(ctx context.Context, r *resolved, consumer string) error {
	if err := v.eligibility.Check(ctx, r.asset, r.service, consumer); err != nil {
		return fail(r.index, "documentId", err, "Asset %s is not consumable: %s", r.asset.ID, err)
	}

	return nil
}

func checkServiceType(r *resolved) error {
	if r.service.Type != asset.ServiceTypeAccess && r.service.Type != asset.ServiceTypeCompute {
		return fail(r.index, "serviceId", nil, "Services in input can only be access or compute.")
	}

	if r.index == 0 && !r.service.IsCompute() {
		return fail(r.index, "serviceId", nil, "Service for main asset must be compute.")
	}

	return nil
}

// localFiles returns the URLs of the service files if this provider hosts them. Compute services must be
// hosted here.
func (v *Validator) localFiles(r *resolved) ([]string, error) {
	urls := v.files.URLs(r.asset, r.service)

	if len(urls) == 0 && r.service.IsCompute() {
		return nil, fail(r.index, "serviceId", nil,
			"Services in input with compute type must be in the same provider you are calling.")
	}

	return urls, nil
}

func (v *Validator) checkAlgorithm(ctx context.Context, r *resolved, algo *api.AlgorithmInput) error {
	if algo == nil || (algo.DocumentID == "" && algo.Meta == nil) {
		return fail(r.index, "algorithm", ErrMissingField,
			"both meta and documentId are missing from algorithm input, at least one of these is required.")
	}

	ref := policy.AlgorithmRef{DID: algo.DocumentID, ServiceID: string(algo.ServiceID)}

	if err := v.policy.Check(ctx, r.service, ref); err != nil {
		if errors.Is(err, policy.ErrRawAlgorithmForbidden) {
			return fail(r.index, "algorithm", err, "cannot run raw algorithm on this did %s.", r.asset.ID)
		}

		return fail(r.index, "algorithm", err, "%s", err)
	}

	return nil
}

// validateUsage verifies the order paying for the item and binds it to the item's service.
func (v *Validator) validateUsage(ctx context.Context, r *resolved, consumer string) (int64, error) {
	o, _, err := v.orders.Verify(ctx, consumer, r.item.TransferTxID, r.asset, r.service)
	if err == nil {
		_, err = v.ledger.Consume(ctx, r.asset.ID, r.service.ID, r.item.TransferTxID, consumer,
			r.service.DatatokenAddress)
	}

	if err != nil {
		return 0, fail(r.index, "transferTxId", err, "Order for serviceId %s is not valid. %s", r.service.ID, err)
	}

	return o.ValidUntil, nil
}

func buildInput(r *resolved, urls []string) *api.StageInput {
	input := &api.StageInput{Index: r.index, ID: r.asset.ID}

	if len(urls) > 0 {
		for _, u := range urls {
			input.URL = append(input.URL, appendUserData(u, r.item.UserData))
		}

		return input
	}

	input.Remote = &api.Remote{
		TxID:      r.item.TransferTxID,
		ServiceID: r.service.ID,
		UserData:  r.item.UserData,
	}

	return input
}

// appendUserData adds userdata to rawURL as the JSON encoded "userdata" query parameter.
func appendUserData(rawURL string, userData map[string]interface{}) string {
	if len(userData) == 0 {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		logger.Warn("failed to append userdata", logfields.WithURIString(rawURL), logfields.WithError(err))

		return rawURL
	}

	payload, err := json.Marshal(userData)
	if err != nil {
		logger.Warn("failed to marshal userdata", logfields.WithError(err))

		return rawURL
	}

	q := u.Query()
	q.Set("userdata", string(payload))
	u.RawQuery = q.Encode()

	return u.String()
}

// AuthorizeDownload authorizes the download of the files of an access service hosted by this provider.
func (v *Validator) AuthorizeDownload(ctx context.Context, item *api.InputItem,
	consumer string) (*ValidatedItem, error) {
	if err := checkRequired(0, item); err != nil {
		return nil, err
	}

	r, err := v.resolve(ctx, 0, item)
	if err != nil {
		return nil, err
	}

	if err := v.checkEligibility(ctx, r, consumer); err != nil {
		return nil, err
	}

	if r.service.Type != asset.ServiceTypeAccess {
		return nil, fail(0, "serviceId", nil, "Service %s is not an access service.", r.service.ID)
	}

	urls := v.files.URLs(r.asset, r.service)
	if len(urls) == 0 {
		return nil, fail(0, "serviceId", nil, "Files of service %s are not served by this provider.", r.service.ID)
	}

	validUntil, err := v.validateUsage(ctx, r, consumer)
	if err != nil {
		return nil, err
	}

	return &ValidatedItem{Input: buildInput(r, urls), ValidUntil: validUntil}, nil
}
