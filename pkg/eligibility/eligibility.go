/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package eligibility decides whether a consumer may consume a service of an asset before any payment is
// verified.
package eligibility

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-eligibility")

// ErrNotConsumable is returned when the consumer may not consume the asset.
var ErrNotConsumable = errors.New("asset is not consumable")

// Checker checks the eligibility of a consumer.
type Checker interface {
	Check(ctx context.Context, a *asset.Asset, service *asset.Service, consumer string) error
}

// Chain runs checkers in order and returns the first failure.
type Chain []Checker

// Check runs every checker of the chain.
func (c Chain) Check(ctx context.Context, a *asset.Asset, service *asset.Service, consumer string) error {
	for _, checker := range c {
		if checker == nil {
			continue
		}

		if err := checker.Check(ctx, a, service, consumer); err != nil {
			logger.Info("asset not consumable", logfields.WithDID(a.ID), logfields.WithServiceID(service.ID),
				logfields.WithConsumer(consumer), logfields.WithError(err))

			return err
		}
	}

	return nil
}
