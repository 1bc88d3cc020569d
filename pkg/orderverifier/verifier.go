/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package orderverifier proves that an order transaction pays for a service of an asset.
package orderverifier

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/trustbloc/datatoken-provider-go/pkg/api/asset"
	"github.com/trustbloc/datatoken-provider-go/pkg/api/order"
	"github.com/trustbloc/datatoken-provider-go/pkg/chain"
	"github.com/trustbloc/datatoken-provider-go/pkg/fee"
	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
	"github.com/trustbloc/datatoken-provider-go/pkg/metrics"
)

var logger = logfields.New("provider-orderverifier")

// Order verification failures. They are terminal: the transaction is final and re-reading it gives the
// same result.
var (
	ErrTransactionFailed   = errors.New("order transaction failed")
	ErrNoOrderEvent        = errors.New("no order event found in transaction")
	ErrAmbiguousOrderEvent = errors.New("multiple order events in the same transaction")
	ErrAssetMismatch       = errors.New("datatoken of the order does not match the requested asset")
	ErrServiceMismatch     = errors.New("service of the order does not match the requested service")
	ErrExpired             = errors.New("the order has expired")
	ErrExcessiveMarketFee  = errors.New("market fee exceeds the expected maximum")
	ErrSenderMismatch      = errors.New("sender of order transaction is not the consumer/payer")
	ErrNoMatchingTransfer  = errors.New("no transfer to the datatoken minter found")
	ErrInsufficientPayment = errors.New("transferred value does not meet the service cost")
)

type chainReader interface {
	GetReceipt(ctx context.Context, txID string) (*types.Receipt, error)
	TransactionSender(ctx context.Context, receipt *types.Receipt) (common.Address, error)
	Minter(ctx context.Context, datatoken common.Address) (common.Address, error)
}

type metricsProvider interface {
	OrderVerification(outcome string, value time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) OrderVerification(string, time.Duration) {}

// Verifier verifies order transactions.
type Verifier struct {
	chain   chainReader
	now     func() time.Time
	metrics metricsProvider
}

// Option is a verifier option.
type Option func(v *Verifier)

// WithClock sets the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(m metricsProvider) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

// New returns an order verifier.
func New(reader chainReader, opts ...Option) *Verifier {
	v := &Verifier{
		chain:   reader,
		now:     time.Now,
		metrics: noopMetrics{},
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify checks that transaction txID is a valid, unexpired and fully paid order placed by consumer for
// service of asset a. It returns the order and the largest transfer to the datatoken minter.
func (v *Verifier) Verify(ctx context.Context, consumer, txID string, a *asset.Asset,
	service *asset.Service) (*order.Order, *order.Transfer, error) {
	start := time.Now()

	o, t, err := v.verify(ctx, consumer, txID, a, service)
	if err != nil {
		v.metrics.OrderVerification(metrics.OutcomeFailure, time.Since(start))

		logger.Info("order verification failed", logfields.WithTxID(txID), logfields.WithDID(a.ID),
			logfields.WithServiceID(service.ID), logfields.WithServiceType(service.Type),
			logfields.WithDatatoken(service.DatatokenAddress), logfields.WithConsumer(consumer), logfields.WithError(err))

		return nil, nil, err
	}

	v.metrics.OrderVerification(metrics.OutcomeSuccess, time.Since(start))

	logger.Debug("order verified", logfields.WithTxID(txID), logfields.WithAmount(o.Amount),
		logfields.WithOrder(o), logfields.WithTransfer(t))

	return o, t, nil
}

func (v *Verifier) verify(ctx context.Context, consumer, txID string, a *asset.Asset,
	service *asset.Service) (*order.Order, *order.Transfer, error) {
	receipt, err := v.chain.GetReceipt(ctx, txID)
	if err != nil {
		return nil, nil, err
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, nil, errors.Wrapf(ErrTransactionFailed, "tx %s", txID)
	}

	o, err := singleOrder(receipt, txID)
	if err != nil {
		return nil, nil, err
	}

	if err := checkIdentity(o, service); err != nil {
		return nil, nil, err
	}

	if err := v.checkExpiry(o, service); err != nil {
		return nil, nil, err
	}

	target, err := targetAmount(o, service)
	if err != nil {
		return nil, nil, err
	}

	if err := v.checkSender(ctx, receipt, o, consumer); err != nil {
		return nil, nil, err
	}

	transfer, err := v.matchTransfer(ctx, receipt, o, target)
	if err != nil {
		return nil, nil, err
	}

	o.ValidUntil = validUntil(receipt, o, service)

	return o, transfer, nil
}

func singleOrder(receipt *types.Receipt, txID string) (*order.Order, error) {
	orders := chain.DecodeOrderStarted(receipt)

	switch len(orders) {
	case 0:
		return nil, errors.Wrapf(ErrNoOrderEvent, "tx %s", txID)
	case 1:
		orders[0].TxID = txID

		return orders[0], nil
	default:
		return nil, errors.Wrapf(ErrAmbiguousOrderEvent, "tx %s has %d order events", txID, len(orders))
	}
}

func checkIdentity(o *order.Order, service *asset.Service) error {
	if !common.IsHexAddress(service.DatatokenAddress) ||
		common.HexToAddress(service.DatatokenAddress) != o.Datatoken {
		return errors.Wrapf(ErrAssetMismatch, "requested datatoken %s, order datatoken %s",
			service.DatatokenAddress, o.Datatoken.Hex())
	}

	if o.ServiceIndex == nil || o.ServiceIndex.Cmp(big.NewInt(int64(service.Index))) != 0 {
		return errors.Wrapf(ErrServiceMismatch, "requested service index %d, order service index %s",
			service.Index, o.ServiceIndex)
	}

	return nil
}

func (v *Verifier) checkExpiry(o *order.Order, service *asset.Service) error {
	if service.Timeout == 0 {
		return nil
	}

	now := v.now().Unix()
	delta := now - o.Timestamp

	logger.Debug("order expiry", logfields.WithTimeout(service.Timeout), logfields.WithDelta(delta))

	if delta > service.Timeout {
		return errors.Wrapf(ErrExpired, "current timestamp %d, order timestamp %d, delta %d, service timeout %d",
			now, o.Timestamp, delta, service.Timeout)
	}

	return nil
}

// targetAmount is the amount the minter must receive: the service cost minus the provider fee and any
// third-party market fee.
func targetAmount(o *order.Order, service *asset.Service) (*big.Int, error) {
	amount, err := fee.ToBaseUnits(service.Cost)
	if err != nil {
		return nil, errors.Wrapf(err, "service %s cost", service.ID)
	}

	o.ProviderFee = fee.ProviderFee(amount)
	target := fee.TargetAmount(amount)

	if o.MarketFeeCollector != (common.Address{}) && o.MarketFee != nil && o.MarketFee.Sign() > 0 {
		if !fee.WithinMarketFeeLimit(amount, o.MarketFee) {
			return nil, errors.Wrapf(ErrExcessiveMarketFee, "market fee %s, maximum %s", o.MarketFee,
				fee.MaxMarketFee(amount))
		}

		target.Sub(target, o.MarketFee)
	}

	return target, nil
}

// checkSender requires both the transaction sender and the requesting consumer to be a party of the order.
func (v *Verifier) checkSender(ctx context.Context, receipt *types.Receipt, o *order.Order, consumer string) error {
	sender, err := v.chain.TransactionSender(ctx, receipt)
	if err != nil {
		return err
	}

	if !isParty(o, sender.Hex()) {
		return errors.Wrapf(ErrSenderMismatch, "transaction sender %s", sender.Hex())
	}

	if !isParty(o, consumer) {
		return errors.Wrapf(ErrSenderMismatch, "consumer %s", consumer)
	}

	return nil
}

func isParty(o *order.Order, address string) bool {
	return strings.EqualFold(address, o.Consumer.Hex()) || strings.EqualFold(address, o.Payer.Hex())
}

func (v *Verifier) matchTransfer(ctx context.Context, receipt *types.Receipt, o *order.Order,
	target *big.Int) (*order.Transfer, error) {
	minter, err := v.chain.Minter(ctx, o.Datatoken)
	if err != nil {
		return nil, err
	}

	byReceiver := make(map[common.Address][]*order.Transfer)
	for _, t := range chain.DecodeTransfers(receipt) {
		byReceiver[t.To] = append(byReceiver[t.To], t)
	}

	transfers, ok := byReceiver[minter]
	if !ok {
		return nil, errors.Wrapf(ErrNoMatchingTransfer, "receiver %s is not found in the transfer events", minter.Hex())
	}

	total := new(big.Int)

	var highest *order.Transfer

	for _, t := range transfers {
		total.Add(total, t.Value)

		if highest == nil || t.Value.Cmp(highest.Value) >= 0 {
			highest = t
		}
	}

	logger.Debug("order transfers", logfields.WithTotal(total), logfields.WithTargetAmount(target))

	if !fee.Covers(total, target) {
		return nil, errors.Wrapf(ErrInsufficientPayment, "service cost minus fees %s, transferred value %s",
			target, total)
	}

	return highest, nil
}

// validUntil is the deadline signed into a provider fee of the order, or the order time plus the service
// timeout. Zero means the order never expires.
func validUntil(receipt *types.Receipt, o *order.Order, service *asset.Service) int64 {
	for _, f := range chain.DecodeProviderFees(receipt) {
		if f.ValidUntil != nil && f.ValidUntil.Sign() > 0 && f.ValidUntil.IsInt64() {
			return f.ValidUntil.Int64()
		}
	}

	if service.Timeout == 0 {
		return 0
	}

	return o.Timestamp + service.Timeout
}
