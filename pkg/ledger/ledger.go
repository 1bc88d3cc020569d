/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger binds order transactions to the asset service they were consumed for, so that one
// payment can not unlock a different service.
package ledger

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	logfields "github.com/trustbloc/datatoken-provider-go/internal/log"
)

var logger = logfields.New("provider-ledger")

// ErrTransferAlreadyUsed is returned when an order transaction is already bound to another asset service.
var ErrTransferAlreadyUsed = errors.New("order transaction was already used for another service")

// Record is the binding of an order transaction to an asset service.
type Record struct {
	DID       string
	ServiceID string
	TxID      string
	Consumer  string
	Datatoken string
	UseCount  int64
}

type metricsProvider interface {
	TransferReplayed()
}

type noopMetrics struct{}

func (noopMetrics) TransferReplayed() {}

// MemLedger is an in-memory ledger.
type MemLedger struct {
	mutex   sync.Mutex
	records map[string]*Record
	metrics metricsProvider
}

// Option is a ledger option.
type Option func(opts *options)

type options struct {
	metrics metricsProvider
}

// WithMetrics sets the metrics provider.
func WithMetrics(m metricsProvider) Option {
	return func(opts *options) {
		opts.metrics = m
	}
}

func resolve(opts []Option) *options {
	o := &options{metrics: noopMetrics{}}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// NewMemLedger returns an empty in-memory ledger.
func NewMemLedger(opts ...Option) *MemLedger {
	return &MemLedger{
		records: make(map[string]*Record),
		metrics: resolve(opts).metrics,
	}
}

// RecordUse binds txID to (did, serviceID) adding useCount uses.
func (l *MemLedger) RecordUse(_ context.Context, did, serviceID, txID, consumer, datatoken string,
	useCount int64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	_, err := l.record(did, serviceID, txID, consumer, datatoken, useCount)

	return err
}

// RejectIfReusedElsewhere fails with ErrTransferAlreadyUsed if txID is bound to another asset service.
func (l *MemLedger) RejectIfReusedElsewhere(_ context.Context, did, serviceID, txID, _, _ string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.check(did, serviceID, txID)
}

// Consume checks and records one use of txID for (did, serviceID) atomically.
func (l *MemLedger) Consume(_ context.Context, did, serviceID, txID, consumer, datatoken string) (*Record, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.check(did, serviceID, txID); err != nil {
		return nil, err
	}

	return l.record(did, serviceID, txID, consumer, datatoken, 1)
}

// Get returns the record of txID.
func (l *MemLedger) Get(_ context.Context, txID string) (*Record, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	r, ok := l.records[normalizeTxID(txID)]
	if !ok {
		return nil, false
	}

	c := *r

	return &c, true
}

func (l *MemLedger) check(did, serviceID, txID string) error {
	r, ok := l.records[normalizeTxID(txID)]
	if !ok || (r.DID == did && r.ServiceID == serviceID) {
		return nil
	}

	l.metrics.TransferReplayed()

	return alreadyUsed(r.DID, r.ServiceID, did, serviceID, txID)
}

func (l *MemLedger) record(did, serviceID, txID, consumer, datatoken string, useCount int64) (*Record, error) {
	if err := l.check(did, serviceID, txID); err != nil {
		return nil, err
	}

	key := normalizeTxID(txID)

	r, ok := l.records[key]
	if !ok {
		r = &Record{DID: did, ServiceID: serviceID, TxID: key, Consumer: consumer, Datatoken: datatoken}
		l.records[key] = r
	}

	r.UseCount += useCount

	logger.Debug("use recorded", logfields.WithTxID(key), logfields.WithDID(did), logfields.WithServiceID(serviceID),
		logfields.WithUseCount(r.UseCount))

	c := *r

	return &c, nil
}

func alreadyUsed(boundDID, boundServiceID, did, serviceID, txID string) error {
	return errors.Wrapf(ErrTransferAlreadyUsed, "tx %s is bound to (%s, %s), requested (%s, %s)",
		txID, boundDID, boundServiceID, did, serviceID)
}

func normalizeTxID(txID string) string {
	return strings.ToLower(strings.TrimSpace(txID))
}
