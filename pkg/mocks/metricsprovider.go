/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"sync"
	"time"
)

// MetricsProvider implements a mock metrics provider that counts events.
type MetricsProvider struct {
	mutex    sync.Mutex
	counters map[string]int
}

// NewMetricsProvider creates a mock metrics provider.
func NewMetricsProvider() *MetricsProvider {
	return &MetricsProvider{counters: make(map[string]int)}
}

// OrderVerification records an order verification.
func (m *MetricsProvider) OrderVerification(outcome string, _ time.Duration) {
	m.inc("order_" + outcome)
}

// ReceiptRetried records a receipt retry.
func (m *MetricsProvider) ReceiptRetried() {
	m.inc("receipt_retry")
}

// ChainCallTime records the duration of an RPC call.
func (m *MetricsProvider) ChainCallTime(method string, _ time.Duration) {
	m.inc("chain_" + method)
}

// TransferReplayed records a replayed order transaction.
func (m *MetricsProvider) TransferReplayed() {
	m.inc("replay")
}

// SignatureRejected records a rejected signature.
func (m *MetricsProvider) SignatureRejected(reason string) {
	m.inc("signature_" + reason)
}

// WorkflowValidated records a workflow validation.
func (m *MetricsProvider) WorkflowValidated(outcome string) {
	m.inc("workflow_" + outcome)
}

// Count returns the number of recorded events with the given name, e.g. "workflow_success".
func (m *MetricsProvider) Count(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return m.counters[name]
}

func (m *MetricsProvider) inc(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.counters == nil {
		m.counters = make(map[string]int)
	}

	m.counters[name]++
}
