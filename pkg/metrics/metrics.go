/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics exposes provider metrics in prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "provider"

	// OutcomeSuccess labels successful verifications.
	OutcomeSuccess = "success"
	// OutcomeFailure labels failed verifications.
	OutcomeFailure = "failure"
)

// Provider records provider metrics into its own registry.
type Provider struct {
	registry *prometheus.Registry

	orderVerifications *prometheus.CounterVec
	orderVerifyTime    prometheus.Histogram
	receiptRetries     prometheus.Counter
	chainCallTime      *prometheus.HistogramVec
	transferReplays    prometheus.Counter
	signatureFailures  *prometheus.CounterVec
	workflows          *prometheus.CounterVec
}

// New creates a metrics provider.
func New() *Provider {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Provider{
		registry: reg,
		orderVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "verifications_total",
			Help:      "Number of order verifications by outcome.",
		}, []string{"outcome"}),
		orderVerifyTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "verification_duration_seconds",
			Help:      "Time to verify an order transaction.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		receiptRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "receipt_retries_total",
			Help:      "Number of receipt lookups retried after a closed connection.",
		}),
		chainCallTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "call_duration_seconds",
			Help:      "Duration of RPC calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		transferReplays: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "replays_total",
			Help:      "Number of order transactions rejected because they were used elsewhere.",
		}),
		signatureFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signature",
			Name:      "rejections_total",
			Help:      "Number of rejected request signatures by reason.",
		}, []string{"reason"}),
		workflows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "validations_total",
			Help:      "Number of compute workflow validations by outcome.",
		}, []string{"outcome"}),
	}
}

// OrderVerification records the outcome and duration of an order verification.
func (p *Provider) OrderVerification(outcome string, value time.Duration) {
	p.orderVerifications.WithLabelValues(outcome).Inc()
	p.orderVerifyTime.Observe(value.Seconds())
}

// ReceiptRetried records a retried receipt lookup.
func (p *Provider) ReceiptRetried() {
	p.receiptRetries.Inc()
}

// ChainCallTime records the duration of an RPC call.
func (p *Provider) ChainCallTime(method string, value time.Duration) {
	p.chainCallTime.WithLabelValues(method).Observe(value.Seconds())
}

// TransferReplayed records a rejected replay.
func (p *Provider) TransferReplayed() {
	p.transferReplays.Inc()
}

// SignatureRejected records a rejected signature.
func (p *Provider) SignatureRejected(reason string) {
	p.signatureFailures.WithLabelValues(reason).Inc()
}

// WorkflowValidated records the outcome of a workflow validation.
func (p *Provider) WorkflowValidated(outcome string) {
	p.workflows.WithLabelValues(outcome).Inc()
}

// Registry returns the registry holding the provider metrics.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the metrics.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
