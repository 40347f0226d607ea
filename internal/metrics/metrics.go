// Package metrics holds the Prometheus instruments of the wallet engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeTerminal  = "terminal"
)

// Provider contains the metrics recorded around every provider call attempt.
type Provider struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Retries  *prometheus.CounterVec
}

// NewProvider initializes and registers provider metrics with registry
// (the default registerer when nil).
func NewProvider(registry prometheus.Registerer) *Provider {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Provider{
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_provider_calls_total",
				Help: "The total number of provider call attempts by outcome",
			},
			[]string{"chain", "op", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wallet_provider_call_duration_seconds",
				Help:    "Latency of a single provider call attempt",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"chain", "op"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_provider_retries_total",
				Help: "The total number of provider call retries",
			},
			[]string{"chain", "op"},
		),
	}
}

// Observe records one attempt. A nil Provider is a no-op.
func (p *Provider) Observe(chain, op, outcome string, took time.Duration) {
	if p == nil {
		return
	}
	p.Calls.WithLabelValues(chain, op, outcome).Inc()
	p.Duration.WithLabelValues(chain, op).Observe(took.Seconds())
}

// Retry records a retry decision. A nil Provider is a no-op.
func (p *Provider) Retry(chain, op string) {
	if p == nil {
		return
	}
	p.Retries.WithLabelValues(chain, op).Inc()
}
