// Package metrics exposes prometheus counters for triage outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service counters. A fresh registry per instance keeps
// tests isolated.
type Metrics struct {
	Registry *prometheus.Registry

	WebhookTotal   *prometheus.CounterVec
	ApprovalsTotal *prometheus.CounterVec
	GuardBlocks    *prometheus.CounterVec
}

// New returns registered counters on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		WebhookTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_webhook_requests_total",
			Help: "Webhook requests by final status.",
		}, []string{"status"}),
		ApprovalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_approvals_total",
			Help: "Approval resolutions by outcome.",
		}, []string{"outcome"}),
		GuardBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_guard_blocks_total",
			Help: "Requests stopped by a guard.",
		}, []string{"guard"}),
	}
}
