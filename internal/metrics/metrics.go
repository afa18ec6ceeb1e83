// Package metrics exposes Prometheus counters for the ad and entitlement workflow
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow holds every counter the services record. A nil *Workflow is a
// valid no-op recorder.
type Workflow struct {
	renewals        *prometheus.CounterVec
	charges         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	partialWrites   *prometheus.CounterVec
	persistFailures prometheus.Counter
	visibility      *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewWorkflow registers the workflow metrics on registry
func NewWorkflow(registry *prometheus.Registry) *Workflow {
	factory := promauto.With(registry)
	return &Workflow{
		renewals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evmarket_renewals_total",
			Help: "Subscription renewals by plan tier and outcome",
		}, []string{"plan", "outcome"}),
		charges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evmarket_payment_charges_total",
			Help: "Payment charges by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evmarket_ad_transitions_total",
			Help: "Ad request status changes by target status",
		}, []string{"status"}),
		partialWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evmarket_partial_writes_total",
			Help: "Multi-write operations that stopped after the first write",
		}, []string{"operation"}),
		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "evmarket_payment_persist_failures_total",
			Help: "Confirmed payments whose entitlement or ledger write failed",
		}),
		visibility: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evmarket_visibility_checks_total",
			Help: "Ad visibility checks by page and result",
		}, []string{"page", "visible"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evmarket_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Workflow) Renewal(plan, outcome string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(plan, outcome).Inc()
}

func (m *Workflow) Charge(purpose, outcome string) {
	if m == nil {
		return
	}
	m.charges.WithLabelValues(purpose, outcome).Inc()
}

func (m *Workflow) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Workflow) PartialWrite(operation string) {
	if m == nil {
		return
	}
	m.partialWrites.WithLabelValues(operation).Inc()
}

func (m *Workflow) PaymentPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Workflow) VisibilityCheck(page string, visible bool) {
	if m == nil {
		return
	}
	m.visibility.WithLabelValues(page, strconv.FormatBool(visible)).Inc()
}

func (m *Workflow) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
