// Package metrics holds the Prometheus collectors shared by the downstream
// HTTP clients (foi, itm, iqube). Each client registers itself under its
// own name label rather than getting a dedicated collector, so one failing
// downstream never blinds the dashboards for the others.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BreakerState mirrors gobreaker.State as a small integer: 0 closed,
// 1 half-open, 2 open. Kept separate from gobreaker's own type so this
// package never has to import it.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

var (
	// CircuitBreakerState reports the current state of each named client's
	// circuit breaker, sampled on every state transition.
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coordinator_client_circuit_breaker_state",
		Help: "Circuit breaker state per downstream client (0=closed, 1=half-open, 2=open).",
	}, []string{"client"})

	// CallDuration records wall-clock latency for each downstream call,
	// including time spent inside the circuit breaker.
	CallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coordinator_client_call_duration_seconds",
		Help:    "Downstream HTTP client call latency by client and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"client", "outcome"})
)

func init() {
	prometheus.MustRegister(CircuitBreakerState, CallDuration)
}

// RecordBreakerState publishes a gobreaker state transition for client.
func RecordBreakerState(client string, state BreakerState) {
	CircuitBreakerState.WithLabelValues(client).Set(float64(state))
}

// ObserveCall records the latency of one downstream call. outcome is a
// short label: the clients pass "ok", "error", or (itm only) "rejected".
func ObserveCall(client, outcome string, seconds float64) {
	CallDuration.WithLabelValues(client, outcome).Observe(seconds)
}
