package monitor

import (
	"time"

	"github.com/gorcz/dyno/host"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Monitor backed by github.com/prometheus/client_golang. It
// registers its collectors against the given registerer, defaulting to
// prometheus.DefaultRegisterer when reg is nil.
type Prometheus struct {
	opSuccess  *prometheus.CounterVec
	opFailure  *prometheus.CounterVec
	opLatency  *prometheus.HistogramVec
	failovers  *prometheus.CounterVec
	hostEvents *prometheus.CounterVec
	hostCount  prometheus.Gauge
}

// NewPrometheus builds and registers a Prometheus monitor under namespace.
// Registration errors (e.g. a collector already registered against reg) are
// returned rather than panicking, since callers may legitimately build more
// than one Pool against a shared registry in tests.
func NewPrometheus(namespace string, reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		opSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_success_total",
			Help:      "Operations that completed without error, by host.",
		}, []string{"host"}),
		opFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_failure_total",
			Help:      "Operations that returned an error, by host. Host is \"no_host\" when the failure occurred before selection.",
		}, []string{"host"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of successful operations, measured from the first attempt, by host.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failovers_total",
			Help:      "Executions that moved from one host to another after a retriable failure.",
		}, []string{"from", "to"}),
		hostEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_events_total",
			Help:      "Host admission/removal events, by host and event type.",
		}, []string{"host", "event"}),
		hostCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_host_count",
			Help:      "Current number of hosts on the selection ring.",
		}),
	}

	collectors := []prometheus.Collector{p.opSuccess, p.opFailure, p.opLatency, p.failovers, p.hostEvents, p.hostCount}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

var _ Monitor = (*Prometheus)(nil)

func (p *Prometheus) IncOperationSuccess(h host.Host, latency time.Duration) {
	p.opSuccess.WithLabelValues(h.String()).Inc()
	p.opLatency.WithLabelValues(h.String()).Observe(latency.Seconds())
}

func (p *Prometheus) IncOperationFailure(h *host.Host, _ error) {
	p.opFailure.WithLabelValues(hostLabel(h)).Inc()
}

// hostLabel renders h for a Prometheus label, reporting "no_host" when the
// failure happened before any host was selected.
func hostLabel(h *host.Host) string {
	if h == nil {
		return "no_host"
	}
	return h.String()
}

func (p *Prometheus) IncFailover(from, to host.Host) {
	p.failovers.WithLabelValues(from.String(), to.String()).Inc()
}

func (p *Prometheus) HostAdded(h host.Host) {
	p.hostEvents.WithLabelValues(h.String(), "added").Inc()
}

func (p *Prometheus) HostRemoved(h host.Host) {
	p.hostEvents.WithLabelValues(h.String(), "removed").Inc()
}

func (p *Prometheus) SetHostCount(n int) {
	p.hostCount.Set(float64(n))
}
