// Package metrics exposes Prometheus series for the worker process,
// following pkg/controller/machine/metrics.go's pattern of zero-value
// initialization so every series shows up before its first real sample.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsPrefix = "rolling_restart_"

// Collection bundles every metric the worker registers.
type Collection struct {
	ClustersDiscovered   prometheus.Gauge
	ClusterRestartsTotal *prometheus.CounterVec
	PodRestartsTotal     *prometheus.CounterVec
	PodRestartDuration   *prometheus.HistogramVec
	HealthGateRetries    prometheus.Counter
	RoutingResetFailures prometheus.Counter
}

// New creates the metric collection with default values set.
func New() *Collection {
	c := &Collection{
		ClustersDiscovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "clusters_discovered",
			Help: "The number of CrateDB clusters discovered on the last discovery run.",
		}),
		ClusterRestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "cluster_restarts_total",
			Help: "Total cluster restarts, labeled by outcome.",
		}, []string{"outcome"}),
		PodRestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "pod_restarts_total",
			Help: "Total pod restarts, labeled by outcome.",
		}, []string{"outcome"}),
		PodRestartDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricsPrefix + "pod_restart_duration_seconds",
			Help:    "Duration of a single pod restart.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}, []string{"strategy"}),
		HealthGateRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "health_gate_retries_total",
			Help: "Total Health-Gate retry attempts across all clusters.",
		}),
		RoutingResetFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "routing_reset_failures_total",
			Help: "Total ResetClusterRoutingAllocation failures requiring manual recovery.",
		}),
	}

	c.ClustersDiscovered.Set(0)
	c.ClusterRestartsTotal.WithLabelValues("success").Add(0)
	c.ClusterRestartsTotal.WithLabelValues("failure").Add(0)
	c.PodRestartsTotal.WithLabelValues("success").Add(0)
	c.PodRestartsTotal.WithLabelValues("failure").Add(0)
	c.HealthGateRetries.Add(0)
	c.RoutingResetFailures.Add(0)

	return c
}

// MustRegister registers every metric in the collection with r.
func (c *Collection) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		c.ClustersDiscovered,
		c.ClusterRestartsTotal,
		c.PodRestartsTotal,
		c.PodRestartDuration,
		c.HealthGateRetries,
		c.RoutingResetFailures,
	)
}

// ObservePodRestart records a completed pod restart.
func (c *Collection) ObservePodRestart(strategy string, success bool, d time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.PodRestartsTotal.WithLabelValues(outcome).Inc()
	c.PodRestartDuration.WithLabelValues(strategy).Observe(d.Seconds())
}
