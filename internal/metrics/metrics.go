// ABOUTME: Prometheus collectors for clock synchronization and the time server
// ABOUTME: All methods are nil-safe so metrics stay optional
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timeview"

// Collectors groups the client-side sync metrics
type Collectors struct {
	offset   prometheus.Gauge
	filtered prometheus.Gauge
	samples  prometheus.Gauge
	rtt      prometheus.Histogram
	resyncs  prometheus.Counter
	failures prometheus.Counter
}

// New registers the sync collectors with reg
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		offset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "offset_ms",
			Help:      "Smoothed offset applied to the local clock, in milliseconds.",
		}),
		filtered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filtered_offset_ms",
			Help:      "Mean offset of the lowest-RTT samples, in milliseconds.",
		}),
		samples: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Number of samples held in the sync window.",
		}),
		rtt: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_rtt_ms",
			Help:      "Round-trip time of successful time probes, in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		resyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Number of successful resyncs.",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Number of failed or discarded time probes.",
		}),
	}
}

// ObserveSync records one applied sample
func (c *Collectors) ObserveSync(offset, filtered, rtt float64, samples int) {
	if c == nil {
		return
	}
	c.offset.Set(offset)
	c.filtered.Set(filtered)
	c.samples.Set(float64(samples))
	c.rtt.Observe(rtt)
	c.resyncs.Inc()
}

// ObserveFailure records a failed probe
func (c *Collectors) ObserveFailure() {
	if c == nil {
		return
	}
	c.failures.Inc()
}

// ServerCollectors counts requests answered by the time server
type ServerCollectors struct {
	requests *prometheus.CounterVec
}

// NewServer registers the server collectors with reg
func NewServer(reg prometheus.Registerer) *ServerCollectors {
	return &ServerCollectors{
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "time_requests_total",
			Help:      "Time requests answered, by transport.",
		}, []string{"transport"}),
	}
}

// ObserveRequest counts one answered time request
func (c *ServerCollectors) ObserveRequest(transport string) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(transport).Inc()
}
