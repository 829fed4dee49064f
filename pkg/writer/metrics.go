package writer

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "tickstats"

// Drop reasons
const (
	dropFull    = "buffer_full"
	dropEmpty   = "empty"
	dropSink    = "sink_error"
	dropStopped = "stopped"
)

type writerMetrics struct {
	submitted     prometheus.Counter
	dropped       *prometheus.CounterVec
	flushed       prometheus.Counter
	collapsed     prometheus.Counter
	blocked       prometheus.Counter
	flushErrors   prometheus.Counter
	flushDuration prometheus.Histogram
	buffered      prometheus.GaugeFunc
}

func newWriterMetrics(buffer *Buffer) *writerMetrics {
	return &writerMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "submitted_total",
			Help:      "Measurements accepted into the write buffer.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "dropped_total",
			Help:      "Measurements discarded before reaching the sink.",
		}, []string{"reason"}),
		flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "flushed_total",
			Help:      "Measurements written to the sink.",
		}),
		collapsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "collapsed_total",
			Help:      "Measurements superseded by a newer sample of the same series within one flush.",
		}),
		blocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "blocked_total",
			Help:      "Series checks answered as blocked.",
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "flush_errors_total",
			Help:      "Flushes whose batch could not be written.",
		}),
		flushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "flush_duration_seconds",
			Help:      "Time spent writing one batch, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		buffered: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "writer",
			Name:      "buffered",
			Help:      "Measurements waiting for the next flush.",
		}, func() float64 { return float64(buffer.Len()) }),
	}
}

func (m *writerMetrics) register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{
		m.submitted, m.dropped, m.flushed, m.collapsed,
		m.blocked, m.flushErrors, m.flushDuration, m.buffered,
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register writer metrics: %w", err)
		}
	}
	return nil
}
