package observability

import (
	"time"

	"public-feed/errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "public_feed"

// Metrics holds the Prometheus collectors of the feed.
// A nil *Metrics is valid and records nothing, tests rely on it.
type Metrics struct {
	submissions     *prometheus.CounterVec
	persistAttempts prometheus.Counter
	compression     prometheus.Histogram
	subscribers     prometheus.Gauge
	feedEvents      *prometheus.CounterVec
	swept           prometheus.Counter
	mediaOrphans    prometheus.Counter
}

// NewMetrics registers the collectors with registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "submissions_total",
			Help:      "Submissions by outcome",
		}, []string{"outcome"}),
		persistAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "persist_attempts_total",
			Help:      "Message store writes attempted, retries included",
		}),
		compression: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "compression_seconds",
			Help:      "Time spent compressing one image",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Live feed subscriptions",
		}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Window changes seen by the synchronizer",
		}, []string{"state"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "removed_messages_total",
			Help:      "Messages removed by retention sweeps",
		}),
		mediaOrphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "media_delete_failures_total",
			Help:      "Media objects left behind by a sweep",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.submissions, m.persistAttempts, m.compression, m.subscribers, m.feedEvents, m.swept, m.mediaOrphans,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Submission counts one submission, labelled with its error kind or "OK".
func (m *Metrics) Submission(err error) {
	if m == nil {
		return
	}
	outcome := "OK"
	if err != nil {
		outcome = errors.Kind(err)
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PersistAttempt() {
	if m == nil {
		return
	}
	m.persistAttempts.Inc()
}

func (m *Metrics) Compressed(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.compression.Observe(elapsed.Seconds())
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

func (m *Metrics) FeedEvent(degraded bool) {
	if m == nil {
		return
	}
	state := "ok"
	if degraded {
		state = "degraded"
	}
	m.feedEvents.WithLabelValues(state).Inc()
}

func (m *Metrics) Swept(removed int, orphans int) {
	if m == nil {
		return
	}
	m.swept.Add(float64(removed))
	m.mediaOrphans.Add(float64(orphans))
}
