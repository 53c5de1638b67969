package scan

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the scans counter
const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
	outcomeFailed   = "failed"
)

// Metrics records scan outcomes. A nil *Metrics records nothing.
type Metrics struct {
	scans    *prometheus.CounterVec
	stale    prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics creates the scan metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sheet_scanner",
			Name:      "scans_total",
			Help:      "Completed scan sessions by outcome.",
		}, []string{"outcome"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sheet_scanner",
			Name:      "stale_events_total",
			Help:      "Recognition events dropped because their session was replaced or reset.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sheet_scanner",
			Name:      "recognition_duration_seconds",
			Help:      "Time spent in the OCR engine per recognition.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
	}

	for _, c := range []prometheus.Collector{m.scans, m.stale, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeOutcome(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeStale() {
	if m == nil {
		return
	}
	m.stale.Inc()
}
