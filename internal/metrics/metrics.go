// Package metrics exposes Prometheus collectors for a probe run.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JakeFAU/urlprobe/internal/probe"
)

// Recorder implements probe.Metrics on top of Prometheus collectors.
type Recorder struct {
	attemptsTotal   *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	resultsTotal    *prometheus.CounterVec
	bodyBytesTotal  *prometheus.CounterVec
	inflight        prometheus.Gauge
	attemptDuration prometheus.Histogram
}

var _ probe.Metrics = (*Recorder)(nil)

// NewRecorder registers the probe collectors with reg. A nil reg falls back
// to a private registry so repeated construction never panics.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlprobe_attempts_total",
				Help: "Total number of fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlprobe_attempt_failures_total",
				Help: "Total number of failed fetch attempts, labeled by failure kind.",
			},
			[]string{"kind"},
		),
		resultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlprobe_results_total",
				Help: "Total number of finished URLs, labeled by status.",
			},
			[]string{"status"},
		),
		bodyBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "urlprobe_body_bytes_total",
				Help: "Total number of body bytes read, labeled by site.",
			},
			[]string{"site"},
		),
		inflight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "urlprobe_inflight_requests",
				Help: "Number of fetch attempts currently in flight.",
			},
		),
		attemptDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "urlprobe_attempt_duration_seconds",
				Help:    "Histogram of fetch attempt latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
	}
}

// ObserveAttempt records one attempt and, for failures, its kind.
func (r *Recorder) ObserveAttempt(outcome probe.Outcome, kind probe.FailureKind, duration time.Duration) {
	r.attemptsTotal.WithLabelValues(outcome.String()).Inc()
	if outcome != probe.OutcomeSuccess && kind != "" {
		r.failuresTotal.WithLabelValues(string(kind)).Inc()
	}
	r.attemptDuration.Observe(duration.Seconds())
}

// ObserveResult records the final result for a URL.
func (r *Recorder) ObserveResult(rawURL string, result probe.Result) {
	status := "ok"
	if result.Failed() {
		status = "failed"
	}
	r.resultsTotal.WithLabelValues(status).Inc()
	if result.BodyLength > 0 {
		r.bodyBytesTotal.WithLabelValues(SanitizeSite(rawURL)).Add(float64(result.BodyLength))
	}
}

// IncInflight increments the in-flight gauge.
func (r *Recorder) IncInflight() { r.inflight.Inc() }

// DecInflight decrements the in-flight gauge.
func (r *Recorder) DecInflight() { r.inflight.Dec() }

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// WriteTextfile writes everything gathered by g to path in the
// node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return fmt.Errorf("metrics textfile path is required")
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
