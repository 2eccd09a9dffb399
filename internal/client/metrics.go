package client

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pvoutput"

// Metrics tracks request pipeline counters. A nil *Metrics disables collection.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Retries        *prometheus.CounterVec
	Responses      *prometheus.CounterVec
	Outcomes       *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	QuotaWait      prometheus.Counter
	QuotaRemaining prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP attempts issued, including retries.",
		}, []string{"service"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Transport retries by failure class.",
		}, []string{"service", "reason"}),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Completed HTTP exchanges by status code.",
		}, []string{"service", "code"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Classified responses by outcome.",
		}, []string{"service", "outcome"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_duration_seconds",
			Help:      "Duration of single HTTP exchanges.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		QuotaWait: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_wait_seconds_total",
			Help:      "Time spent waiting for the request quota to reset.",
		}),
		QuotaRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Last reported remaining request quota.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Retries, m.Responses, m.Outcomes, m.HTTPDuration, m.QuotaWait, m.QuotaRemaining)
	}
	return m
}

// IncRequest counts one HTTP attempt
func (m *Metrics) IncRequest(service string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(service).Inc()
}

// IncRetry counts one retry caused by reason
func (m *Metrics) IncRetry(service string, reason RetryReason) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(service, string(reason)).Inc()
}

// ObserveResponse records a completed exchange
func (m *Metrics) ObserveResponse(service string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.Responses.WithLabelValues(service, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// ObserveOutcome records the classification of a response
func (m *Metrics) ObserveOutcome(service string, kind OutcomeKind) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(service, kind.String()).Inc()
}

// ObserveQuotaWait records time spent in a quota wait
func (m *Metrics) ObserveQuotaWait(d time.Duration) {
	if m == nil {
		return
	}
	m.QuotaWait.Add(d.Seconds())
}

// SetQuotaRemaining records the last reported remaining quota
func (m *Metrics) SetQuotaRemaining(n int) {
	if m == nil {
		return
	}
	m.QuotaRemaining.Set(float64(n))
}
