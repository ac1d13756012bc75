// Package jobmetrics instruments the asynq handlers run by the worker.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the worker collectors.
type Metrics struct {
	runs         *prometheus.CounterVec
	inFlight     *prometheus.GaugeVec
	duration     *prometheus.HistogramVec
	certificates *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer. A nil registerer shares a
// single instance registered on the Prometheus default registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker measures one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts measuring a run of job.
func (m *Metrics) Track(job string) *Tracker {
	t := &Tracker{metrics: m, job: job, start: time.Now()}
	if m != nil && job != "" {
		m.inFlight.WithLabelValues(job).Inc()
	}
	return t
}

// End records the outcome of the run and returns err unchanged, so handlers
// can `return tracker.End(err)`.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.inFlight.WithLabelValues(t.job).Dec()
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddCertificate counts a rendered certificate by sacrament type and diocese.
func (m *Metrics) AddCertificate(sacramentType, dioceseID string) {
	if m == nil {
		return
	}
	if dioceseID == "" {
		dioceseID = "unknown"
	}
	m.certificates.WithLabelValues(sacramentType, dioceseID).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecclesia_jobs_total",
			Help: "Job runs by task type and status.",
		}, []string{"job", "status"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ecclesia_jobs_in_flight",
			Help: "Job runs currently executing by task type.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecclesia_job_duration_seconds",
			Help:    "Job run duration by task type.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		certificates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecclesia_certificates_rendered_total",
			Help: "Certificates rendered by sacrament type and diocese.",
		}, []string{"type", "diocese"}),
	}
	registerer.MustRegister(m.runs, m.inFlight, m.duration, m.certificates)
	return m
}
