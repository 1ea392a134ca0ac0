package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lecturegen"

// Metrics tracks pipeline runs. A nil *Metrics is valid and records nothing.
type Metrics struct {
	stageDuration       *prometheus.HistogramVec
	jobsTotal           *prometheus.CounterVec
	voiceoverFailures   prometheus.Counter
	inProgress          prometheus.Gauge
	staleJobsResetTotal prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage.",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"stage", "outcome"},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Finished pipeline runs by outcome.",
			},
			[]string{"outcome"},
		),
		voiceoverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voiceover_failures_total",
			Help:      "Slides whose narration could not be synthesized.",
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_progress",
			Help:      "Pipeline runs currently executing.",
		}),
		staleJobsResetTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_jobs_reset_total",
			Help:      "Jobs reset to idle by the sweeper.",
		}),
	}

	reg.MustRegister(
		m.stageDuration,
		m.jobsTotal,
		m.voiceoverFailures,
		m.inProgress,
		m.staleJobsResetTotal,
	)

	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ObserveStage(stage string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome(err)).Observe(time.Since(started).Seconds())
}

// JobStarted marks a run as executing and returns the func that closes it.
func (m *Metrics) JobStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	m.inProgress.Inc()
	return func(outcome string) {
		m.inProgress.Dec()
		m.jobsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) VoiceoverFailed() {
	if m == nil {
		return
	}
	m.voiceoverFailures.Inc()
}

func (m *Metrics) StaleJobsReset(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.staleJobsResetTotal.Add(float64(n))
}
