package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles history build metrics.
type Metrics struct {
	JobsTotal   *prometheus.CounterVec
	JobDuration prometheus.Histogram
	TableUnits  prometheus.Gauge
	TableDays   prometheus.Gauge
	FailedUnits prometheus.Gauge
	FeedEvents  prometheus.Gauge
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paygo_history_jobs_total",
				Help: "Total history build jobs by status",
			},
			[]string{"status"},
		),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "paygo_history_job_duration_seconds",
			Help:    "History build job duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		TableUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paygo_history_table_units",
			Help: "Units in the last stored history table",
		}),
		TableDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paygo_history_table_days",
			Help: "Day columns in the last stored history table",
		}),
		FailedUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paygo_history_failed_units",
			Help: "Units skipped by the last build",
		}),
		FeedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "paygo_history_feed_events",
			Help: "Transaction events consumed by the last build",
		}),
	}
	prometheus.MustRegister(
		m.JobsTotal,
		m.JobDuration,
		m.TableUnits,
		m.TableDays,
		m.FailedUnits,
		m.FeedEvents,
	)
	return m
}
