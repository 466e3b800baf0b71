package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_import_jobs_total",
		Help: "Import jobs by entity kind and terminal result.",
	}, []string{"entity", "result"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_import_rows_total",
		Help: "Processed rows by entity kind and disposition.",
	}, []string{"entity", "disposition"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_import_job_duration_seconds",
		Help:    "Wall time of one import job run.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"entity"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crm_import_queue_depth",
		Help: "Import tasks waiting to be claimed.",
	})
)
