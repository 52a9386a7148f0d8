// Package metrics provides Prometheus metrics for the Kanpai service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReservationsTotal tracks reservation writes by outcome
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanpai",
			Subsystem: "reservations",
			Name:      "total",
			Help:      "Total number of reservation create attempts by outcome",
		},
		[]string{"outcome"},
	)

	// AdmissionRejectionsTotal tracks admission rejections by reason code
	AdmissionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanpai",
			Subsystem: "admission",
			Name:      "rejections_total",
			Help:      "Total number of admission rejections by reason",
		},
		[]string{"reason"},
	)

	// QuotaRejectionsTotal tracks quota gate rejections by service
	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanpai",
			Subsystem: "quota",
			Name:      "rejections_total",
			Help:      "Total number of quota gate rejections by service",
		},
		[]string{"service"},
	)

	// CollaboratorCallsTotal tracks external collaborator calls
	CollaboratorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanpai",
			Subsystem: "collaborator",
			Name:      "calls_total",
			Help:      "Total number of external collaborator calls by target and status",
		},
		[]string{"target", "status"},
	)

	// CollaboratorCallDuration tracks external collaborator call duration
	CollaboratorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kanpai",
			Subsystem: "collaborator",
			Name:      "call_duration_seconds",
			Help:      "Duration of external collaborator calls in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"target"},
	)

	// ReportSweepStoresTotal tracks per-store sweep outcomes
	ReportSweepStoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanpai",
			Subsystem: "report_sweep",
			Name:      "stores_total",
			Help:      "Total number of stores processed by the report sweep by outcome",
		},
		[]string{"outcome"},
	)

	// ReportSweepDuration tracks full sweep duration
	ReportSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kanpai",
			Subsystem: "report_sweep",
			Name:      "duration_seconds",
			Help:      "Duration of full report sweeps in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)
)
