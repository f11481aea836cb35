package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Edits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensoredit_edits_total",
		Help: "Total number of configuration edits applied, labelled by operation.",
	}, []string{"op"})

	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensoredit_saves_total",
		Help: "Total number of save attempts, labelled by outcome.",
	}, []string{"status"})

	SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensoredit_save_duration_ms",
		Help:    "Save latency in milliseconds, retries included.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 15000},
	})

	ValidationErrors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sensoredit_validation_errors",
		Help: "Current number of validation errors, labelled by sensor.",
	}, []string{"sensor"})

	NotificationsCollected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensoredit_notifications_collected_total",
		Help: "Total number of unreferenced notification slots removed on save.",
	})

	HostRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensoredit_host_retries_total",
		Help: "Total number of retried host calls, labelled by operation.",
	}, []string{"op"})
)
