package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routewatch_cycles_total",
			Help: "Total number of collection cycles",
		},
		[]string{"status"}, // success, inventory_error, cancelled
	)

	cycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routewatch_cycle_duration_seconds",
			Help:    "Time taken by a collection cycle, by outcome",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"}, // success, inventory_error, cancelled
	)

	deviceCollectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routewatch_device_collections_total",
			Help: "Total number of per-device collections",
		},
		[]string{"status"}, // success, unreachable, session, error
	)

	deviceCollectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routewatch_device_collection_duration_seconds",
			Help:    "Time taken to collect and enrich one device",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 90},
		},
	)

	snapshotDevices = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "routewatch_snapshot_devices",
			Help: "Number of devices in the last published snapshot",
		},
		[]string{"state"}, // collected, failed
	)

	sinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routewatch_sink_errors_total",
			Help: "Total number of failed snapshot deliveries per sink",
		},
		[]string{"sink"},
	)

	lastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "routewatch_last_success_timestamp_seconds",
			Help: "Unix time of the last published snapshot",
		},
	)
)
