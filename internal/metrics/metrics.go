package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "gsrwatch_"

// Load outcomes.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultStale   = "stale"
	ResultBusy    = "busy"
)

var (
	registerOnce sync.Once

	loadsTotal       *prometheus.CounterVec
	loadLatency      *prometheus.HistogramVec
	latestValue      *prometheus.GaugeVec
	historyPoints    prometheus.Gauge
	droppedRows      prometheus.Counter
	alertsFired      *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	lastSuccess      prometheus.Gauge
)

// Init registers collectors with the default registry. Safe to call repeatedly.
func Init() {
	registerOnce.Do(func() {
		loadsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "loads_total",
				Help: "Total data loads by result",
			},
			[]string{"result"},
		)
		loadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "load_latency_seconds",
				Help:    "Data load latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		latestValue = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "latest_value",
				Help: "Latest observed value per metric",
			},
			[]string{"metric"},
		)
		historyPoints = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "history_points",
			Help: "Observations held after the last successful load",
		})
		droppedRows = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "dropped_rows_total",
			Help: "History rows dropped during normalization",
		})
		alertsFired = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_fired_total",
				Help: "Alert rule firings by metric and direction",
			},
			[]string{"metric", "direction"},
		)
		alertsSuppressed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_suppressed_total",
				Help: "Alert candidates suppressed by the cooldown window",
			},
			[]string{"metric", "direction"},
		)
		lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful load",
		})

		prometheus.MustRegister(
			loadsTotal,
			loadLatency,
			latestValue,
			historyPoints,
			droppedRows,
			alertsFired,
			alertsSuppressed,
			lastSuccess,
		)
	})
}

// ObserveLoad records one load attempt.
func ObserveLoad(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if loadsTotal != nil {
		loadsTotal.WithLabelValues(result).Inc()
	}
	if loadLatency != nil {
		loadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if result == ResultSuccess && lastSuccess != nil {
		lastSuccess.SetToCurrentTime()
	}
}

// SetLatest publishes the latest value of a metric.
func SetLatest(metric string, value float64) {
	if latestValue != nil {
		latestValue.WithLabelValues(metric).Set(value)
	}
}

// SetHistoryPoints publishes the size of the in-memory history.
func SetHistoryPoints(n int) {
	if historyPoints != nil {
		historyPoints.Set(float64(n))
	}
}

// AddDroppedRows counts rows discarded by the normalizer.
func AddDroppedRows(n int) {
	if droppedRows != nil && n > 0 {
		droppedRows.Add(float64(n))
	}
}

// IncAlertFired counts one firing.
func IncAlertFired(metric, direction string) {
	if alertsFired != nil {
		alertsFired.WithLabelValues(metric, direction).Inc()
	}
}

// IncAlertSuppressed counts one suppressed candidate.
func IncAlertSuppressed(metric, direction string) {
	if alertsSuppressed != nil {
		alertsSuppressed.WithLabelValues(metric, direction).Inc()
	}
}
