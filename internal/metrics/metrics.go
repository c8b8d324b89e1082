package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder wraps the Prometheus instruments the engine and collectors write.
type Recorder struct {
	scoringPasses  *prometheus.CounterVec
	poolsScored    prometheus.Gauge
	suspectPools   prometheus.Gauge
	fetchDuration  *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	trackedPools   prometheus.Gauge
}

// New creates and registers the Prometheus instruments on the default
// registry.
func New() *Recorder {
	return &Recorder{
		scoringPasses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolpulse_scoring_passes_total",
				Help: "Total number of scoring passes by outcome",
			},
			[]string{"status"},
		),
		poolsScored: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "poolpulse_pools_scored",
				Help: "Pools scored in the most recent pass",
			},
		),
		suspectPools: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "poolpulse_suspect_pools",
				Help: "Pools flagged suspect in the most recent pass",
			},
		),
		fetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poolpulse_provider_fetch_duration_seconds",
				Help:    "Duration of provider fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poolpulse_provider_fetch_errors_total",
				Help: "Total number of provider fetch failures",
			},
			[]string{"provider"},
		),
		trackedPools: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "poolpulse_tracked_pools",
				Help: "Pools currently held by the TVL tracker",
			},
		),
	}
}

// RecordPass records a completed scoring pass with its outcome status.
func (r *Recorder) RecordPass(status string) {
	r.scoringPasses.WithLabelValues(status).Inc()
}

// SetPoolsScored records how many pools the last pass scored.
func (r *Recorder) SetPoolsScored(n int) {
	r.poolsScored.Set(float64(n))
}

// SetSuspectPools records how many pools the last pass flagged suspect.
func (r *Recorder) SetSuspectPools(n int) {
	r.suspectPools.Set(float64(n))
}

// ObserveFetch records one provider fetch duration.
func (r *Recorder) ObserveFetch(provider string, d time.Duration) {
	r.fetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordFetchError records one provider fetch failure.
func (r *Recorder) RecordFetchError(provider string) {
	r.fetchErrors.WithLabelValues(provider).Inc()
}

// SetTrackedPools records the TVL tracker's current pool count.
func (r *Recorder) SetTrackedPools(n int) {
	r.trackedPools.Set(float64(n))
}
