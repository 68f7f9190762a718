package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PivotScreener/internal/model"
)

// Recorder exposes scan metrics on its own registry. A nil *Recorder is a valid no-op.
type Recorder struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	matches      *prometheus.CounterVec
	resolutions  *prometheus.CounterVec
	universeSize prometheus.Gauge
	lastScan     prometheus.Gauge
	duration     prometheus.Histogram
}

// New registers the screener collectors plus the Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_scans_total",
			Help: "Scan cycles by result status.",
		}, []string{"status"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_ticker_outcomes_total",
			Help: "Per-ticker evaluation outcomes.",
		}, []string{"status"}),
		matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_matches_total",
			Help: "Tickers tagged per strategy.",
		}, []string{"strategy"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_universe_resolutions_total",
			Help: "Ticker universe resolutions by tier.",
		}, []string{"provenance"}),
		universeSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "screener_universe_size",
			Help: "Symbols in the most recently resolved universe.",
		}),
		lastScan: f.NewGauge(prometheus.GaugeOpts{
			Name: "screener_last_scan_timestamp_seconds",
			Help: "Unix time of the last completed scan.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_scan_duration_seconds",
			Help:    "Wall time of a scan cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveUniverse(u model.TickerUniverse) {
	if r == nil {
		return
	}
	r.resolutions.WithLabelValues(string(u.Provenance)).Inc()
	r.universeSize.Set(float64(len(u.Symbols)))
}

func (r *Recorder) ObserveScan(res *model.ScanResult) {
	if r == nil || res == nil {
		return
	}
	r.scans.WithLabelValues(string(res.Status)).Inc()
	for status, n := range res.Diagnostics.Outcomes {
		r.outcomes.WithLabelValues(string(status)).Add(float64(n))
	}
	if res.Report != nil {
		for _, m := range res.Report.Stocks {
			for _, tag := range m.Strategies {
				r.matches.WithLabelValues(string(tag)).Inc()
			}
		}
	}
	r.duration.Observe(res.Diagnostics.Duration.Seconds())
	if res.Status == model.ScanStatusOK {
		r.lastScan.Set(float64(res.GeneratedAt.Unix()))
	}
}
