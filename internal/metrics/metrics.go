// Package metrics exposes Prometheus counters for the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus instruments.
type Metrics struct {
	registry            *prometheus.Registry
	subtitleLoads       prometheus.Counter
	subtitleLoadErrors  prometheus.Counter
	cardExports         prometheus.Counter
	cardExportErrors    prometheus.Counter
	seekBroadcasts      prometheus.Counter
	tabsOpened          prometheus.Counter
	activeSubscribers   prometheus.Gauge
}

// New creates and registers the bridge metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		subtitleLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subbridge_subtitle_loads_total",
			Help: "Total number of successful subtitle resolutions",
		}),
		subtitleLoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subbridge_subtitle_load_errors_total",
			Help: "Total number of failed subtitle resolutions",
		}),
		cardExports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subbridge_card_exports_total",
			Help: "Total number of successful card exports",
		}),
		cardExportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subbridge_card_export_errors_total",
			Help: "Total number of failed card exports",
		}),
		seekBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subbridge_seek_broadcasts_total",
			Help: "Total number of seek events pushed to subscribers",
		}),
		tabsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subbridge_tabs_opened_total",
			Help: "Total number of fresh browser tabs opened",
		}),
		activeSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "subbridge_active_subscribers",
			Help: "Number of currently connected browser tabs",
		}),
	}

	registry.MustRegister(
		m.subtitleLoads,
		m.subtitleLoadErrors,
		m.cardExports,
		m.cardExportErrors,
		m.seekBroadcasts,
		m.tabsOpened,
		m.activeSubscribers,
	)
	return m
}

// A nil *Metrics is safe to use; every method becomes a no-op.

func (m *Metrics) IncSubtitleLoads() {
	if m != nil {
		m.subtitleLoads.Inc()
	}
}

func (m *Metrics) IncSubtitleLoadErrors() {
	if m != nil {
		m.subtitleLoadErrors.Inc()
	}
}

func (m *Metrics) IncCardExports() {
	if m != nil {
		m.cardExports.Inc()
	}
}

func (m *Metrics) IncCardExportErrors() {
	if m != nil {
		m.cardExportErrors.Inc()
	}
}

func (m *Metrics) IncSeekBroadcasts() {
	if m != nil {
		m.seekBroadcasts.Inc()
	}
}

func (m *Metrics) IncTabsOpened() {
	if m != nil {
		m.tabsOpened.Inc()
	}
}

func (m *Metrics) SetActiveSubscribers(n int) {
	if m != nil {
		m.activeSubscribers.Set(float64(n))
	}
}

// Handler serves the metrics endpoint. updateGauges, when non-nil, runs
// before each scrape. With metrics disabled the endpoint answers 404.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.NotFound(w, r)
			return
		}
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
