package feeder

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	dispenses *prometheus.CounterVec
	units     prometheus.Counter
	fetches   *prometheus.CounterVec
	updates   *prometheus.CounterVec
	reinits   prometheus.Counter
	readFails prometheus.Counter
	lastFeed  prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		dispenses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feeder_dispense_total",
			Help: "Dispense runs by trigger and outcome.",
		}, []string{"trigger", "status"}),
		units: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feeder_dispense_units_total",
			Help: "Units actually dispensed.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feeder_time_fetch_total",
			Help: "Time service polls by result.",
		}, []string{"result"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feeder_config_updates_total",
			Help: "Schedule update requests by result.",
		}, []string{"result"}),
		reinits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feeder_store_reinit_total",
			Help: "Times the config record was reseeded with defaults.",
		}),
		readFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feeder_store_read_errors_total",
			Help: "Config record reads that failed and fell back to defaults without a commit.",
		}),
		lastFeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feeder_last_feed_timestamp_seconds",
			Help: "Unix time of the last completed dispense.",
		}),
	}
	reg.MustRegister(m.dispenses, m.units, m.fetches, m.updates, m.reinits, m.readFails, m.lastFeed,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeDispense(trigger, status string, units int, at time.Time) {
	if m == nil {
		return
	}
	m.dispenses.WithLabelValues(trigger, status).Inc()
	m.units.Add(float64(units))
	if units > 0 {
		m.lastFeed.Set(float64(at.Unix()))
	}
}

func (m *Metrics) observeFetch(result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
}

func (m *Metrics) observeUpdate(result string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(result).Inc()
}

// StoreReinit is wired as the config store's reinit hook.
func (m *Metrics) StoreReinit(error) {
	if m == nil {
		return
	}
	m.reinits.Inc()
}

// StoreReadFailed is wired as the config store's read error hook.
func (m *Metrics) StoreReadFailed(error) {
	if m == nil {
		return
	}
	m.readFails.Inc()
}
