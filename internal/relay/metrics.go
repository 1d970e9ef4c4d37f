package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"advisory-canvas/internal/stream"
)

// Drop reasons reported on canvas_relay_dropped_total.
const (
	dropRateLimited = "rate_limited"
	dropMalformed   = "malformed"
	dropHubFull     = "hub_full"
	dropTooLarge    = "too_large"
)

// Metrics holds the relay's prometheus collectors. Each Server owns its own
// registry so several relays can live in one process.
type Metrics struct {
	registry    *prometheus.Registry
	connections prometheus.Gauge
	messages    *prometheus.CounterVec
	bytes       prometheus.Counter
	dropped     *prometheus.CounterVec
	journalErrs prometheus.Counter

	journalSkipped prometheus.Counter
}

func newMetrics(hub *stream.Hub) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "canvas_relay_connections",
			Help: "Open peer connections",
		}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_relay_messages_total",
			Help: "Envelopes accepted from peers, by message type",
		}, []string{"type"}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvas_relay_bytes_total",
			Help: "Bytes accepted from peers",
		}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "canvas_relay_dropped_total",
			Help: "Frames dropped before fan-out, by reason",
		}, []string{"reason"}),
		journalErrs: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvas_relay_journal_errors_total",
			Help: "Traffic journal writes that failed",
		}),
		journalSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "canvas_relay_journal_skipped_total",
			Help: "Traffic journal writes skipped while the journal breaker is open",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "canvas_relay_rooms",
		Help: "Sessions with at least one peer",
	}, func() float64 { return float64(len(hub.Rooms())) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "canvas_relay_hub_delivered_total",
		Help: "Envelopes handed to subscriber buffers",
	}, func() float64 { return float64(hub.GetMetrics().Delivered) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "canvas_relay_hub_dropped_total",
		Help: "Envelopes lost to full hub or subscriber buffers",
	}, func() float64 { return float64(hub.GetMetrics().Dropped) })

	return m
}

// Registry exposes the collectors for scraping or inspection.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
