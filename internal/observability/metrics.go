// Package observability sets up logging and Prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pyro"

// Share link outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the Prometheus collectors for the editor. It implements
// scene.Recorder.
type Metrics struct {
	AnnotationsPlaced  *prometheus.CounterVec // labels: kind
	AnnotationsRemoved *prometheus.CounterVec // labels: kind
	GeometryUpdates    *prometheus.CounterVec // labels: kind
	SettingChanges     *prometheus.CounterVec // labels: setting

	ShareEncodes *prometheus.CounterVec // labels: outcome={success,error}
	ShareDecodes *prometheus.CounterVec // labels: outcome={success,error}

	EditorClients prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		AnnotationsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_placed_total",
			Help:      "Annotations placed on the map, by kind.",
		}, []string{"kind"}),
		AnnotationsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotations_removed_total",
			Help:      "Annotations removed from the map, by kind.",
		}, []string{"kind"}),
		GeometryUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geometry_updates_total",
			Help:      "Accepted drag events, by kind.",
		}, []string{"kind"}),
		SettingChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setting_changes_total",
			Help:      "Scene setting changes, by setting name.",
		}, []string{"setting"}),
		ShareEncodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_encodes_total",
			Help:      "Share links produced, by outcome.",
		}, []string{"outcome"}),
		ShareDecodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_decodes_total",
			Help:      "Share links loaded, by outcome.",
		}, []string{"outcome"}),
		EditorClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_clients",
			Help:      "Connected editor event streams.",
		}),
	}
}

// NewMetrics creates all metrics and registers them with reg, typically
// prometheus.DefaultRegisterer or a server-local registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.AnnotationsPlaced,
		m.AnnotationsRemoved,
		m.GeometryUpdates,
		m.SettingChanges,
		m.ShareEncodes,
		m.ShareDecodes,
		m.EditorClients,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) AnnotationPlaced(kind string)  { m.AnnotationsPlaced.WithLabelValues(kind).Inc() }
func (m *Metrics) AnnotationRemoved(kind string) { m.AnnotationsRemoved.WithLabelValues(kind).Inc() }
func (m *Metrics) GeometryUpdated(kind string)   { m.GeometryUpdates.WithLabelValues(kind).Inc() }
func (m *Metrics) SettingChanged(name string)    { m.SettingChanges.WithLabelValues(name).Inc() }

// ShareEncoded counts one share link encode.
func (m *Metrics) ShareEncoded(err error) { m.ShareEncodes.WithLabelValues(outcome(err)).Inc() }

// ShareDecoded counts one share link decode.
func (m *Metrics) ShareDecoded(err error) { m.ShareDecodes.WithLabelValues(outcome(err)).Inc() }

// ShareLoaded counts a share link read with an empty-scene fallback.
func (m *Metrics) ShareLoaded(ok bool) {
	if ok {
		m.ShareDecoded(nil)
		return
	}
	m.ShareDecodes.WithLabelValues(OutcomeError).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
