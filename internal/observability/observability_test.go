package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-pyro/internal/scene"
)

var _ scene.Recorder = (*Metrics)(nil)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetricsForTesting()

	m.AnnotationPlaced("firework")
	m.AnnotationPlaced("firework")
	m.AnnotationRemoved("audience")
	m.GeometryUpdated("measurement")
	m.SettingChanged("safetyDistance")
	m.ShareEncoded(nil)
	m.ShareDecoded(errors.New("corrupt"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnnotationsPlaced.WithLabelValues("firework")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnnotationsRemoved.WithLabelValues("audience")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeometryUpdates.WithLabelValues("measurement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettingChanges.WithLabelValues("safetyDistance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShareEncodes.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ShareDecodes.WithLabelValues(OutcomeError)))
}

func TestMetrics_WiredIntoStore(t *testing.T) {
	m := NewMetricsForTesting()
	s := scene.NewStore(scene.WithRecorder(m))

	_, err := s.Place("restricted", orb.Point{-98, 39}, scene.PlaceOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnnotationsPlaced.WithLabelValues("restricted")))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "json").Debug("placed", "kind", "firework")
	assert.Contains(t, buf.String(), `"kind":"firework"`)

	buf.Reset()
	newLogger(&buf, "warn", "text").Info("hidden")
	assert.Empty(t, buf.String())
}

func TestNewMetrics_RegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AnnotationPlaced("custom")
	m.EditorClients.Inc()

	n, err := testutil.GatherAndCount(reg, "pyro_annotations_placed_total", "pyro_editor_clients")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
