package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/sharelink"
)

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Host:         "localhost",
		Port:         "8086",
		DataDir:      t.TempDir(),
		ShareBaseURL: "http://localhost:8086/editor",
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "plat-pyro", body["service"])
	assert.NotEmpty(t, rec.Header().Values("Link"))

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/nope").Code)
}

func TestEditorPage(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv, "/editor")
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, `id="map"`)
	assert.Contains(t, html, `data-palette-id="3_shell"`)
	assert.Contains(t, html, "measurementunit")
}

func TestStaticEditorScript(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv, "/static/editor.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pyro-map")
}

func TestReportPage(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.Store().Place(annotation.KindFirework, orb.Point{-98, 39}, scene.PlaceOptions{})
	require.NoError(t, err)
	srv.Store().SetProjectName("Lakeside")

	rec := get(t, srv, "/report")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Lakeside</h1>")
	assert.Contains(t, rec.Body.String(), "Firework #1")

	snap := scene.EmptySnapshot()
	snap.ProjectName = "Shared"
	token, err := sharelink.Encode(snap)
	require.NoError(t, err)
	rec = get(t, srv, "/report?s="+strings.TrimPrefix(token, "s="))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Shared</h1>")

	assert.Equal(t, http.StatusUnprocessableEntity, get(t, srv, "/report?s=%25%25").Code)
}

func TestInitialShare(t *testing.T) {
	snap := scene.EmptySnapshot()
	snap.Fireworks = []scene.FireworkRecord{{ID: "f1", Number: 1, Position: orb.Point{-98, 39}, Caliber: 4}}
	link, err := sharelink.EncodeURL("http://x/editor", snap)
	require.NoError(t, err)

	srv := newTestServer(t, func(c *Config) { c.InitialShare = link })
	require.Equal(t, 1, srv.Store().Len())
	assert.Contains(t, get(t, srv, "/metrics").Body.String(), `pyro_share_decodes_total{outcome="success"} 1`)

	bad := newTestServer(t, func(c *Config) { c.InitialShare = "s=broken" })
	assert.Zero(t, bad.Store().Len())
	assert.Equal(t, scene.DefaultCamera(), bad.Store().Camera())
	assert.Contains(t, get(t, bad, "/metrics").Body.String(), `pyro_share_decodes_total{outcome="error"} 1`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.Store().Place(annotation.KindCustom, orb.Point{-98, 39}, scene.PlaceOptions{})
	require.NoError(t, err)

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pyro_annotations_placed_total{kind="custom"} 1`)
}

func TestOpenAPI(t *testing.T) {
	srv := newTestServer(t)
	paths := srv.OpenAPI().Paths
	for _, p := range []string{
		"/health",
		"/api/v1/annotations",
		"/api/v1/annotations/{id}/handles/{handle}",
		"/api/v1/scene/geojson",
		"/api/v1/scene/tiles/{z}/{x}/{y}",
		"/api/v1/share/load",
		"/api/v1/palette/{id}",
		"/api/v1/editor/events",
		"/api/v1/editor/drop",
	} {
		assert.Contains(t, paths, p)
	}
}

func TestHealthThroughServer(t *testing.T) {
	srv := newTestServer(t)
	rec := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Values("Link"), `</api/v1/palette>; rel="palette"`)
}
