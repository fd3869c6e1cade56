package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/humastar"
	"github.com/joeblew999/plat-pyro/internal/observability"
	"github.com/joeblew999/plat-pyro/internal/report"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/service"
	"github.com/joeblew999/plat-pyro/internal/sharelink"
)

func setup(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	svc := &Services{
		Store:        scene.NewStore(scene.WithLogger(logger), scene.WithRecorder(metrics)),
		Palette:      service.NewPaletteService(t.TempDir(), nil, logger),
		Reports:      report.NewGenerator(report.WithClock(clockwork.NewFakeClockAt(time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)))),
		Metrics:      metrics,
		ShareBaseURL: "https://pyro.example/",
		Logger:       logger,
	}

	cfg := huma.DefaultConfig("test", "1.0.0")
	cfg.CreateHooks = nil
	cfg.Transformers = append(cfg.Transformers, humastar.LinkTransformer(Links))
	api := humatest.Wrap(t, humago.New(http.NewServeMux(), cfg))
	RegisterRoutes(api, svc, "/tmp/pyro")
	return api, svc
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestHealthAndInfo(t *testing.T) {
	api, _ := setup(t)

	resp := api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", decode[HealthBody](t, resp.Body).Status)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/annotations>; rel="annotations"`)

	info := decode[InfoBody](t, api.Get("/api/v1/info").Body)
	assert.Equal(t, "plat-pyro", info.Name)
	assert.Len(t, info.Kinds, len(annotation.Kinds))
}

func TestAnnotationsCRUD(t *testing.T) {
	api, svc := setup(t)

	resp := api.Post("/api/v1/annotations", map[string]any{"paletteId": "5_shell", "position": []float64{-98, 39}})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	fw := decode[AnnotationBody](t, resp.Body)
	assert.Equal(t, 1, fw.Number)
	assert.Equal(t, 5.0, fw.CaliberInches)
	assert.Equal(t, `#1 5" Shell · 350 ft`, fw.Text)

	resp = api.Post("/api/v1/annotations", map[string]any{"kind": "custom", "position": []float64{-98.001, 39}, "label": "Gate", "emoji": "🚪"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	pin := decode[AnnotationBody](t, resp.Body)
	assert.Equal(t, 2, pin.Number)

	resp = api.Get("/api/v1/annotations/" + pin.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	links := resp.Header().Values("Link")
	assert.Contains(t, links, `</api/v1/annotations/`+pin.ID+`>; rel="self"`)
	assert.Contains(t, links, `</api/v1/annotations/`+pin.ID+`>; rel="delete"; method="DELETE"; title="Remove annotation"`)

	resp = api.Patch("/api/v1/annotations/"+fw.ID, map[string]any{"caliberInches": 3})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, `#1 3" Shell · 210 ft`, decode[AnnotationBody](t, resp.Body).Text)

	resp = api.Delete("/api/v1/annotations/" + fw.ID)
	require.Equal(t, http.StatusNoContent, resp.Code)
	got, ok := svc.Store.Get(pin.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.Number)

	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/annotations/"+fw.ID).Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/annotations/nope").Code)
	assert.Equal(t, http.StatusNotFound, api.Post("/api/v1/annotations", map[string]any{"paletteId": "nope", "position": []float64{0, 0}}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Post("/api/v1/annotations", map[string]any{"kind": "rocket", "position": []float64{0, 0}}).Code)
}

func TestDragHandle(t *testing.T) {
	api, svc := setup(t)
	m, err := svc.Store.Place(annotation.KindMeasurement, orb.Point{-98, 39}, scene.PlaceOptions{})
	require.NoError(t, err)

	resp := api.Patch("/api/v1/annotations/"+m.ID+"/handles/1", map[string]any{"position": []float64{-98, 39.001}})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode[AnnotationBody](t, resp.Body)
	assert.Equal(t, orb.Point{-98, 39.001}, body.Points[1])
	assert.Greater(t, body.DistanceMeters, 100.0)

	assert.Equal(t, http.StatusUnprocessableEntity, api.Patch("/api/v1/annotations/"+m.ID+"/handles/3", map[string]any{"position": []float64{0, 0}}).Code)
	assert.Equal(t, http.StatusNotFound, api.Patch("/api/v1/annotations/nope/handles/0", map[string]any{"position": []float64{0, 0}}).Code)
}

func TestListAnnotations_Paginates(t *testing.T) {
	api, svc := setup(t)
	for i := 0; i < 5; i++ {
		_, err := svc.Store.Place(annotation.KindAudience, orb.Point{-98, 39 + float64(i)*0.01}, scene.PlaceOptions{})
		require.NoError(t, err)
	}
	_, err := svc.Store.Place(annotation.KindFirework, orb.Point{-98, 39}, scene.PlaceOptions{})
	require.NoError(t, err)

	resp := api.Get("/api/v1/annotations?kind=audience&offset=2&limit=2")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	page := decode[humastar.PageBody[AnnotationBody]](t, resp.Body)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, 3, page.Data[0].Number)
	assert.Contains(t, resp.Header().Values("Link"), `</api/v1/annotations?offset=4&limit=2>; rel="next"`)
}

func TestSceneAndGeoJSON(t *testing.T) {
	api, svc := setup(t)
	_, err := svc.Store.Place(annotation.KindFirework, orb.Point{-98, 39}, scene.PlaceOptions{})
	require.NoError(t, err)
	_, err = svc.Store.Place(annotation.KindRestricted, orb.Point{-98.01, 39}, scene.PlaceOptions{})
	require.NoError(t, err)

	snap := decode[scene.Snapshot](t, api.Get("/api/v1/scene").Body)
	assert.Len(t, snap.Fireworks, 1)
	assert.Len(t, snap.Restricted, 1)

	resp := api.Get("/api/v1/scene/geojson")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/geo+json", resp.Header().Get("Content-Type"))
	fc := decode[struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Geometry   map[string]any `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}](t, resp.Body)
	assert.Equal(t, "FeatureCollection", fc.Type)
	types := map[string]string{}
	for _, f := range fc.Features {
		types[f.ID] = f.Geometry["type"].(string)
	}
	assert.Len(t, fc.Features, 3)
	assert.Contains(t, types, snap.Fireworks[0].ID+"-radius")
	assert.Equal(t, "Polygon", types[snap.Restricted[0].ID+"-area"])

	assert.Equal(t, http.StatusNoContent, api.Delete("/api/v1/scene").Code)
	assert.Zero(t, svc.Store.Len())

	resp = api.Put("/api/v1/scene", snap)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 2, svc.Store.Len())
}

func TestSettingsAndCamera(t *testing.T) {
	api, svc := setup(t)

	resp := api.Put("/api/v1/settings", map[string]any{
		"measurementUnit": "meters", "safetyDistance": 100, "projectName": "Harbor", "showHeight": false,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, scene.UnitMeters, svc.Store.Settings().Unit)
	assert.Equal(t, "Harbor", svc.Store.Settings().ProjectName)

	resp = api.Put("/api/v1/settings", map[string]any{
		"measurementUnit": "meters", "safetyDistance": 85, "projectName": "", "showHeight": false,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Put("/api/v1/camera", map[string]any{"center": []float64{-80, 26}, "zoom": 14, "bearing": 0, "pitch": 0})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 14.0, svc.Store.Camera().Zoom)
	assert.Equal(t, http.StatusUnprocessableEntity, api.Put("/api/v1/camera", map[string]any{"center": []float64{0, 0}, "zoom": 40, "bearing": 0, "pitch": 0}).Code)
}

func TestShare(t *testing.T) {
	api, svc := setup(t)
	_, err := svc.Store.Place(annotation.KindFirework, orb.Point{-98, 39}, scene.PlaceOptions{CaliberInches: 6})
	require.NoError(t, err)

	resp := api.Post("/api/v1/share")
	require.Equal(t, http.StatusOK, resp.Code)
	share := decode[ShareBody](t, resp.Body)
	assert.True(t, strings.HasPrefix(share.Token, "s="))
	assert.Equal(t, "https://pyro.example/#"+share.Token, share.URL)

	svc.Store.Clear()
	resp = api.Post("/api/v1/share/load", map[string]any{"token": share.URL})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decode[LoadShareResult](t, resp.Body).Annotations)

	resp = api.Post("/api/v1/share/load", map[string]any{"token": "s=@@@"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, 1, svc.Store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.ShareDecodes.WithLabelValues(observability.OutcomeError)))

	snap, ok := sharelink.Load(share.Token)
	require.True(t, ok)
	assert.Equal(t, 6.0, snap.Fireworks[0].Caliber)
}

func TestPaletteRoutes(t *testing.T) {
	api, _ := setup(t)

	items := decode[[]service.PaletteItem](t, api.Get("/api/v1/palette").Body)
	assert.Len(t, items, len(service.DefaultPalette()))

	resp := api.Post("/api/v1/palette", map[string]any{"name": "Cake 200", "kind": "firework", "caliberInches": 1.5})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "cake_200", decode[service.PaletteItem](t, resp.Body).ID)

	assert.Equal(t, http.StatusConflict, api.Post("/api/v1/palette", map[string]any{"name": "Cake 200", "kind": "firework"}).Code)

	resp = api.Put("/api/v1/palette/cake_200", map[string]any{"name": "Cake 200", "kind": "firework", "caliberInches": 2})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 2.0, decode[service.PaletteItem](t, resp.Body).CaliberInches)

	assert.Equal(t, http.StatusOK, api.Delete("/api/v1/palette/cake_200").Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/palette/cake_200").Code)
	assert.Equal(t, http.StatusNotFound, api.Delete("/api/v1/palette/cake_200").Code)
}

func TestReportRoute(t *testing.T) {
	api, svc := setup(t)
	_, err := svc.Store.Place(annotation.KindFirework, orb.Point{-98, 39}, scene.PlaceOptions{})
	require.NoError(t, err)

	r := decode[report.Report](t, api.Get("/api/v1/report").Body)
	assert.Equal(t, 1, r.Total)
	assert.Equal(t, time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC), r.GeneratedAt)
}
