package editor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/surface"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProjectScreenToGeo_Center(t *testing.T) {
	s := NewRemoteSurface(quietLogger())
	c := scene.Camera{Center: orb.Point{-122.4194, 37.7749}, Zoom: 16}
	s.Viewport(c, 800, 600)

	got := s.ProjectScreenToGeo(surface.ScreenPoint{X: 400, Y: 300})
	assert.InDelta(t, c.Center.Lon(), got.Lon(), 1e-9)
	assert.InDelta(t, c.Center.Lat(), got.Lat(), 1e-9)
}

func TestProjectScreenToGeo_Directions(t *testing.T) {
	s := NewRemoteSurface(quietLogger())
	center := orb.Point{0, 0}
	s.Viewport(scene.Camera{Center: center, Zoom: 0}, 512, 512)

	// At zoom 0 the 512 px world spans 360 degrees of longitude.
	right := s.ProjectScreenToGeo(surface.ScreenPoint{X: 256 + 128, Y: 256})
	assert.InDelta(t, 90, right.Lon(), 1e-6)
	assert.InDelta(t, 0, right.Lat(), 1e-6)

	up := s.ProjectScreenToGeo(surface.ScreenPoint{X: 256, Y: 200})
	assert.Greater(t, up.Lat(), 0.0)

	// Rotated so east is up: screen right is south.
	s.Viewport(scene.Camera{Center: center, Zoom: 0, Bearing: 90}, 512, 512)
	rotated := s.ProjectScreenToGeo(surface.ScreenPoint{X: 300, Y: 256})
	assert.Less(t, rotated.Lat(), 0.0)
	assert.InDelta(t, 0, rotated.Lon(), 1e-6)
}

func TestProjection_RoundTrip(t *testing.T) {
	s := NewRemoteSurface(quietLogger())
	s.Viewport(scene.Camera{Center: orb.Point{-98.5, 39.8}, Zoom: 14.5, Bearing: 33}, 1280, 720)

	for _, p := range []surface.ScreenPoint{{X: 0, Y: 0}, {X: 1280, Y: 720}, {X: 17, Y: 650}} {
		back := s.projectGeoToScreen(s.ProjectScreenToGeo(p))
		assert.InDelta(t, p.X, back.X, 1e-6)
		assert.InDelta(t, p.Y, back.Y, 1e-6)
	}
}

func TestMetersPerPixel(t *testing.T) {
	assert.InDelta(t, 2*math.Pi*earthRadius/512, metersPerPixel(0), 1e-6)
	assert.InDelta(t, metersPerPixel(10)/2, metersPerPixel(11), 1e-9)
}

func TestRemoteSurface_Ops(t *testing.T) {
	s := NewRemoteSurface(quietLogger())
	ops := s.Subscribe()
	defer ops.Close()

	h := s.AddDraggablePoint("a-0", orb.Point{1, 2}, surface.Style{Kind: "firework", Color: "#ff0000", Role: surface.RoleAnchor})
	h.SetText(`#1 3" Shell · 210 ft`)
	h.SetPosition(orb.Point{3, 4})
	s.SetShapeGeometry("a-radius", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, surface.Style{Kind: "firework"})
	s.RemoveShape("a-radius")
	h.Remove()
	s.SetCamera(scene.Camera{Center: orb.Point{5, 6}, Zoom: 9})
	s.Viewport(scene.Camera{Center: orb.Point{7, 8}, Zoom: 3}, 100, 100)

	got := ops.Take()
	require.Len(t, got, 7)
	names := make([]string, len(got))
	for i, op := range got {
		names[i] = op.Op
	}
	assert.Equal(t, []string{OpPoint, OpText, OpPosition, OpShape, OpRemoveShape, OpRemovePoint, OpCamera}, names)
	assert.Equal(t, surface.RoleAnchor, got[0].Style.Role)
	assert.Equal(t, orb.Point{3, 4}, *got[2].Position)

	var geom map[string]any
	require.NoError(t, json.Unmarshal(got[3].Geometry, &geom))
	assert.Equal(t, "Polygon", geom["type"])

	_, ok := s.Handle("a-0")
	assert.False(t, ok)
	assert.Equal(t, 3.0, s.Camera().Zoom)
}

func TestRemoteSurface_CloseEndsSubscription(t *testing.T) {
	s := NewRemoteSurface(quietLogger())
	ops := s.Subscribe()
	ops.Close()
	ops.Close()
	_, open := <-ops.Ready()
	assert.False(t, open)

	s.RemoveShape("x")
	assert.Empty(t, ops.Take())
}

func TestRemoteSurface_LargeRepaintIsNotDropped(t *testing.T) {
	s := NewRemoteSurface(quietLogger())
	ops := s.Subscribe()
	defer ops.Close()

	for i := 0; i < 1000; i++ {
		s.AddDraggablePoint(fmt.Sprintf("fw%d-0", i), orb.Point{-98, 39}, surface.Style{Kind: "firework"})
	}
	select {
	case <-ops.Ready():
	default:
		t.Fatal("no ops signalled")
	}
	got := ops.Take()
	require.Len(t, got, 1000)
	assert.Equal(t, "fw0-0", got[0].Key)
	assert.Equal(t, "fw999-0", got[999].Key)
}

func TestRemoteSurface_WithBinder(t *testing.T) {
	logger := quietLogger()
	store := scene.NewStore(scene.WithLogger(logger))
	s := NewRemoteSurface(logger)
	c := scene.Camera{Center: orb.Point{-98, 39}, Zoom: 17}
	s.Viewport(c, 800, 600)
	store.SetCamera(c)
	b := surface.NewBinder(store, s, logger)
	b.Bind()

	e, err := b.Drop(annotation.KindMeasurement, surface.ScreenPoint{X: 400, Y: 300}, scene.PlaceOptions{})
	require.NoError(t, err)
	assert.InDelta(t, -98, e.Points[0].Lon()/2+e.Points[1].Lon()/2, 1e-6)
	assert.Equal(t, 3, s.Len())

	end, ok := s.Handle(e.ID + "-1")
	require.True(t, ok)
	target := orb.Point{-97.999, 39.001}
	end.Drag(target, true)

	got, _ := store.Get(e.ID)
	assert.Equal(t, target, got.Points[1])

	end.ContextMenu()
	assert.Zero(t, store.Len())
	assert.Zero(t, s.Len())
}
