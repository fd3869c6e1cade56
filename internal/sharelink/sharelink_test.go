package sharelink

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/scene"
)

func sampleScene(t *testing.T) *scene.Store {
	t.Helper()
	s := scene.NewStore()
	at := orb.Point{-122.4194, 37.7749}
	for i, kind := range annotation.Kinds {
		_, err := s.Place(kind, orb.Point{at.Lon() + float64(i)*1e-4, at.Lat()}, scene.PlaceOptions{
			Label:       "Ridge " + string(kind),
			Color:       "#12345" + strconv.Itoa(i),
			Emoji:       "🚑",
			Description: "medic",
		})
		require.NoError(t, err)
	}
	_, err := s.Place(annotation.KindFirework, orb.Point{-122.42, 37.775}, scene.PlaceOptions{CaliberInches: 6})
	require.NoError(t, err)
	require.NoError(t, s.SetSafetyDistance(100))
	s.SetProjectName("Bay Finale")
	s.SetShowHeight(true)
	s.SetCamera(scene.Camera{Center: at, Zoom: 17.5, Bearing: 12, Pitch: 30})
	return s
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	src := sampleScene(t)

	token, err := Encode(src.Snapshot())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "s="))
	assert.NotContains(t, token[2:], "=")
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")

	snap, err := Decode(token)
	require.NoError(t, err)

	dst := scene.NewStore()
	require.NoError(t, dst.Restore(snap))

	want, got := src.List(), dst.List()
	require.Len(t, got, len(want))
	for i := range want {
		assertSameEntity(t, want[i], got[i])
	}
	assert.Equal(t, src.Settings(), dst.Settings())
	assert.Equal(t, src.Camera(), dst.Camera())
}

// assertSameEntity compares every field, allowing float noise in
// coordinates and derived measures.
func assertSameEntity(t *testing.T, want, got annotation.Entity) {
	t.Helper()
	points := func(e annotation.Entity) []orb.Point {
		return append(append([]orb.Point{e.Anchor}, e.Corners[:]...), e.Points[:]...)
	}
	wp, gp := points(want), points(got)
	for i := range wp {
		assert.InDelta(t, wp[i].Lon(), gp[i].Lon(), 1e-9, "%s point %d", want.ID, i)
		assert.InDelta(t, wp[i].Lat(), gp[i].Lat(), 1e-9, "%s point %d", want.ID, i)
	}
	assert.InDelta(t, want.RadiusMeters, got.RadiusMeters, 1e-6)
	assert.InDelta(t, want.WidthMeters, got.WidthMeters, 1e-6)
	assert.InDelta(t, want.HeightMeters, got.HeightMeters, 1e-6)
	assert.InDelta(t, want.DistanceMeters, got.DistanceMeters, 1e-6)

	strip := func(e annotation.Entity) annotation.Entity {
		e.Anchor, e.Corners, e.Points = orb.Point{}, [4]orb.Point{}, [2]orb.Point{}
		e.RadiusMeters, e.WidthMeters, e.HeightMeters, e.DistanceMeters = 0, 0, 0, 0
		return e
	}
	assert.Equal(t, strip(want), strip(got))
}

func TestEncodeDecode_KeepsEveryField(t *testing.T) {
	src := sampleScene(t)
	snap, err := Decode(mustEncode(t, src.Snapshot()))
	require.NoError(t, err)

	dst := scene.NewStore()
	require.NoError(t, dst.Restore(snap))

	kinds := map[annotation.Kind]bool{}
	for _, e := range dst.List() {
		kinds[e.Kind] = true
		want, ok := src.Get(e.ID)
		require.True(t, ok, e.ID)
		assert.Equal(t, want.Label, e.Label)
		assert.Equal(t, want.Color, e.Color)
		if e.Kind == annotation.KindCustom {
			assert.Equal(t, "🚑", e.Emoji)
			assert.Equal(t, "medic", e.Description)
		}
		if e.Kind == annotation.KindMeasurement {
			assert.NotEqual(t, e.Points[0], e.Points[1])
			assert.Equal(t, want.Points, e.Points)
		}
	}
	assert.Len(t, kinds, len(annotation.Kinds))
}

func mustEncode(t *testing.T, snap scene.Snapshot) string {
	t.Helper()
	token, err := Encode(snap)
	require.NoError(t, err)
	return token
}

func TestDecode_AcceptedForms(t *testing.T) {
	token, err := Encode(scene.EmptySnapshot())
	require.NoError(t, err)
	bare := strings.TrimPrefix(token, "s=")

	url, err := EncodeURL("https://pyro.example.com/editor#old", scene.EmptySnapshot())
	require.NoError(t, err)
	assert.Equal(t, "https://pyro.example.com/editor#"+token, url)

	for _, input := range []string{token, "#" + token, bare, url, " " + token + "\n", "#v=2&" + token} {
		snap, err := Decode(input)
		require.NoError(t, err, input)
		assert.Equal(t, scene.EmptySnapshot(), snap)
	}
}

func mustRawURLDecode(t *testing.T, token string) []byte {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	return raw
}

func TestDecode_PaddedBareToken(t *testing.T) {
	src := sampleScene(t)
	var token string
	// Find a project name whose token needs padding.
	for n := 0; ; n++ {
		require.Less(t, n, 64)
		src.SetProjectName("Bay Finale" + strings.Repeat("!", n))
		token = strings.TrimPrefix(mustEncode(t, src.Snapshot()), "s=")
		if len(token)%4 != 0 {
			break
		}
	}
	padded := base64.URLEncoding.EncodeToString(mustRawURLDecode(t, token))
	require.True(t, strings.HasSuffix(padded, "="))

	for _, input := range []string{padded, "#" + padded, "s=" + padded} {
		snap, err := Decode(input)
		require.NoError(t, err, input)
		assert.Equal(t, src.Settings().ProjectName, snap.ProjectName)
		assert.Len(t, snap.Fireworks, len(src.Snapshot().Fireworks))
	}
}

func TestDecode_Failures(t *testing.T) {
	encode := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err = zw.Write(raw)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return "s=" + base64.RawURLEncoding.EncodeToString(buf.Bytes())
	}

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no key", "#x=abc"},
		{"bad base64", "s=***"},
		{"truncated gzip", "s=" + base64.RawURLEncoding.EncodeToString([]byte{0x1f, 0x8b, 0x08, 0x00})},
		{"not json", "s=" + base64.RawURLEncoding.EncodeToString([]byte("hello"))},
		{"missing version", encode(map[string]any{"fireworks": []any{}})},
		{"future version", encode(map[string]any{"v": 2})},
		{"zero version", encode(map[string]any{"v": 0})},
		{"wrong shape", encode(map[string]any{"v": 1, "fireworks": "lots"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			assert.ErrorIs(t, err, ErrNoState)

			snap, ok := Load(tt.input, nil)
			assert.False(t, ok)
			assert.Equal(t, scene.EmptySnapshot(), snap)
		})
	}
}

func TestDecode_OlderTokenDefaultsMissingArrays(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"v":         1,
		"camera":    map[string]any{"center": []float64{-98, 39}, "zoom": 15},
		"fireworks": []any{map[string]any{"id": "a", "number": 1, "position": []float64{-98, 39}, "caliber": 4}},
		"audiences": []any{},
	})
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(raw)
	require.NoError(t, zw.Close())

	snap, err := Decode("s=" + base64.RawURLEncoding.EncodeToString(buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, snap.Fireworks, 1)
	assert.NotNil(t, snap.Custom)
	assert.NotNil(t, snap.Measurements)
	assert.NotNil(t, snap.Restricted)
	assert.Empty(t, snap.Restricted)
	assert.Equal(t, scene.SafetyDistanceStandard, snap.Settings().SafetyDistance)
}

func TestDecode_AcceptsUncompressedPayload(t *testing.T) {
	raw, err := json.Marshal(document{V: CurrentVersion, Snapshot: scene.EmptySnapshot()})
	require.NoError(t, err)

	snap, err := Decode("s=" + base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, scene.EmptySnapshot(), snap)
}

func TestDecode_AcceptsPaddedToken(t *testing.T) {
	token, err := Encode(scene.EmptySnapshot())
	require.NoError(t, err)
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, "s="))
	require.NoError(t, err)

	_, err = Decode("s=" + base64.URLEncoding.EncodeToString(payload))
	assert.NoError(t, err)
}
