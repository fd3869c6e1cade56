package scene

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geomath"
	"github.com/joeblew999/plat-pyro/internal/geometry"
)

var site = orb.Point{-98.0, 39.0}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(opts ...Option) *Store {
	base := []Option{WithLogger(discardLogger()), WithIDGenerator(sequentialIDs())}
	return NewStore(append(base, opts...)...)
}

func place(t *testing.T, s *Store, kind annotation.Kind) annotation.Entity {
	t.Helper()
	e, err := s.Place(kind, site, PlaceOptions{})
	require.NoError(t, err)
	return e
}

func numbers(s *Store, kind annotation.Kind) []int {
	var out []int
	for _, e := range s.List() {
		if e.Kind == kind {
			out = append(out, e.Number)
		}
	}
	return out
}

func TestPlace_AssignsNumbersPerScope(t *testing.T) {
	s := newTestStore()

	assert.Equal(t, 1, place(t, s, annotation.KindFirework).Number)
	assert.Equal(t, 2, place(t, s, annotation.KindCustom).Number)
	assert.Equal(t, 3, place(t, s, annotation.KindFirework).Number)
	assert.Equal(t, 1, place(t, s, annotation.KindAudience).Number)
	assert.Equal(t, 1, place(t, s, annotation.KindRestricted).Number)
	assert.Equal(t, 1, place(t, s, annotation.KindMeasurement).Number)
	assert.Equal(t, 2, place(t, s, annotation.KindAudience).Number)
}

func TestPlace_RejectsUnknownKind(t *testing.T) {
	s := newTestStore()
	_, err := s.Place("mortar", site, PlaceOptions{})
	assert.ErrorIs(t, err, annotation.ErrUnknownKind)
	assert.Zero(t, s.Len())
}

func TestPlace_Defaults(t *testing.T) {
	s := newTestStore()

	fw := place(t, s, annotation.KindFirework)
	assert.Equal(t, DefaultCaliberInches, fw.CaliberInches)
	assert.Equal(t, `3" Shell`, fw.Label)
	assert.Equal(t, site, fw.Anchor)
	assert.InDelta(t, geomath.FeetToMeters(210), fw.RadiusMeters, 1e-9)

	aud := place(t, s, annotation.KindAudience)
	assert.Equal(t, "Audience", aud.Label)
	assert.InDelta(t, geomath.FeetToMeters(100), aud.WidthMeters, 1e-3)
	assert.InDelta(t, geomath.FeetToMeters(50), aud.HeightMeters, 1e-6)

	m := place(t, s, annotation.KindMeasurement)
	assert.Greater(t, m.DistanceMeters, 0.0)

	tiny, err := s.Place(annotation.KindRestricted, site, PlaceOptions{WidthMeters: 1, HeightMeters: 1})
	require.NoError(t, err)
	assert.InDelta(t, geomath.FeetToMeters(20), tiny.HeightMeters, 1e-6)
}

func TestRemove_RenumbersScope(t *testing.T) {
	s := newTestStore()
	a := place(t, s, annotation.KindAudience)
	b := place(t, s, annotation.KindAudience)
	c := place(t, s, annotation.KindAudience)

	require.True(t, s.Remove(b.ID))
	assert.Equal(t, []int{1, 2}, numbers(s, annotation.KindAudience))

	got, ok := s.Get(c.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got.Number)
	got, _ = s.Get(a.ID)
	assert.Equal(t, 1, got.Number)
}

func TestRemove_FirstThenPlace(t *testing.T) {
	s := newTestStore()
	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, place(t, s, annotation.KindMeasurement).ID)
	}

	require.True(t, s.Remove(ids[0]))
	for i, id := range ids[1:] {
		e, _ := s.Get(id)
		assert.Equal(t, i+1, e.Number)
	}

	next := place(t, s, annotation.KindMeasurement)
	assert.Equal(t, 4, next.Number)
}

func TestSharedScope_FireworkAndCustom(t *testing.T) {
	s := newTestStore()
	aud := place(t, s, annotation.KindAudience)
	fw := place(t, s, annotation.KindFirework)
	custom := place(t, s, annotation.KindCustom)
	assert.Equal(t, 1, fw.Number)
	assert.Equal(t, 2, custom.Number)

	require.True(t, s.Remove(fw.ID))

	got, _ := s.Get(custom.ID)
	assert.Equal(t, 1, got.Number)
	got, _ = s.Get(aud.ID)
	assert.Equal(t, 1, got.Number)
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	s := newTestStore()
	place(t, s, annotation.KindFirework)

	assert.False(t, s.Remove("missing"))
	assert.Equal(t, 1, s.Len())
}

func TestUpdateGeometry(t *testing.T) {
	s := newTestStore()
	aud := place(t, s, annotation.KindAudience)

	target := geomath.Translate(aud.Corners[2], 0.001, 0.001)
	got, ok := s.UpdateGeometry(aud.ID, geometry.Drag{Handle: 2, Position: target})
	require.True(t, ok)
	assert.Equal(t, target, got.Corners[2])
	assert.Equal(t, aud.Corners[0], got.Corners[0])
	assert.Equal(t, 1, got.Number)

	stored, _ := s.Get(aud.ID)
	assert.Equal(t, got, stored)
}

func TestUpdateGeometry_StaleAndInvalid(t *testing.T) {
	s := newTestStore()
	fw := place(t, s, annotation.KindFirework)

	_, ok := s.UpdateGeometry("gone", geometry.Drag{Position: site})
	assert.False(t, ok)

	got, ok := s.UpdateGeometry(fw.ID, geometry.Drag{Handle: 3, Position: orb.Point{0, 0}})
	assert.False(t, ok)
	assert.Equal(t, fw, got)
}

func TestSetSafetyDistance_RecomputesFireworks(t *testing.T) {
	s := newTestStore()
	fw := place(t, s, annotation.KindFirework)
	assert.InDelta(t, geomath.FeetToMeters(210), fw.RadiusMeters, 1e-9)

	require.NoError(t, s.SetSafetyDistance(100))
	got, _ := s.Get(fw.ID)
	assert.InDelta(t, geomath.FeetToMeters(300), got.RadiusMeters, 1e-9)

	err := s.SetSafetyDistance(80)
	assert.ErrorIs(t, err, ErrInvalidSetting)
	assert.Equal(t, 100, s.Settings().SafetyDistance)
}

func TestSetSetting(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.SetSetting(SettingUnit, "meters"))
	require.NoError(t, s.SetSetting(SettingSafetyDistance, float64(100)))
	require.NoError(t, s.SetSetting(SettingProjectName, "Lakeside 4th"))
	require.NoError(t, s.SetSetting(SettingShowHeight, true))

	assert.Equal(t, Settings{Unit: UnitMeters, SafetyDistance: 100, ProjectName: "Lakeside 4th", ShowHeight: true}, s.Settings())

	assert.ErrorIs(t, s.SetSetting("color", "red"), ErrUnknownSetting)
	assert.ErrorIs(t, s.SetSetting(SettingUnit, "yards"), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetSetting(SettingSafetyDistance, 70.5), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetSetting(SettingShowHeight, 3), ErrInvalidSetting)
}

func TestObserverNotifications(t *testing.T) {
	s := newTestStore()
	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	fw := place(t, s, annotation.KindFirework)
	custom := place(t, s, annotation.KindCustom)
	require.True(t, s.Remove(fw.ID))
	require.NoError(t, s.SetSafetyDistance(100))
	s.Clear()

	require.Len(t, changes, 6)
	assert.Equal(t, Change{Kind: ChangePlaced, IDs: []string{fw.ID}}, changes[0])
	assert.Equal(t, ChangePlaced, changes[1].Kind)
	assert.Equal(t, Change{Kind: ChangeRemoved, IDs: []string{fw.ID}}, changes[2])
	assert.Equal(t, Change{Kind: ChangeRenumbered, IDs: []string{custom.ID}}, changes[3])
	assert.Equal(t, ChangeSettings, changes[4].Kind)
	assert.Equal(t, Change{Kind: ChangeCleared, IDs: []string{custom.ID}}, changes[5])
}

func TestObserverCanReadStore(t *testing.T) {
	s := newTestStore()
	var seen annotation.Entity
	s.Subscribe(func(c Change) {
		if c.Kind == ChangePlaced {
			seen, _ = s.Get(c.IDs[0])
		}
	})

	fw := place(t, s, annotation.KindFirework)
	assert.Equal(t, fw, seen)
}

func TestClear_ResetsNumbering(t *testing.T) {
	s := newTestStore()
	place(t, s, annotation.KindFirework)
	place(t, s, annotation.KindAudience)

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Equal(t, 1, place(t, s, annotation.KindFirework).Number)
	assert.Equal(t, 1, place(t, s, annotation.KindAudience).Number)
}

func TestEdit(t *testing.T) {
	s := newTestStore()
	fw := place(t, s, annotation.KindFirework)

	got, ok := s.Edit(fw.ID, func(e *annotation.Entity) {
		e.CaliberInches = 5
		e.Number = 99
		e.Color = "#00ff00"
	})
	require.True(t, ok)
	assert.Equal(t, 1, got.Number)
	assert.Equal(t, "#00ff00", got.Color)
	assert.Equal(t, `5" Shell`, got.Label)
	assert.InDelta(t, geomath.FeetToMeters(350), got.RadiusMeters, 1e-9)

	_, ok = s.Edit("missing", func(*annotation.Entity) {})
	assert.False(t, ok)
}

func TestList_Order(t *testing.T) {
	s := newTestStore()
	place(t, s, annotation.KindMeasurement)
	place(t, s, annotation.KindAudience)
	place(t, s, annotation.KindCustom)
	place(t, s, annotation.KindFirework)

	var kinds []annotation.Kind
	for _, e := range s.List() {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []annotation.Kind{
		annotation.KindFirework, annotation.KindCustom,
		annotation.KindAudience, annotation.KindMeasurement,
	}, kinds)
}
