package geometry

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geomath"
)

// Shape is a filled or stroked geometry owned by an entity. SourceID is
// unique across the scene.
type Shape struct {
	SourceID string
	Geometry orb.Geometry
}

// Shapes returns the drawable geometry of e. Custom pins have none.
func Shapes(e annotation.Entity) []Shape {
	switch e.Kind.Family() {
	case annotation.FamilyRadiusPoint:
		ring := geomath.CirclePolygon(e.Anchor, e.RadiusMeters, geomath.DefaultCircleSegments)
		return []Shape{{SourceID: e.ID + "-radius", Geometry: orb.Polygon{ring}}}
	case annotation.FamilyRectangle:
		c := e.Corners
		ring := orb.Ring{c[0], c[1], c[2], c[3], c[0]}
		return []Shape{{SourceID: e.ID + "-area", Geometry: orb.Polygon{ring}}}
	case annotation.FamilySegment:
		return []Shape{{SourceID: e.ID + "-line", Geometry: orb.LineString{e.Points[0], e.Points[1]}}}
	}
	return nil
}

// ControlPoints returns the draggable positions of e indexed by Handle.
func ControlPoints(e annotation.Entity) []orb.Point {
	switch e.Kind.Family() {
	case annotation.FamilyRectangle:
		return e.Corners[:]
	case annotation.FamilySegment:
		return e.Points[:]
	default:
		return []orb.Point{e.Anchor}
	}
}

// LabelPosition returns where the label handle of e sits. The second result
// is false for kinds whose label rides on the anchor.
func LabelPosition(e annotation.Entity) (orb.Point, bool) {
	switch e.Kind.Family() {
	case annotation.FamilyRectangle:
		return RectangleLabelPosition(e.Corners), true
	case annotation.FamilySegment:
		return geomath.Midpoint(e.Points[0], e.Points[1]), true
	}
	return e.Anchor, false
}
