// Package geometry recomputes annotation geometry when a control point is
// dragged and derives the measurements shown next to each annotation.
//
// Every function here touches a single entity, so a drag costs the same
// regardless of how many annotations the scene holds.
package geometry

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geomath"
)

// DefaultMinSizeFeet is the smallest width or height a rectangle may be
// resized to.
const DefaultMinSizeFeet = 20.0

// LabelOffsetFeet is how far above the north edge a rectangle title sits.
const LabelOffsetFeet = 20.0

// Handle identifies a draggable control point of an entity.
//
//	rectangle    0..3 corners in SW, SE, NE, NW order
//	segment      0 start, 1 end
//	point kinds  0 anchor
//
// HandleLabel is the label (or center) handle of rectangles and segments.
type Handle int

// HandleLabel moves a whole rectangle or segment.
const HandleLabel Handle = -1

// ErrInvalidHandle is returned when a handle does not exist for the kind.
var ErrInvalidHandle = errors.New("invalid handle")

// Drag is a new position for one control point.
type Drag struct {
	Handle   Handle    `json:"handle"`
	Position orb.Point `json:"position"`
}

// Apply returns e with the drag applied and derived dimensions refreshed.
// Radius is left alone; it depends only on caliber and the scene safety
// distance. On error e is returned unchanged.
func Apply(e annotation.Entity, d Drag, minSizeMeters float64) (annotation.Entity, error) {
	switch e.Kind.Family() {
	case annotation.FamilyRadiusPoint, annotation.FamilyBarePoint:
		if d.Handle != 0 {
			return e, fmt.Errorf("%w %d for %s", ErrInvalidHandle, d.Handle, e.Kind)
		}
		e.Anchor = d.Position

	case annotation.FamilyRectangle:
		switch {
		case d.Handle == HandleLabel:
			e.Corners = translateRectangle(e.Corners, d.Position)
		case d.Handle >= 0 && d.Handle <= 3:
			e.Corners = resizeRectangle(e.Corners, int(d.Handle), d.Position, minSizeMeters)
		default:
			return e, fmt.Errorf("%w %d for %s", ErrInvalidHandle, d.Handle, e.Kind)
		}

	case annotation.FamilySegment:
		switch {
		case d.Handle == HandleLabel:
			mid := geomath.Midpoint(e.Points[0], e.Points[1])
			dLng, dLat := d.Position.Lon()-mid.Lon(), d.Position.Lat()-mid.Lat()
			e.Points[0] = geomath.Translate(e.Points[0], dLng, dLat)
			e.Points[1] = geomath.Translate(e.Points[1], dLng, dLat)
		case d.Handle == 0 || d.Handle == 1:
			e.Points[d.Handle] = d.Position
		default:
			return e, fmt.Errorf("%w %d for %s", ErrInvalidHandle, d.Handle, e.Kind)
		}
	}

	refreshDimensions(&e)
	return e, nil
}

// Refresh recomputes every derived field of e for the given safety
// distance (feet of radius per inch of shell caliber).
func Refresh(e *annotation.Entity, safetyDistance float64) {
	if e.Kind.Family() == annotation.FamilyRadiusPoint {
		e.RadiusMeters = geomath.FeetToMeters(e.CaliberInches * safetyDistance)
	}
	refreshDimensions(e)
}

func refreshDimensions(e *annotation.Entity) {
	switch e.Kind.Family() {
	case annotation.FamilyRectangle:
		e.WidthMeters, e.HeightMeters = Dimensions(e.Corners)
	case annotation.FamilySegment:
		e.DistanceMeters = geomath.HaversineMeters(e.Points[0], e.Points[1])
	}
}

// Dimensions returns the width and height in meters of canonical corners,
// measuring longitude at the rectangle's center latitude.
func Dimensions(c [4]orb.Point) (width, height float64) {
	centerLat := (c[0].Lat() + c[2].Lat()) / 2
	width = (c[2].Lon() - c[0].Lon()) * geomath.MetersPerDegreeLng(centerLat)
	height = (c[2].Lat() - c[0].Lat()) * geomath.MetersPerDegreeLat()
	return width, height
}
