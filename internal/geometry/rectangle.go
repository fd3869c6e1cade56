package geometry

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/geomath"
)

// Per-corner direction of the dragged corner relative to its anchor,
// indexed SW, SE, NE, NW.
var (
	cornerLngSign = [4]float64{-1, 1, 1, -1}
	cornerLatSign = [4]float64{-1, -1, 1, 1}
)

// NormalizeCorners returns the bounding rectangle of c in SW, SE, NE, NW order.
func NormalizeCorners(c [4]orb.Point) [4]orb.Point {
	return boundCorners(orb.MultiPoint(c[:]).Bound())
}

func boundCorners(b orb.Bound) [4]orb.Point {
	return [4]orb.Point{
		{b.Min.Lon(), b.Min.Lat()},
		{b.Max.Lon(), b.Min.Lat()},
		{b.Max.Lon(), b.Max.Lat()},
		{b.Min.Lon(), b.Max.Lat()},
	}
}

// resizeRectangle moves corner i to p while the opposite corner stays
// fixed. p is clamped so neither side gets shorter than minSizeMeters.
func resizeRectangle(c [4]orb.Point, i int, p orb.Point, minSizeMeters float64) [4]orb.Point {
	anchor := c[(i+2)%4]

	minLng := geomath.LngDegrees(minSizeMeters, anchor.Lat())
	minLat := geomath.LatDegrees(minSizeMeters)

	lngSign, latSign := cornerLngSign[i], cornerLatSign[i]
	lng, lat := p.Lon(), p.Lat()
	if (lng-anchor.Lon())*lngSign < minLng {
		lng = anchor.Lon() + lngSign*minLng
	}
	if (lat-anchor.Lat())*latSign < minLat {
		lat = anchor.Lat() + latSign*minLat
	}

	dragged := orb.Point{lng, lat}
	return NormalizeCorners([4]orb.Point{anchor, {dragged.Lon(), anchor.Lat()}, dragged, {anchor.Lon(), dragged.Lat()}})
}

// translateRectangle moves the rectangle so its label lands on p.
func translateRectangle(c [4]orb.Point, p orb.Point) [4]orb.Point {
	ref := RectangleLabelPosition(c)
	dLng, dLat := p.Lon()-ref.Lon(), p.Lat()-ref.Lat()

	var out [4]orb.Point
	for i, corner := range c {
		out[i] = geomath.Translate(corner, dLng, dLat)
	}
	return NormalizeCorners(out)
}

// RectangleLabelPosition is the title point centered LabelOffsetFeet above
// the north edge.
func RectangleLabelPosition(c [4]orb.Point) orb.Point {
	centerLng := (c[0].Lon() + c[2].Lon()) / 2
	north := c[2].Lat()
	return orb.Point{centerLng, north + geomath.LatDegrees(geomath.FeetToMeters(LabelOffsetFeet))}
}

// RectangleAt builds canonical corners for a width x height rectangle
// centered on center.
func RectangleAt(center orb.Point, widthMeters, heightMeters float64) [4]orb.Point {
	halfLng := geomath.LngDegrees(widthMeters, center.Lat()) / 2
	halfLat := geomath.LatDegrees(heightMeters) / 2
	return boundCorners(orb.Bound{
		Min: orb.Point{center.Lon() - halfLng, center.Lat() - halfLat},
		Max: orb.Point{center.Lon() + halfLng, center.Lat() + halfLat},
	})
}

// SegmentAt builds an east-west segment of lengthMeters centered on center.
func SegmentAt(center orb.Point, lengthMeters float64) [2]orb.Point {
	half := geomath.LngDegrees(lengthMeters, center.Lat()) / 2
	return [2]orb.Point{
		{center.Lon() - half, center.Lat()},
		{center.Lon() + half, center.Lat()},
	}
}
