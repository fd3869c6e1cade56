// Package geomath provides the flat-earth conversions used by the annotation
// engine. All points are orb.Point values in [lng, lat] degree order.
//
// The math is a planar approximation that is accurate at event-site scale
// (hundreds of meters). Two different Earth radii are in use: the circle
// approximation uses the WGS-84 equatorial radius while distances use the
// spherical mean radius. Existing share links depend on both values.
package geomath

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// MetersPerFoot is the international foot.
	MetersPerFoot = 0.3048

	// CircleEarthRadius is used by CirclePolygon.
	CircleEarthRadius = 6378137.0

	// HaversineEarthRadius is used by HaversineMeters.
	HaversineEarthRadius = 6371000.0

	// metersPerDegreeLat approximates one degree of latitude.
	metersPerDegreeLat = 110540.0

	// metersPerDegreeLngEquator approximates one degree of longitude at the equator.
	metersPerDegreeLngEquator = 111320.0

	// DefaultCircleSegments is the ring resolution used when none is given.
	DefaultCircleSegments = 64
)

// FeetToMeters converts feet to meters.
func FeetToMeters(feet float64) float64 {
	return feet * MetersPerFoot
}

// MetersToFeet converts meters to feet.
func MetersToFeet(meters float64) float64 {
	return meters / MetersPerFoot
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// CirclePolygon approximates a circle of radiusMeters around center as a
// closed ring of segments+1 points (the first point is repeated at the end).
// Offsets are computed on a local plane, so this is not a geodesic circle.
// segments <= 0 selects DefaultCircleSegments.
func CirclePolygon(center orb.Point, radiusMeters float64, segments int) orb.Ring {
	if segments <= 0 {
		segments = DefaultCircleSegments
	}

	cosLat := math.Cos(toRadians(center.Lat()))
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		dx := radiusMeters * math.Cos(theta)
		dy := radiusMeters * math.Sin(theta)

		dLat := toDegrees(dy / CircleEarthRadius)
		dLng := toDegrees(dx/CircleEarthRadius) / cosLat
		ring = append(ring, orb.Point{center.Lon() + dLng, center.Lat() + dLat})
	}
	ring = append(ring, ring[0])
	return ring
}

// HaversineMeters returns the great-circle distance between p1 and p2.
func HaversineMeters(p1, p2 orb.Point) float64 {
	lat1 := toRadians(p1.Lat())
	lat2 := toRadians(p2.Lat())
	dLat := toRadians(p2.Lat() - p1.Lat())
	dLng := toRadians(p2.Lon() - p1.Lon())

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return HaversineEarthRadius * c
}

// MetersPerDegreeLat returns the length of one degree of latitude.
func MetersPerDegreeLat() float64 {
	return metersPerDegreeLat
}

// MetersPerDegreeLng returns the length of one degree of longitude at lat.
func MetersPerDegreeLng(lat float64) float64 {
	return metersPerDegreeLngEquator * math.Cos(toRadians(lat))
}

// LatDegrees converts a north-south distance to a latitude delta.
func LatDegrees(meters float64) float64 {
	return meters / metersPerDegreeLat
}

// LngDegrees converts an east-west distance at lat to a longitude delta.
func LngDegrees(meters, lat float64) float64 {
	return meters / MetersPerDegreeLng(lat)
}

// Midpoint returns the planar midpoint of a and b.
func Midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a.Lon() + b.Lon()) / 2, (a.Lat() + b.Lat()) / 2}
}

// Translate offsets p by the given degree deltas.
func Translate(p orb.Point, dLng, dLat float64) orb.Point {
	return orb.Point{p.Lon() + dLng, p.Lat() + dLat}
}
