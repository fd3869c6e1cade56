// Package annotation defines the entities that can be placed on a display
// layout and the numbering rules that label them.
package annotation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Kind identifies an annotation type. It never changes after creation.
type Kind string

const (
	KindFirework    Kind = "firework"
	KindAudience    Kind = "audience"
	KindRestricted  Kind = "restricted"
	KindMeasurement Kind = "measurement"
	KindCustom      Kind = "custom"
)

// Kinds lists every annotation kind in display order.
var Kinds = []Kind{KindFirework, KindCustom, KindAudience, KindRestricted, KindMeasurement}

// ErrUnknownKind is returned by ParseKind.
var ErrUnknownKind = errors.New("unknown annotation kind")

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindFirework, KindAudience, KindRestricted, KindMeasurement, KindCustom:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Family groups kinds that share a geometry shape.
type Family int

const (
	FamilyRadiusPoint Family = iota
	FamilyRectangle
	FamilySegment
	FamilyBarePoint
)

// Family returns the geometry family of k.
func (k Kind) Family() Family {
	switch k {
	case KindAudience, KindRestricted:
		return FamilyRectangle
	case KindMeasurement:
		return FamilySegment
	case KindCustom:
		return FamilyBarePoint
	default:
		return FamilyRadiusPoint
	}
}

// Title is the capitalised display name of k.
func (k Kind) Title() string {
	switch k {
	case KindFirework:
		return "Firework"
	case KindAudience:
		return "Audience"
	case KindRestricted:
		return "Restricted"
	case KindMeasurement:
		return "Measurement"
	case KindCustom:
		return "Custom"
	}
	return string(k)
}

// Scope is a numbering sequence. Fireworks and custom pins share one scope
// so they never show the same number; the zone and measurement kinds each
// count on their own.
type Scope string

const (
	ScopeMarkers     Scope = "markers"
	ScopeAudience    Scope = "audience"
	ScopeRestricted  Scope = "restricted"
	ScopeMeasurement Scope = "measurement"
)

// Scope returns the numbering scope of k.
func (k Kind) Scope() Scope {
	switch k {
	case KindAudience:
		return ScopeAudience
	case KindRestricted:
		return ScopeRestricted
	case KindMeasurement:
		return ScopeMeasurement
	default:
		return ScopeMarkers
	}
}

// Entity is a single annotation. Which geometry fields are meaningful
// depends on Kind.Family:
//
//	radius-point  Anchor, CaliberInches, RadiusMeters
//	rectangle     Corners (SW, SE, NE, NW), WidthMeters, HeightMeters
//	segment       Points (start, end), DistanceMeters
//	bare-point    Anchor, Description, Emoji
//
// RadiusMeters, WidthMeters, HeightMeters and DistanceMeters are derived and
// only ever written by geometry.Refresh.
type Entity struct {
	ID     string `json:"id" yaml:"id"`
	Kind   Kind   `json:"kind" yaml:"kind"`
	Number int    `json:"number" yaml:"number"`
	Label  string `json:"label" yaml:"label"`
	Color  string `json:"color" yaml:"color"`

	Anchor        orb.Point    `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	CaliberInches float64      `json:"caliberInches,omitempty" yaml:"caliberInches,omitempty"`
	Corners       [4]orb.Point `json:"corners,omitempty" yaml:"corners,omitempty"`
	Points        [2]orb.Point `json:"points,omitempty" yaml:"points,omitempty"`
	Description   string       `json:"description,omitempty" yaml:"description,omitempty"`
	Emoji         string       `json:"emoji,omitempty" yaml:"emoji,omitempty"`

	RadiusMeters   float64 `json:"radiusMeters,omitempty" yaml:"radiusMeters,omitempty"`
	WidthMeters    float64 `json:"widthMeters,omitempty" yaml:"widthMeters,omitempty"`
	HeightMeters   float64 `json:"heightMeters,omitempty" yaml:"heightMeters,omitempty"`
	DistanceMeters float64 `json:"distanceMeters,omitempty" yaml:"distanceMeters,omitempty"`
}

// DisplayName is the short identifying title, e.g. "Firework #3".
func (e Entity) DisplayName() string {
	return fmt.Sprintf("%s #%d", e.Kind.Title(), e.Number)
}

// Validate reports structural problems that would break the store
// invariants. It does not look at derived fields.
func Validate(e Entity) error {
	if e.ID == "" {
		return errors.New("missing id")
	}
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	if e.Number < 1 {
		return fmt.Errorf("%s: number %d is not positive", e.ID, e.Number)
	}

	switch e.Kind.Family() {
	case FamilyRadiusPoint:
		if e.CaliberInches <= 0 {
			return fmt.Errorf("%s: caliber %v is not positive", e.ID, e.CaliberInches)
		}
	case FamilyRectangle:
		c := e.Corners
		if c[0].Lat() != c[1].Lat() || c[2].Lat() != c[3].Lat() ||
			c[0].Lon() != c[3].Lon() || c[1].Lon() != c[2].Lon() ||
			c[0].Lon() > c[2].Lon() || c[0].Lat() > c[2].Lat() {
			return fmt.Errorf("%s: corners are not an axis-aligned SW/SE/NE/NW rectangle", e.ID)
		}
	}
	return nil
}
