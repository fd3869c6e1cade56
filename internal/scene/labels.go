package scene

import (
	"fmt"
	"math"
	"strings"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geomath"
)

// FormatDistance renders a length in the display unit: whole feet, or
// meters to one decimal.
func FormatDistance(meters float64, unit Unit) string {
	if unit == UnitMeters {
		return fmt.Sprintf("%.1f m", meters)
	}
	return fmt.Sprintf("%.0f ft", math.Round(geomath.MetersToFeet(meters)))
}

// FormatCaliber renders a shell size, e.g. 3 -> `3"`, 2.5 -> `2.5"`.
func FormatCaliber(inches float64) string {
	return fmt.Sprintf("%s\"", trimFloat(inches))
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// RenderLabelText returns the text shown next to e on the map.
func RenderLabelText(e annotation.Entity, s Settings) string {
	switch e.Kind {
	case annotation.KindFirework:
		label := e.Label
		if label == "" {
			label = FormatCaliber(e.CaliberInches) + " Shell"
		}
		return fmt.Sprintf("#%d %s · %s", e.Number, label, FormatDistance(e.RadiusMeters, s.Unit))
	case annotation.KindAudience, annotation.KindRestricted:
		return fmt.Sprintf("%s · %s × %s", titleOr(e),
			FormatDistance(e.WidthMeters, s.Unit), FormatDistance(e.HeightMeters, s.Unit))
	case annotation.KindMeasurement:
		return FormatDistance(e.DistanceMeters, s.Unit)
	case annotation.KindCustom:
		parts := []string{fmt.Sprintf("#%d", e.Number)}
		if e.Emoji != "" {
			parts = append(parts, e.Emoji)
		}
		if e.Label != "" {
			parts = append(parts, e.Label)
		}
		return strings.Join(parts, " ")
	}
	return e.DisplayName()
}

// DetailText is the measurement column used by reports.
func DetailText(e annotation.Entity, s Settings) string {
	switch e.Kind.Family() {
	case annotation.FamilyRadiusPoint:
		return FormatCaliber(e.CaliberInches) + " shell, radius " + FormatDistance(e.RadiusMeters, s.Unit)
	case annotation.FamilyRectangle:
		return FormatDistance(e.WidthMeters, s.Unit) + " × " + FormatDistance(e.HeightMeters, s.Unit)
	case annotation.FamilySegment:
		return FormatDistance(e.DistanceMeters, s.Unit)
	}
	return e.Description
}

func titleOr(e annotation.Entity) string {
	if e.Label != "" && e.Label != e.Kind.Title() {
		return fmt.Sprintf("%s #%d", e.Label, e.Number)
	}
	return e.DisplayName()
}
