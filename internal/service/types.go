// Package service contains the supporting services of the editor: the
// palette of placeable presets and the change event bus.
package service

import (
	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geomath"
	"github.com/joeblew999/plat-pyro/internal/scene"
)

// PaletteItem is a preset the user drags from the palette onto the map.
// Huma reads the tags for OpenAPI and validation; yaml tags describe
// palette.yaml.
type PaletteItem struct {
	ID            string  `json:"id,omitempty" yaml:"id" doc:"Unique palette identifier" example:"3_shell"`
	Name          string  `json:"name" yaml:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"3\" Shell"`
	Kind          string  `json:"kind" yaml:"kind" required:"true" enum:"firework,audience,restricted,measurement,custom" doc:"Annotation kind placed by this preset" example:"firework"`
	Color         string  `json:"color,omitempty" yaml:"color,omitempty" doc:"Color (CSS)" example:"#ff4500"`
	Label         string  `json:"label,omitempty" yaml:"label,omitempty" maxLength:"100" doc:"Initial label"`
	CaliberInches float64 `json:"caliberInches,omitempty" yaml:"caliberInches,omitempty" minimum:"0" maximum:"24" doc:"Shell caliber in inches (fireworks)" example:"3"`
	WidthFeet     float64 `json:"widthFeet,omitempty" yaml:"widthFeet,omitempty" minimum:"0" doc:"Initial width in feet (zones)" example:"100"`
	HeightFeet    float64 `json:"heightFeet,omitempty" yaml:"heightFeet,omitempty" minimum:"0" doc:"Initial height in feet (zones)" example:"50"`
	LengthFeet    float64 `json:"lengthFeet,omitempty" yaml:"lengthFeet,omitempty" minimum:"0" doc:"Initial length in feet (measurements)" example:"100"`
	Description   string  `json:"description,omitempty" yaml:"description,omitempty" maxLength:"500" doc:"Description (custom pins)"`
	Emoji         string  `json:"emoji,omitempty" yaml:"emoji,omitempty" maxLength:"16" doc:"Icon (custom pins)"`
}

// PlaceOptions converts the preset into store placement options.
func (p PaletteItem) PlaceOptions() scene.PlaceOptions {
	return scene.PlaceOptions{
		Label:         p.Label,
		Color:         p.Color,
		CaliberInches: p.CaliberInches,
		WidthMeters:   geomath.FeetToMeters(p.WidthFeet),
		HeightMeters:  geomath.FeetToMeters(p.HeightFeet),
		LengthMeters:  geomath.FeetToMeters(p.LengthFeet),
		Description:   p.Description,
		Emoji:         p.Emoji,
	}
}

// AnnotationKind returns the parsed kind.
func (p PaletteItem) AnnotationKind() (annotation.Kind, error) {
	return annotation.ParseKind(p.Kind)
}

// paletteFile is the on-disk shape of palette.yaml.
type paletteFile struct {
	Items []PaletteItem `yaml:"items"`
}

// DefaultPalette is used when no palette.yaml exists.
func DefaultPalette() []PaletteItem {
	items := []PaletteItem{}
	for _, cal := range []float64{1.75, 2, 2.5, 3, 4, 5, 6, 8} {
		name := scene.FormatCaliber(cal) + " Shell"
		items = append(items, PaletteItem{
			ID:            generateID(name),
			Name:          name,
			Kind:          string(annotation.KindFirework),
			CaliberInches: cal,
		})
	}
	return append(items,
		PaletteItem{ID: "audience", Name: "Audience Area", Kind: string(annotation.KindAudience), WidthFeet: 100, HeightFeet: 50},
		PaletteItem{ID: "restricted", Name: "Restricted Zone", Kind: string(annotation.KindRestricted), WidthFeet: 50, HeightFeet: 50},
		PaletteItem{ID: "measure", Name: "Measure", Kind: string(annotation.KindMeasurement), LengthFeet: 100},
		PaletteItem{ID: "first_aid", Name: "First Aid", Kind: string(annotation.KindCustom), Emoji: "🚑", Label: "First Aid"},
		PaletteItem{ID: "extinguisher", Name: "Extinguisher", Kind: string(annotation.KindCustom), Emoji: "🧯", Label: "Extinguisher"},
		PaletteItem{ID: "pin", Name: "Pin", Kind: string(annotation.KindCustom), Emoji: "📍"},
	)
}
