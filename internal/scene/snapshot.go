package scene

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geometry"
)

// Snapshot is the plain-data form of a scene: everything needed to rebuild
// it and nothing that can be derived. It is the input of the share-link
// codec and the report generator.
type Snapshot struct {
	Camera       Camera              `json:"camera" yaml:"camera"`
	Fireworks    []FireworkRecord    `json:"fireworks" yaml:"fireworks"`
	Custom       []CustomRecord      `json:"custom" yaml:"custom"`
	Audiences    []RectangleRecord   `json:"audiences" yaml:"audiences"`
	Measurements []MeasurementRecord `json:"measurements" yaml:"measurements"`
	Restricted   []RectangleRecord   `json:"restricted" yaml:"restricted"`

	ShowHeight      bool   `json:"showHeight" yaml:"showHeight"`
	MeasurementUnit Unit   `json:"measurementUnit,omitempty" yaml:"measurementUnit,omitempty"`
	ProjectName     string `json:"projectName,omitempty" yaml:"projectName,omitempty"`
	SafetyDistance  int    `json:"safetyDistance,omitempty" yaml:"safetyDistance,omitempty"`
}

// FireworkRecord is a firework in a Snapshot.
type FireworkRecord struct {
	ID       string    `json:"id" yaml:"id"`
	Number   int       `json:"number" yaml:"number"`
	Position orb.Point `json:"position" yaml:"position"`
	Caliber  float64   `json:"caliber" yaml:"caliber"`
	Label    string    `json:"label,omitempty" yaml:"label,omitempty"`
	Color    string    `json:"color,omitempty" yaml:"color,omitempty"`
}

// CustomRecord is a custom pin in a Snapshot.
type CustomRecord struct {
	ID          string    `json:"id" yaml:"id"`
	Number      int       `json:"number" yaml:"number"`
	Position    orb.Point `json:"position" yaml:"position"`
	Label       string    `json:"label,omitempty" yaml:"label,omitempty"`
	Color       string    `json:"color,omitempty" yaml:"color,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Emoji       string    `json:"emoji,omitempty" yaml:"emoji,omitempty"`
}

// RectangleRecord is an audience or restricted zone in a Snapshot.
type RectangleRecord struct {
	ID      string       `json:"id" yaml:"id"`
	Number  int          `json:"number" yaml:"number"`
	Corners [4]orb.Point `json:"corners" yaml:"corners"`
	Label   string       `json:"label,omitempty" yaml:"label,omitempty"`
	Color   string       `json:"color,omitempty" yaml:"color,omitempty"`
}

// MeasurementRecord is a measurement line in a Snapshot.
type MeasurementRecord struct {
	ID     string       `json:"id" yaml:"id"`
	Number int          `json:"number" yaml:"number"`
	Points [2]orb.Point `json:"points" yaml:"points"`
	Label  string       `json:"label,omitempty" yaml:"label,omitempty"`
	Color  string       `json:"color,omitempty" yaml:"color,omitempty"`
}

// EmptySnapshot is the default scene used when nothing can be loaded.
func EmptySnapshot() Snapshot {
	s := DefaultSettings()
	return Snapshot{
		Camera:          DefaultCamera(),
		Fireworks:       []FireworkRecord{},
		Custom:          []CustomRecord{},
		Audiences:       []RectangleRecord{},
		Measurements:    []MeasurementRecord{},
		Restricted:      []RectangleRecord{},
		MeasurementUnit: s.Unit,
		SafetyDistance:  s.SafetyDistance,
	}
}

// Settings returns the settings carried by the snapshot, with defaults for
// missing or unrecognised values.
func (snap Snapshot) Settings() Settings {
	s := DefaultSettings()
	if u, err := ParseUnit(string(snap.MeasurementUnit)); err == nil {
		s.Unit = u
	}
	if ValidSafetyDistance(snap.SafetyDistance) {
		s.SafetyDistance = snap.SafetyDistance
	}
	s.ProjectName = snap.ProjectName
	s.ShowHeight = snap.ShowHeight
	return s
}

// Entities rebuilds full entities from the snapshot with derived fields
// computed. Rectangle corners are normalized, missing ids are generated,
// and each scope is renumbered densely by its stored numbers.
func (snap Snapshot) Entities() ([]annotation.Entity, error) {
	settings := snap.Settings()
	var out []annotation.Entity

	for _, r := range snap.Fireworks {
		out = append(out, annotation.Entity{
			ID: r.ID, Kind: annotation.KindFirework, Number: r.Number,
			Label: r.Label, Color: r.Color, Anchor: r.Position, CaliberInches: r.Caliber,
		})
	}
	for _, r := range snap.Custom {
		out = append(out, annotation.Entity{
			ID: r.ID, Kind: annotation.KindCustom, Number: r.Number,
			Label: r.Label, Color: r.Color, Anchor: r.Position,
			Description: r.Description, Emoji: r.Emoji,
		})
	}
	for _, r := range snap.Audiences {
		out = append(out, rectangleEntity(annotation.KindAudience, r))
	}
	for _, r := range snap.Restricted {
		out = append(out, rectangleEntity(annotation.KindRestricted, r))
	}
	for _, r := range snap.Measurements {
		out = append(out, annotation.Entity{
			ID: r.ID, Kind: annotation.KindMeasurement, Number: r.Number,
			Label: r.Label, Color: r.Color, Points: r.Points,
		})
	}

	seen := make(map[string]bool, len(out))
	scopes := make(map[annotation.Scope][]*annotation.Entity)
	for i := range out {
		e := &out[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate annotation id %q", e.ID)
		}
		seen[e.ID] = true
		if e.Number < 1 {
			return nil, fmt.Errorf("%s: number %d is not positive", e.ID, e.Number)
		}
		if e.Color == "" {
			e.Color = defaultColors[e.Kind]
		}
		if err := annotation.Validate(*e); err != nil {
			return nil, err
		}
		geometry.Refresh(e, float64(settings.SafetyDistance))
		scopes[e.Kind.Scope()] = append(scopes[e.Kind.Scope()], e)
	}
	for _, members := range scopes {
		annotation.Renumber(members)
	}

	SortEntities(out)
	return out, nil
}

func rectangleEntity(kind annotation.Kind, r RectangleRecord) annotation.Entity {
	return annotation.Entity{
		ID: r.ID, Kind: kind, Number: r.Number,
		Label: r.Label, Color: r.Color, Corners: geometry.NormalizeCorners(r.Corners),
	}
}

// Snapshot captures the current scene.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	settings, camera := s.settings, s.camera
	s.mu.Unlock()

	snap := EmptySnapshot()
	snap.Camera = camera
	snap.ShowHeight = settings.ShowHeight
	snap.MeasurementUnit = settings.Unit
	snap.ProjectName = settings.ProjectName
	snap.SafetyDistance = settings.SafetyDistance

	for _, e := range s.List() {
		switch e.Kind {
		case annotation.KindFirework:
			snap.Fireworks = append(snap.Fireworks, FireworkRecord{
				ID: e.ID, Number: e.Number, Position: e.Anchor,
				Caliber: e.CaliberInches, Label: e.Label, Color: e.Color,
			})
		case annotation.KindCustom:
			snap.Custom = append(snap.Custom, CustomRecord{
				ID: e.ID, Number: e.Number, Position: e.Anchor, Label: e.Label,
				Color: e.Color, Description: e.Description, Emoji: e.Emoji,
			})
		case annotation.KindAudience:
			snap.Audiences = append(snap.Audiences, RectangleRecord{
				ID: e.ID, Number: e.Number, Corners: e.Corners, Label: e.Label, Color: e.Color,
			})
		case annotation.KindRestricted:
			snap.Restricted = append(snap.Restricted, RectangleRecord{
				ID: e.ID, Number: e.Number, Corners: e.Corners, Label: e.Label, Color: e.Color,
			})
		case annotation.KindMeasurement:
			snap.Measurements = append(snap.Measurements, MeasurementRecord{
				ID: e.ID, Number: e.Number, Points: e.Points, Label: e.Label, Color: e.Color,
			})
		}
	}
	return snap
}

// ErrInvalidSnapshot wraps every Restore failure.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Restore replaces the whole scene with snap. On error the store is left
// untouched.
func (s *Store) Restore(snap Snapshot) error {
	entities, err := snap.Entities()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	s.mu.Lock()
	old := s.idsLocked(func(*annotation.Entity) bool { return true })
	s.entities = make(map[string]*annotation.Entity, len(entities))
	ids := make([]string, 0, len(entities))
	for i := range entities {
		e := entities[i]
		s.entities[e.ID] = &e
		ids = append(ids, e.ID)
	}
	s.settings = snap.Settings()
	s.camera = snap.Camera
	s.mu.Unlock()

	s.logger.Info("scene restored", "annotations", len(ids))
	s.notify(Change{Kind: ChangeCleared, IDs: old}, Change{Kind: ChangeRestored, IDs: ids})
	return nil
}
