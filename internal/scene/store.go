// Package scene holds the authoritative set of annotations on a layout
// together with the scene-wide settings, and decides when derived values
// have to be recomputed.
package scene

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geomath"
	"github.com/joeblew999/plat-pyro/internal/geometry"
)

// ChangeKind describes what happened to the scene.
type ChangeKind string

const (
	ChangePlaced     ChangeKind = "placed"
	ChangeUpdated    ChangeKind = "updated"
	ChangeRemoved    ChangeKind = "removed"
	ChangeRenumbered ChangeKind = "renumbered"
	ChangeSettings   ChangeKind = "settings"
	ChangeCamera     ChangeKind = "camera"
	ChangeCleared    ChangeKind = "cleared"
	ChangeRestored   ChangeKind = "restored"
)

// Change is delivered to observers after a mutation completes. IDs lists
// the entities whose geometry or display text changed.
type Change struct {
	Kind ChangeKind
	IDs  []string
}

// Observer receives changes synchronously, after the store lock is released.
type Observer func(Change)

// Recorder counts store activity. observability.Metrics implements it.
type Recorder interface {
	AnnotationPlaced(kind string)
	AnnotationRemoved(kind string)
	GeometryUpdated(kind string)
	SettingChanged(name string)
}

type nopRecorder struct{}

func (nopRecorder) AnnotationPlaced(string)  {}
func (nopRecorder) AnnotationRemoved(string) {}
func (nopRecorder) GeometryUpdated(string)   {}
func (nopRecorder) SettingChanged(string)    {}

// PlaceOptions carries palette defaults for a new annotation. Zero values
// fall back to built-in defaults.
type PlaceOptions struct {
	Label         string
	Color         string
	CaliberInches float64
	WidthMeters   float64
	HeightMeters  float64
	LengthMeters  float64
	Description   string
	Emoji         string
}

// Default palette values.
const (
	DefaultCaliberInches     = 3.0
	DefaultAudienceWidthFt   = 100.0
	DefaultAudienceHeightFt  = 50.0
	DefaultRestrictedSizeFt  = 50.0
	DefaultMeasurementLength = 100.0
)

var defaultColors = map[annotation.Kind]string{
	annotation.KindFirework:    "#ff4500",
	annotation.KindAudience:    "#1e90ff",
	annotation.KindRestricted:  "#dc143c",
	annotation.KindMeasurement: "#ffd700",
	annotation.KindCustom:      "#9b59b6",
}

// Store is the scene store. All methods are safe for concurrent use, but
// each mutation runs to completion before the next starts.
type Store struct {
	mu        sync.Mutex
	entities  map[string]*annotation.Entity
	settings  Settings
	camera    Camera
	minSize   float64
	newID     func() string
	logger    *slog.Logger
	metrics   Recorder
	observers []Observer
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for stale-event reports.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.metrics = r }
}

// WithIDGenerator replaces uuid generation, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithMinSizeFeet sets the smallest rectangle side.
func WithMinSizeFeet(feet float64) Option {
	return func(s *Store) { s.minSize = geomath.FeetToMeters(feet) }
}

// NewStore creates an empty scene.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entities: make(map[string]*annotation.Entity),
		settings: DefaultSettings(),
		camera:   DefaultCamera(),
		minSize:  geomath.FeetToMeters(geometry.DefaultMinSizeFeet),
		newID:    uuid.NewString,
		logger:   slog.Default(),
		metrics:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer. Observers may call back into the store.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Store) notify(changes ...Change) {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, c := range changes {
		for _, o := range observers {
			o(c)
		}
	}
}

// Place creates a new annotation of kind at the given point and numbers it
// within its scope. Rectangles and segments are centered on at.
func (s *Store) Place(kind annotation.Kind, at orb.Point, opts PlaceOptions) (annotation.Entity, error) {
	if _, err := annotation.ParseKind(string(kind)); err != nil {
		return annotation.Entity{}, err
	}

	s.mu.Lock()
	e := annotation.Entity{
		ID:     s.newID(),
		Kind:   kind,
		Number: annotation.NextNumber(s.numbersLocked(kind.Scope())),
		Label:  opts.Label,
		Color:  opts.Color,
	}
	if e.Color == "" {
		e.Color = defaultColors[kind]
	}

	switch kind.Family() {
	case annotation.FamilyRadiusPoint:
		e.Anchor = at
		e.CaliberInches = opts.CaliberInches
		if e.CaliberInches <= 0 {
			e.CaliberInches = DefaultCaliberInches
		}
		if e.Label == "" {
			e.Label = FormatCaliber(e.CaliberInches) + " Shell"
		}
	case annotation.FamilyRectangle:
		w, h := opts.WidthMeters, opts.HeightMeters
		if w <= 0 || h <= 0 {
			w, h = defaultRectangleSize(kind)
		}
		e.Corners = geometry.RectangleAt(at, max(w, s.minSize), max(h, s.minSize))
		if e.Label == "" {
			e.Label = kind.Title()
		}
	case annotation.FamilySegment:
		length := opts.LengthMeters
		if length <= 0 {
			length = geomath.FeetToMeters(DefaultMeasurementLength)
		}
		e.Points = geometry.SegmentAt(at, length)
		if e.Label == "" {
			e.Label = kind.Title()
		}
	case annotation.FamilyBarePoint:
		e.Anchor = at
		e.Description = opts.Description
		e.Emoji = opts.Emoji
	}

	geometry.Refresh(&e, float64(s.settings.SafetyDistance))
	s.entities[e.ID] = &e
	s.mu.Unlock()

	s.metrics.AnnotationPlaced(string(kind))
	s.logger.Debug("annotation placed", "id", e.ID, "kind", kind, "number", e.Number)
	s.notify(Change{Kind: ChangePlaced, IDs: []string{e.ID}})
	return e, nil
}

func defaultRectangleSize(kind annotation.Kind) (float64, float64) {
	if kind == annotation.KindRestricted {
		return geomath.FeetToMeters(DefaultRestrictedSizeFt), geomath.FeetToMeters(DefaultRestrictedSizeFt)
	}
	return geomath.FeetToMeters(DefaultAudienceWidthFt), geomath.FeetToMeters(DefaultAudienceHeightFt)
}

// UpdateGeometry applies a drag to one annotation. Unknown ids and invalid
// handles are logged and ignored; the second result reports whether
// anything changed.
func (s *Store) UpdateGeometry(id string, d geometry.Drag) (annotation.Entity, bool) {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("drag for unknown annotation ignored", "id", id)
		return annotation.Entity{}, false
	}

	updated, err := geometry.Apply(*e, d, s.minSize)
	if err != nil {
		current := *e
		s.mu.Unlock()
		s.logger.Warn("drag rejected", "id", id, "error", err)
		return current, false
	}
	*e = updated
	s.mu.Unlock()

	s.metrics.GeometryUpdated(string(updated.Kind))
	s.notify(Change{Kind: ChangeUpdated, IDs: []string{id}})
	return updated, true
}

// Edit changes the non-geometric fields of an annotation. A new caliber
// recomputes the fallout radius.
func (s *Store) Edit(id string, fn func(e *annotation.Entity)) (annotation.Entity, bool) {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("edit for unknown annotation ignored", "id", id)
		return annotation.Entity{}, false
	}

	edited := *e
	fn(&edited)
	// Identity and geometry are owned by the store and the drag engine.
	edited.ID, edited.Kind, edited.Number = e.ID, e.Kind, e.Number
	edited.Anchor, edited.Corners, edited.Points = e.Anchor, e.Corners, e.Points
	if edited.Kind.Family() == annotation.FamilyRadiusPoint {
		if edited.CaliberInches <= 0 {
			edited.CaliberInches = e.CaliberInches
		}
		if edited.Label == FormatCaliber(e.CaliberInches)+" Shell" {
			edited.Label = FormatCaliber(edited.CaliberInches) + " Shell"
		}
	}
	geometry.Refresh(&edited, float64(s.settings.SafetyDistance))
	*e = edited
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdated, IDs: []string{id}})
	return edited, true
}

// Remove deletes an annotation and renumbers the rest of its scope.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("remove for unknown annotation ignored", "id", id)
		return false
	}
	delete(s.entities, id)
	renumbered := s.renumberLocked(e.Kind.Scope())
	s.mu.Unlock()

	s.metrics.AnnotationRemoved(string(e.Kind))
	s.logger.Debug("annotation removed", "id", id, "kind", e.Kind, "renumbered", len(renumbered))

	changes := []Change{{Kind: ChangeRemoved, IDs: []string{id}}}
	if len(renumbered) > 0 {
		changes = append(changes, Change{Kind: ChangeRenumbered, IDs: renumbered})
	}
	s.notify(changes...)
	return true
}

// renumberLocked makes a scope dense again and returns the ids whose
// number changed.
func (s *Store) renumberLocked(scope annotation.Scope) []string {
	members := s.scopeLocked(scope)
	before := make(map[string]int, len(members))
	for _, m := range members {
		before[m.ID] = m.Number
	}

	annotation.Renumber(members)

	var changed []string
	for _, m := range members {
		if before[m.ID] != m.Number {
			changed = append(changed, m.ID)
		}
	}
	return changed
}

func (s *Store) scopeLocked(scope annotation.Scope) []*annotation.Entity {
	var members []*annotation.Entity
	for _, e := range s.entities {
		if e.Kind.Scope() == scope {
			members = append(members, e)
		}
	}
	// Map order is random; settle ties deterministically before renumbering.
	slices.SortFunc(members, func(a, b *annotation.Entity) int {
		if a.Number != b.Number {
			return a.Number - b.Number
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return members
}

func (s *Store) numbersLocked(scope annotation.Scope) []int {
	var nums []int
	for _, e := range s.entities {
		if e.Kind.Scope() == scope {
			nums = append(nums, e.Number)
		}
	}
	return nums
}

// Get returns a copy of one annotation.
func (s *Store) Get(id string) (annotation.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return annotation.Entity{}, false
	}
	return *e, true
}

// List returns every annotation, grouped by kind in annotation.Kinds order
// and sorted by number within a kind.
func (s *Store) List() []annotation.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]annotation.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *e)
	}
	SortEntities(out)
	return out
}

// Len returns the number of annotations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

// SortEntities orders entities by kind (annotation.Kinds order) then number.
func SortEntities(list []annotation.Entity) {
	rank := func(k annotation.Kind) int { return slices.Index(annotation.Kinds, k) }
	slices.SortStableFunc(list, func(a, b annotation.Entity) int {
		if ra, rb := rank(a.Kind), rank(b.Kind); ra != rb {
			return ra - rb
		}
		return a.Number - b.Number
	})
}

// Settings returns the current scene settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetUnit changes the display unit. Every label changes with it.
func (s *Store) SetUnit(u Unit) error {
	if _, err := ParseUnit(string(u)); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings.Unit = u
	ids := s.idsLocked(func(*annotation.Entity) bool { return true })
	s.mu.Unlock()

	s.metrics.SettingChanged(SettingUnit)
	s.notify(Change{Kind: ChangeSettings, IDs: ids})
	return nil
}

// SetSafetyDistance changes the radius multiplier and recomputes the
// fallout radius of every firework before returning.
func (s *Store) SetSafetyDistance(d int) error {
	if !ValidSafetyDistance(d) {
		return fmt.Errorf("%w: safety distance %d", ErrInvalidSetting, d)
	}
	s.mu.Lock()
	s.settings.SafetyDistance = d
	ids := s.idsLocked(isFirework)
	for _, id := range ids {
		geometry.Refresh(s.entities[id], float64(d))
	}
	s.mu.Unlock()

	s.metrics.SettingChanged(SettingSafetyDistance)
	s.notify(Change{Kind: ChangeSettings, IDs: ids})
	return nil
}

// SetProjectName changes the project name.
func (s *Store) SetProjectName(name string) {
	s.mu.Lock()
	s.settings.ProjectName = name
	s.mu.Unlock()

	s.metrics.SettingChanged(SettingProjectName)
	s.notify(Change{Kind: ChangeSettings})
}

// SetShowHeight toggles height volumes on fireworks.
func (s *Store) SetShowHeight(show bool) {
	s.mu.Lock()
	s.settings.ShowHeight = show
	ids := s.idsLocked(isFirework)
	s.mu.Unlock()

	s.metrics.SettingChanged(SettingShowHeight)
	s.notify(Change{Kind: ChangeSettings, IDs: ids})
}

// SetSetting sets a setting by its wire name. Values may be the loose
// types produced by JSON decoding.
func (s *Store) SetSetting(name string, value any) error {
	switch name {
	case SettingUnit:
		str, ok := asString(value)
		if !ok {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidSetting, name)
		}
		u, err := ParseUnit(str)
		if err != nil {
			return err
		}
		return s.SetUnit(u)
	case SettingSafetyDistance:
		d, ok := asInt(value)
		if !ok {
			return fmt.Errorf("%w: %s must be an integer", ErrInvalidSetting, name)
		}
		return s.SetSafetyDistance(d)
	case SettingProjectName:
		str, ok := asString(value)
		if !ok {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidSetting, name)
		}
		s.SetProjectName(str)
		return nil
	case SettingShowHeight:
		b, ok := asBool(value)
		if !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidSetting, name)
		}
		s.SetShowHeight(b)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownSetting, name)
}

// ApplySettings replaces all settings at once, as a settings dialog save.
func (s *Store) ApplySettings(next Settings) error {
	if _, err := ParseUnit(string(next.Unit)); err != nil {
		return err
	}
	if !ValidSafetyDistance(next.SafetyDistance) {
		return fmt.Errorf("%w: safety distance %d", ErrInvalidSetting, next.SafetyDistance)
	}

	s.mu.Lock()
	s.settings = next
	ids := s.idsLocked(func(*annotation.Entity) bool { return true })
	for _, id := range ids {
		geometry.Refresh(s.entities[id], float64(next.SafetyDistance))
	}
	s.mu.Unlock()

	s.metrics.SettingChanged("all")
	s.notify(Change{Kind: ChangeSettings, IDs: ids})
	return nil
}

func isFirework(e *annotation.Entity) bool {
	return e.Kind == annotation.KindFirework
}

func (s *Store) idsLocked(match func(*annotation.Entity) bool) []string {
	var ids []string
	for id, e := range s.entities {
		if match(e) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Camera returns the stored map viewpoint.
func (s *Store) Camera() Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// SetCamera stores the map viewpoint.
func (s *Store) SetCamera(c Camera) {
	s.mu.Lock()
	s.camera = c
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeCamera})
}

// Clear removes every annotation. Numbering restarts at 1 in every scope.
func (s *Store) Clear() {
	s.mu.Lock()
	ids := s.idsLocked(func(*annotation.Entity) bool { return true })
	s.entities = make(map[string]*annotation.Entity)
	s.mu.Unlock()

	s.logger.Debug("scene cleared", "removed", len(ids))
	s.notify(Change{Kind: ChangeCleared, IDs: ids})
}
