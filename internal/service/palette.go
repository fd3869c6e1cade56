package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-pyro/internal/annotation"
)

var (
	ErrPaletteNotFound  = errors.New("palette item not found")
	ErrPaletteDuplicate = errors.New("palette item already exists")
	ErrPaletteInvalid   = errors.New("invalid palette item")
)

// PaletteService manages the placeable presets, persisted to
// <dataDir>/palette.yaml.
type PaletteService struct {
	dataDir string
	items   map[string]PaletteItem
	bus     *EventBus
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewPaletteService loads palette.yaml from dataDir, or the built-in
// palette when the file is missing or unreadable. bus may be nil.
func NewPaletteService(dataDir string, bus *EventBus, logger *slog.Logger) *PaletteService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PaletteService{
		dataDir: dataDir,
		items:   make(map[string]PaletteItem),
		bus:     bus,
		logger:  logger,
	}
	s.loadFromDisk()
	return s
}

// List returns all presets ordered by kind, then caliber, then name.
func (s *PaletteService) List() []PaletteItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]PaletteItem, 0, len(s.items))
	for _, v := range s.items {
		result = append(result, v)
	}
	slices.SortFunc(result, func(a, b PaletteItem) int {
		ka := slices.Index(annotation.Kinds, annotation.Kind(a.Kind))
		kb := slices.Index(annotation.Kinds, annotation.Kind(b.Kind))
		switch {
		case ka != kb:
			return ka - kb
		case a.CaliberInches < b.CaliberInches:
			return -1
		case a.CaliberInches > b.CaliberInches:
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// Get returns a preset by ID.
func (s *PaletteService) Get(id string) (PaletteItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	return item, ok
}

// Create adds a preset. The ID is derived from the name when empty.
func (s *PaletteService) Create(item PaletteItem) (PaletteItem, error) {
	if err := validateItem(item); err != nil {
		return PaletteItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = generateID(item.Name)
	}
	if item.ID == "" {
		return PaletteItem{}, fmt.Errorf("%w: name %q gives an empty id", ErrPaletteInvalid, item.Name)
	}
	if _, exists := s.items[item.ID]; exists {
		return PaletteItem{}, fmt.Errorf("%w: %q", ErrPaletteDuplicate, item.ID)
	}

	s.items[item.ID] = item
	if err := s.saveToDisk(); err != nil {
		delete(s.items, item.ID)
		return PaletteItem{}, err
	}
	s.publish("created", item.ID)
	return item, nil
}

// Update replaces a preset by ID.
func (s *PaletteService) Update(id string, item PaletteItem) (PaletteItem, error) {
	if err := validateItem(item); err != nil {
		return PaletteItem{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.items[id]
	if !exists {
		return PaletteItem{}, fmt.Errorf("%w: %q", ErrPaletteNotFound, id)
	}

	item.ID = id
	s.items[id] = item
	if err := s.saveToDisk(); err != nil {
		s.items[id] = prev
		return PaletteItem{}, err
	}
	s.publish("updated", id)
	return item, nil
}

// Delete removes a preset by ID.
func (s *PaletteService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.items[id]
	if !exists {
		return fmt.Errorf("%w: %q", ErrPaletteNotFound, id)
	}

	delete(s.items, id)
	if err := s.saveToDisk(); err != nil {
		s.items[id] = prev
		return err
	}
	s.publish("deleted", id)
	return nil
}

func (s *PaletteService) publish(action, id string) {
	if s.bus != nil {
		s.bus.Publish(Event{Resource: ResourcePalette, Action: action, IDs: []string{id}})
	}
}

func validateItem(item PaletteItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrPaletteInvalid)
	}
	if _, err := annotation.ParseKind(item.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrPaletteInvalid, err)
	}
	if item.CaliberInches < 0 || item.WidthFeet < 0 || item.HeightFeet < 0 || item.LengthFeet < 0 {
		return fmt.Errorf("%w: sizes must not be negative", ErrPaletteInvalid)
	}
	return nil
}

// configFile returns the path to the palette file.
func (s *PaletteService) configFile() string {
	return filepath.Join(s.dataDir, "palette.yaml")
}

// loadFromDisk loads presets from disk, falling back to DefaultPalette.
func (s *PaletteService) loadFromDisk() {
	defaults := func() {
		for _, item := range DefaultPalette() {
			s.items[item.ID] = item
		}
	}

	data, err := os.ReadFile(s.configFile())
	if err != nil {
		defaults() // File doesn't exist yet
		return
	}

	var file paletteFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		s.logger.Warn("palette file unreadable, using built-in palette", "path", s.configFile(), "error", err)
		defaults()
		return
	}

	for _, item := range file.Items {
		if item.ID == "" {
			item.ID = generateID(item.Name)
		}
		if err := validateItem(item); err != nil {
			s.logger.Warn("palette item skipped", "id", item.ID, "error", err)
			continue
		}
		s.items[item.ID] = item
	}
}

// saveToDisk persists presets to disk.
func (s *PaletteService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	file := paletteFile{Items: make([]PaletteItem, 0, len(s.items))}
	for _, item := range s.items {
		file.Items = append(file.Items, item)
	}
	slices.SortFunc(file.Items, func(a, b PaletteItem) int { return strings.Compare(a.ID, b.ID) })

	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	// Remove any characters that aren't alphanumeric or underscore
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
