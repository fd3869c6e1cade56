package editor

import (
	"context"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/humastar"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/service"
)

// MapEvent is the browser event carrying one Op.
const MapEvent = "pyro-map"

var scopeOrder = []annotation.Scope{
	annotation.ScopeMarkers,
	annotation.ScopeAudience,
	annotation.ScopeRestricted,
	annotation.ScopeMeasurement,
}

// AnnotationRow is the data of the "annotation-row" template.
type AnnotationRow struct {
	ID    string
	Kind  string
	Name  string
	Text  string
	Color string
}

// PaletteCard is the data of the "palette-item" template.
type PaletteCard struct {
	ID    string
	Kind  string
	Color string
	Emoji string
	Name  string
}

// Events streams map ops and side-panel updates to one browser. On connect
// the whole scene is repainted so the new map starts complete.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		ops := h.deps.Surface.Subscribe()
		defer ops.Close()
		events := h.deps.Bus.Subscribe()
		defer h.deps.Bus.Unsubscribe(events)

		if m := h.deps.Metrics; m != nil {
			m.EditorClients.Inc()
			defer m.EditorClients.Dec()
		}
		h.logger.Info("editor connected")
		defer h.logger.Info("editor disconnected")

		sse.Patch(h.renderAnnotations(), "#annotation-list")
		sse.Patch(h.renderPalette(), "#palette")
		sse.Signals(settingsSignals(h.deps.Store.Settings()))
		h.deps.Binder.Reset()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ops.Ready():
				if !ok {
					return
				}
				for _, op := range ops.Take() {
					if err := sse.Dispatch(MapEvent, op); err != nil {
						return
					}
				}
			case ev := <-events:
				h.forward(sse, ev)
			}
		}
	}), nil
}

func (h *Handler) forward(sse humastar.SSE, ev service.Event) {
	switch ev.Resource {
	case service.ResourceScene:
		sse.Patch(h.renderAnnotations(), "#annotation-list")
		if ev.Action == string(scene.ChangeSettings) || ev.Action == string(scene.ChangeRestored) {
			sse.Signals(settingsSignals(h.deps.Store.Settings()))
		}
	case service.ResourcePalette:
		sse.Patch(h.renderPalette(), "#palette")
	}
}

func (h *Handler) renderAnnotations() string {
	entities := h.deps.Store.List()
	settings := h.deps.Store.Settings()

	// Side panel reads top to bottom in report order: fireworks and pins
	// interleaved by their shared numbers.
	rank := func(e annotation.Entity) int { return slices.Index(scopeOrder, e.Kind.Scope()) }
	slices.SortStableFunc(entities, func(a, b annotation.Entity) int {
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra - rb
		}
		return a.Number - b.Number
	})

	items := make([]any, 0, len(entities))
	for _, e := range entities {
		items = append(items, AnnotationRow{
			ID:    e.ID,
			Kind:  string(e.Kind),
			Name:  e.DisplayName(),
			Text:  scene.RenderLabelText(e, settings),
			Color: e.Color,
		})
	}
	return h.RenderList("annotation-row", items, "Nothing placed yet", "Drag a shell or zone onto the map")
}

func (h *Handler) renderPalette() string {
	palette := h.deps.Palette.List()
	items := make([]any, 0, len(palette))
	for _, p := range palette {
		items = append(items, PaletteCard{ID: p.ID, Kind: p.Kind, Color: p.Color, Emoji: p.Emoji, Name: p.Name})
	}
	return h.RenderList("palette-item", items, "Empty palette", "Add presets under /api/v1/palette")
}
