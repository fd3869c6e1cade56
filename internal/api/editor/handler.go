// Package editor contains the Datastar SSE handlers behind the map editor
// page. Browsers stream drawing ops from Events and post gestures back;
// both ends meet in a surface.Binder over a shared scene.Store.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/humastar"
	"github.com/joeblew999/plat-pyro/internal/observability"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/service"
	"github.com/joeblew999/plat-pyro/internal/sharelink"
	"github.com/joeblew999/plat-pyro/internal/surface"
	"github.com/joeblew999/plat-pyro/internal/templates"
)

// Deps are the collaborators of the editor handlers. Metrics may be nil.
type Deps struct {
	Store        *scene.Store
	Surface      *RemoteSurface
	Binder       *surface.Binder
	Palette      *service.PaletteService
	Bus          *service.EventBus
	Metrics      *observability.Metrics
	Renderer     *templates.Renderer
	ShareBaseURL string
	Logger       *slog.Logger
}

// Handler serves /api/v1/editor.
type Handler struct {
	humastar.Handler
	deps   Deps
	logger *slog.Logger
}

// NewHandler creates the editor handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Handler: humastar.Handler{Renderer: deps.Renderer},
		deps:    deps,
		logger:  logger.With("component", "editor"),
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("editor")
	huma.Get(api, "/api/v1/editor/events", h.Events, tags)
	huma.Post(api, "/api/v1/editor/drop", h.Drop, tags)
	huma.Post(api, "/api/v1/editor/drag", h.Drag, tags)
	huma.Post(api, "/api/v1/editor/contextmenu", h.ContextMenu, tags)
	huma.Post(api, "/api/v1/editor/viewport", h.Viewport, tags)
	huma.Put(api, "/api/v1/editor/settings", h.Settings, tags)
	huma.Post(api, "/api/v1/editor/share", h.Share, tags)
	huma.Post(api, "/api/v1/editor/load", h.Load, tags)
	huma.Post(api, "/api/v1/editor/clear", h.Clear, tags)
}

// Drop places an annotation where a palette item was dropped.
//
// Signals: paletteid or kind, x, y (viewport pixels).
func (h *Handler) Drop(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	kindName := signals.String("kind")
	var opts scene.PlaceOptions
	if id := signals.String("paletteid"); id != "" {
		item, ok := h.deps.Palette.Get(id)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("palette item %q not found", id))
		}
		kindName, opts = item.Kind, item.PlaceOptions()
	}
	kind, err := annotation.ParseKind(kindName)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	at := surface.ScreenPoint{X: signals.Float("x"), Y: signals.Float("y")}
	e, err := h.deps.Binder.Drop(kind, at, opts)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	h.logger.Debug("annotation dropped", "id", e.ID, "kind", e.Kind, "number", e.Number)
	return nil, nil
}

// Drag moves a handle. Signals: key, lng, lat, end.
func (h *Handler) Drag(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	handle, err := h.handle(signals.String("key"))
	if err != nil {
		return nil, err
	}
	handle.Drag(orb.Point{signals.Float("lng"), signals.Float("lat")}, signals.Bool("end"))
	return nil, nil
}

// ContextMenu removes the annotation owning a handle. Signals: key.
func (h *Handler) ContextMenu(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	handle, err := h.handle(signals.String("key"))
	if err != nil {
		return nil, err
	}
	handle.ContextMenu()
	return nil, nil
}

func (h *Handler) handle(key string) (*RemoteHandle, error) {
	if key == "" {
		return nil, huma.Error400BadRequest("key is required")
	}
	handle, ok := h.deps.Surface.Handle(key)
	if !ok {
		// Usually a gesture racing a removal from another browser.
		return nil, huma.Error404NotFound(fmt.Sprintf("handle %q not found", key))
	}
	return handle, nil
}

// Viewport records the browser camera and viewport size.
//
// Signals: lng, lat, zoom, bearing, pitch, width, height.
func (h *Handler) Viewport(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	c := scene.Camera{
		Center:  orb.Point{signals.Float("lng"), signals.Float("lat")},
		Zoom:    signals.Float("zoom"),
		Bearing: signals.Float("bearing"),
		Pitch:   signals.Float("pitch"),
	}
	h.deps.Surface.Viewport(c, signals.Float("width"), signals.Float("height"))
	h.deps.Store.SetCamera(c)
	return nil, nil
}

// settingSignals maps Datastar signal names (lowercased by data-bind) to
// setting names.
var settingSignals = map[string]string{
	"measurementunit": scene.SettingUnit,
	"safetydistance":  scene.SettingSafetyDistance,
	"projectname":     scene.SettingProjectName,
	"showheight":      scene.SettingShowHeight,
}

func settingsSignals(s scene.Settings) map[string]any {
	return map[string]any{
		"measurementunit": string(s.Unit),
		"safetydistance":  strconv.Itoa(s.SafetyDistance),
		"projectname":     s.ProjectName,
		"showheight":      s.ShowHeight,
	}
}

// Settings applies the settings signals that differ from the store.
func (h *Handler) Settings(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	return h.Stream(func(sse humastar.SSE) {
		current := settingsSignals(h.deps.Store.Settings())
		for signal, name := range settingSignals {
			v, ok := signals[signal]
			if !ok || fmt.Sprint(v) == fmt.Sprint(current[signal]) {
				continue
			}
			if err := h.deps.Store.SetSetting(name, v); err != nil {
				sse.Error(err.Error())
				sse.Signals(settingsSignals(h.deps.Store.Settings()))
				return
			}
		}
		sse.Signals(map[string]any{"error": ""})
	}), nil
}

// Share encodes the scene and publishes the link as the shareurl signal.
func (h *Handler) Share(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		link, err := sharelink.EncodeURL(h.deps.ShareBaseURL, h.deps.Store.Snapshot())
		if h.deps.Metrics != nil {
			h.deps.Metrics.ShareEncoded(err)
		}
		if err != nil {
			h.logger.Error("share link encode failed", "error", err)
			sse.Error("Could not create share link")
			return
		}
		sse.Signals(map[string]any{"shareurl": link, "error": ""})
	}), nil
}

// Load replaces the scene with the one in a share token or URL.
// Signals: token.
//
// An undecodable token leaves the current scene alone; other browsers may
// be editing it.
func (h *Handler) Load(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	token := signals.String("token")

	return h.Stream(func(sse humastar.SSE) {
		snap, err := sharelink.Decode(token)
		if h.deps.Metrics != nil {
			h.deps.Metrics.ShareDecoded(err)
		}
		if err != nil {
			h.logger.Warn("share link rejected", "error", err)
			sse.Error("This share link could not be read")
			return
		}
		if err := h.deps.Store.Restore(snap); err != nil {
			msg := "This share link could not be loaded"
			if !errors.Is(err, scene.ErrInvalidSnapshot) {
				h.logger.Error("restore failed", "error", err)
			}
			sse.Error(msg)
			return
		}
		sse.Success(fmt.Sprintf("Loaded %d annotations", h.deps.Store.Len()))
	}), nil
}

// Clear removes every annotation.
func (h *Handler) Clear(ctx context.Context, input *humastar.EmptyInput) (*struct{}, error) {
	h.deps.Store.Clear()
	return nil, nil
}
