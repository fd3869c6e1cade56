package surface

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geometry"
	"github.com/joeblew999/plat-pyro/internal/scene"
)

type binding struct {
	handles []Handle // indexed by geometry.Handle; entries may be nil
	label   Handle   // nil when the text rides on handles[0]
	shapes  []string
}

// Binder keeps the primitives on a Surface in step with a scene.Store.
// Gestures on handles become store mutations; store changes become
// surface repaints of only the affected entities.
type Binder struct {
	store  *scene.Store
	surf   Surface
	logger *slog.Logger

	mu    sync.Mutex
	bound map[string]*binding
}

// NewBinder subscribes to store. Call Bind to paint what is already there.
func NewBinder(store *scene.Store, surf Surface, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Binder{
		store:  store,
		surf:   surf,
		logger: logger,
		bound:  make(map[string]*binding),
	}
	store.Subscribe(b.apply)
	return b
}

// Bind paints every entity in the store and moves the surface camera to
// the stored one when they differ.
func (b *Binder) Bind() {
	entities := b.store.List()
	settings := b.store.Settings()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncCameraLocked()
	for _, e := range entities {
		b.bindLocked(e, settings)
	}
}

// Reset drops every primitive and paints the store again, used when a
// surface reconnects.
func (b *Binder) Reset() {
	b.mu.Lock()
	for id := range b.bound {
		b.unbindLocked(id)
	}
	b.mu.Unlock()
	b.Bind()
}

// Bound reports whether id currently has primitives on the surface.
func (b *Binder) Bound(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bound[id]
	return ok
}

// Drop places a new annotation at a screen position.
func (b *Binder) Drop(kind annotation.Kind, at ScreenPoint, opts scene.PlaceOptions) (annotation.Entity, error) {
	var geo orb.Point
	ok := b.call("project", "", func() { geo = b.surf.ProjectScreenToGeo(at) })
	if !ok {
		return annotation.Entity{}, fmt.Errorf("project screen point %v", at)
	}
	return b.store.Place(kind, geo, opts)
}

func (b *Binder) apply(c scene.Change) {
	if c.Kind == scene.ChangeCamera {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.syncCameraLocked()
		return
	}

	settings := b.store.Settings()
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range c.IDs {
		switch c.Kind {
		case scene.ChangeRemoved, scene.ChangeCleared:
			b.unbindLocked(id)
		default:
			e, ok := b.store.Get(id)
			if !ok {
				// Removed again before this change was delivered.
				b.unbindLocked(id)
				continue
			}
			if _, bound := b.bound[id]; bound {
				b.repaintLocked(e, settings)
			} else {
				b.bindLocked(e, settings)
			}
		}
	}
}

// syncCameraLocked pushes the stored camera unless the surface already
// shows it, so a viewport reported by the surface is not echoed back.
func (b *Binder) syncCameraLocked() {
	camera := b.store.Camera()
	var current scene.Camera
	b.call("camera", "", func() { current = b.surf.Camera() })
	if current != camera {
		b.call("set camera", "", func() { b.surf.SetCamera(camera) })
	}
}

func (b *Binder) bindLocked(e annotation.Entity, settings scene.Settings) {
	if _, ok := b.bound[e.ID]; ok {
		b.repaintLocked(e, settings)
		return
	}
	bd := &binding{}
	b.bound[e.ID] = bd

	for i, p := range geometry.ControlPoints(e) {
		key := fmt.Sprintf("%s-%d", e.ID, i)
		h := b.addPoint(e, key, p, controlRole(e.Kind), geometry.Handle(i))
		bd.handles = append(bd.handles, h)
	}
	if pos, ok := geometry.LabelPosition(e); ok {
		bd.label = b.addPoint(e, e.ID+"-label", pos, RoleLabel, geometry.HandleLabel)
	}
	b.paintShapesLocked(e, bd)
	b.setTextLocked(e, bd, settings)
}

func (b *Binder) addPoint(e annotation.Entity, key string, at orb.Point, role Role, handle geometry.Handle) Handle {
	style := Style{Kind: string(e.Kind), Color: e.Color, Role: role}
	id := e.ID

	var h Handle
	b.call("add point", key, func() {
		h = b.surf.AddDraggablePoint(key, at, style)
		if h == nil {
			return
		}
		drag := func(p orb.Point) {
			b.store.UpdateGeometry(id, geometry.Drag{Handle: handle, Position: p})
		}
		h.OnDrag(drag)
		h.OnDragEnd(drag)
		h.OnContextMenu(func() { b.store.Remove(id) })
	})
	return h
}

func controlRole(kind annotation.Kind) Role {
	switch kind.Family() {
	case annotation.FamilyRectangle:
		return RoleCorner
	case annotation.FamilySegment:
		return RoleEndpoint
	}
	return RoleAnchor
}

func (b *Binder) repaintLocked(e annotation.Entity, settings scene.Settings) {
	bd := b.bound[e.ID]
	for i, p := range geometry.ControlPoints(e) {
		if i < len(bd.handles) && bd.handles[i] != nil {
			h := bd.handles[i]
			b.call("set position", e.ID, func() { h.SetPosition(p) })
		}
	}
	if pos, ok := geometry.LabelPosition(e); ok && bd.label != nil {
		b.call("set position", e.ID, func() { bd.label.SetPosition(pos) })
	}
	b.paintShapesLocked(e, bd)
	b.setTextLocked(e, bd, settings)
}

func (b *Binder) paintShapesLocked(e annotation.Entity, bd *binding) {
	style := Style{Kind: string(e.Kind), Color: e.Color}
	bd.shapes = bd.shapes[:0]
	for _, s := range geometry.Shapes(e) {
		bd.shapes = append(bd.shapes, s.SourceID)
		b.call("set shape", s.SourceID, func() { b.surf.SetShapeGeometry(s.SourceID, s.Geometry, style) })
	}
}

func (b *Binder) setTextLocked(e annotation.Entity, bd *binding, settings scene.Settings) {
	target := bd.label
	if target == nil && len(bd.handles) > 0 {
		target = bd.handles[0]
	}
	if target == nil {
		return
	}
	text := scene.RenderLabelText(e, settings)
	b.call("set text", e.ID, func() { target.SetText(text) })
}

func (b *Binder) unbindLocked(id string) {
	bd, ok := b.bound[id]
	if !ok {
		return
	}
	delete(b.bound, id)

	for _, h := range append(bd.handles, bd.label) {
		if h != nil {
			b.call("remove point", id, h.Remove)
		}
	}
	for _, src := range bd.shapes {
		b.call("remove shape", src, func() { b.surf.RemoveShape(src) })
	}
}

// call runs one surface operation. A panicking surface is logged and the
// operation skipped; the scene is unaffected.
func (b *Binder) call(op, key string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("surface call failed", "op", op, "key", key, "panic", r)
			ok = false
		}
	}()
	fn()
	return true
}
