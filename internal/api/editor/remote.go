package editor

import (
	"encoding/json"
	"log/slog"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/surface"
)

// Op types sent to browsers.
const (
	OpPoint       = "point"
	OpPosition    = "position"
	OpText        = "text"
	OpRemovePoint = "remove-point"
	OpShape       = "shape"
	OpRemoveShape = "remove-shape"
	OpCamera      = "camera"
)

// tileSize is the MapLibre world tile size in pixels.
const tileSize = 512.0

// earthRadius matches the sphere orb/project uses for Web Mercator.
const earthRadius = 6378137.0

// Op is one drawing instruction for the browser map.
type Op struct {
	Op       string          `json:"op"`
	Key      string          `json:"key,omitempty"`
	Position *orb.Point      `json:"position,omitempty"`
	Text     *string         `json:"text,omitempty"`
	Style    *surface.Style  `json:"style,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
	Camera   *scene.Camera   `json:"camera,omitempty"`
}

// RemoteSurface is a surface.Surface whose pixels live in browsers. Every
// primitive change is fanned out as an Op to the connected event streams;
// gestures come back through Handle.
type RemoteSurface struct {
	logger *slog.Logger

	mu            sync.Mutex
	handles       map[string]*RemoteHandle
	camera        scene.Camera
	width, height float64
	subs          map[*Subscription]struct{}
}

// NewRemoteSurface creates a surface with no viewport yet.
func NewRemoteSurface(logger *slog.Logger) *RemoteSurface {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteSurface{
		logger:  logger,
		handles: make(map[string]*RemoteHandle),
		camera:  scene.DefaultCamera(),
		subs:    make(map[*Subscription]struct{}),
	}
}

// maxBacklog bounds the ops queued for one browser that stopped reading.
const maxBacklog = 1 << 16

// Subscription is one browser's queue of ops. A whole-scene repaint can
// produce thousands of ops at once, so nothing is dropped until the
// backlog reaches maxBacklog.
type Subscription struct {
	surf   *RemoteSurface
	ready  chan struct{}
	mu     sync.Mutex
	queue  []Op
	closed bool
}

// Subscribe starts queueing every op for a new reader.
func (s *RemoteSurface) Subscribe() *Subscription {
	sub := &Subscription{surf: s, ready: make(chan struct{}, 1)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

// Ready receives when ops are waiting and is closed by Close.
func (sub *Subscription) Ready() <-chan struct{} {
	return sub.ready
}

// Take returns the waiting ops in order and empties the queue.
func (sub *Subscription) Take() []Op {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	ops := sub.queue
	sub.queue = nil
	return ops
}

// Close ends the subscription. It is safe to call more than once.
func (sub *Subscription) Close() {
	s := sub.surf
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	sub.queue = nil
	close(sub.ready)
}

func (sub *Subscription) push(op Op) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return true
	}
	if len(sub.queue) >= maxBacklog {
		return false
	}
	sub.queue = append(sub.queue, op)
	select {
	case sub.ready <- struct{}{}:
	default:
	}
	return true
}

func (s *RemoteSurface) broadcast(op Op) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(op)
}

func (s *RemoteSurface) broadcastLocked(op Op) {
	for sub := range s.subs {
		if !sub.push(op) {
			s.logger.Warn("editor client too slow, op dropped", "op", op.Op, "key", op.Key)
		}
	}
}

// AddDraggablePoint implements surface.Surface.
func (s *RemoteSurface) AddDraggablePoint(key string, at orb.Point, style surface.Style) surface.Handle {
	h := &RemoteHandle{key: key, surf: s}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[key] = h
	s.broadcastLocked(Op{Op: OpPoint, Key: key, Position: &at, Style: &style})
	return h
}

// SetShapeGeometry implements surface.Surface.
func (s *RemoteSurface) SetShapeGeometry(sourceID string, g orb.Geometry, style surface.Style) {
	raw, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		s.logger.Warn("shape not encodable", "source", sourceID, "error", err)
		return
	}
	s.broadcast(Op{Op: OpShape, Key: sourceID, Geometry: raw, Style: &style})
}

// RemoveShape implements surface.Surface.
func (s *RemoteSurface) RemoveShape(sourceID string) {
	s.broadcast(Op{Op: OpRemoveShape, Key: sourceID})
}

// Camera implements surface.Surface.
func (s *RemoteSurface) Camera() scene.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// SetCamera implements surface.Surface and moves every browser map.
func (s *RemoteSurface) SetCamera(c scene.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = c
	s.broadcastLocked(Op{Op: OpCamera, Camera: &c})
}

// Viewport records what a browser is showing without echoing it back.
func (s *RemoteSurface) Viewport(c scene.Camera, width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = c
	s.width, s.height = width, height
}

// ProjectScreenToGeo implements surface.Surface using Web Mercator at the
// current camera. Pitch is ignored.
func (s *RemoteSurface) ProjectScreenToGeo(p surface.ScreenPoint) orb.Point {
	s.mu.Lock()
	c, w, h := s.camera, s.width, s.height
	s.mu.Unlock()

	res := metersPerPixel(c.Zoom)
	dx := (p.X - w/2) * res
	dy := (h/2 - p.Y) * res

	// Screen up points along the bearing.
	sin, cos := math.Sincos(c.Bearing * math.Pi / 180)
	mx := dx*cos + dy*sin
	my := -dx*sin + dy*cos

	center := project.WGS84.ToMercator(c.Center)
	return project.Mercator.ToWGS84(orb.Point{center.X() + mx, center.Y() + my})
}

// projectGeoToScreen is the inverse of ProjectScreenToGeo.
func (s *RemoteSurface) projectGeoToScreen(g orb.Point) surface.ScreenPoint {
	s.mu.Lock()
	c, w, h := s.camera, s.width, s.height
	s.mu.Unlock()

	center := project.WGS84.ToMercator(c.Center)
	m := project.WGS84.ToMercator(g)
	mx, my := m.X()-center.X(), m.Y()-center.Y()

	sin, cos := math.Sincos(c.Bearing * math.Pi / 180)
	dx := mx*cos - my*sin
	dy := mx*sin + my*cos

	res := metersPerPixel(c.Zoom)
	return surface.ScreenPoint{X: w/2 + dx/res, Y: h/2 - dy/res}
}

func metersPerPixel(zoom float64) float64 {
	return 2 * math.Pi * earthRadius / (tileSize * math.Pow(2, zoom))
}

// Handle returns the live handle for a point key.
func (s *RemoteSurface) Handle(key string) (*RemoteHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[key]
	return h, ok
}

// Len returns the number of live points.
func (s *RemoteSurface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// RemoteHandle is a marker in every connected browser.
type RemoteHandle struct {
	key  string
	surf *RemoteSurface

	mu        sync.Mutex
	onDrag    func(orb.Point)
	onDragEnd func(orb.Point)
	onMenu    func()
}

func (h *RemoteHandle) OnDrag(fn func(orb.Point)) {
	h.mu.Lock()
	h.onDrag = fn
	h.mu.Unlock()
}

func (h *RemoteHandle) OnDragEnd(fn func(orb.Point)) {
	h.mu.Lock()
	h.onDragEnd = fn
	h.mu.Unlock()
}

func (h *RemoteHandle) OnContextMenu(fn func()) {
	h.mu.Lock()
	h.onMenu = fn
	h.mu.Unlock()
}

func (h *RemoteHandle) SetPosition(p orb.Point) {
	h.surf.broadcast(Op{Op: OpPosition, Key: h.key, Position: &p})
}

func (h *RemoteHandle) SetText(text string) {
	h.surf.broadcast(Op{Op: OpText, Key: h.key, Text: &text})
}

func (h *RemoteHandle) Remove() {
	s := h.surf
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handles[h.key] == h {
		delete(s.handles, h.key)
	}
	s.broadcastLocked(Op{Op: OpRemovePoint, Key: h.key})
}

// Drag delivers a browser drag. end marks the final position.
func (h *RemoteHandle) Drag(p orb.Point, end bool) {
	h.mu.Lock()
	fn := h.onDrag
	if end {
		fn = h.onDragEnd
	}
	h.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// ContextMenu delivers a browser right-click.
func (h *RemoteHandle) ContextMenu() {
	h.mu.Lock()
	fn := h.onMenu
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}
