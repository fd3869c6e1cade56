// Package surface binds scene annotations to an interactive map.
//
// The map itself is behind the Surface and Handle interfaces; the editor
// package implements them over Datastar SSE, tests implement them in
// memory. Only the Binder ever holds a Handle.
package surface

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/scene"
)

// ScreenPoint is a pixel position on the map viewport, origin top-left.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Role tells the surface how to draw a handle.
type Role string

const (
	RoleAnchor   Role = "anchor"
	RoleCorner   Role = "corner"
	RoleEndpoint Role = "endpoint"
	RoleLabel    Role = "label"
)

// Style is the visual hint attached to handles and shapes.
type Style struct {
	Kind  string `json:"kind"`
	Color string `json:"color"`
	Role  Role   `json:"role,omitempty"`
}

// Surface is the map.
type Surface interface {
	// AddDraggablePoint creates a marker. key is unique across the scene.
	AddDraggablePoint(key string, at orb.Point, style Style) Handle
	// SetShapeGeometry creates or replaces a filled or stroked shape.
	SetShapeGeometry(sourceID string, g orb.Geometry, style Style)
	RemoveShape(sourceID string)
	ProjectScreenToGeo(p ScreenPoint) orb.Point
	Camera() scene.Camera
	SetCamera(c scene.Camera)
}

// Handle is one draggable marker on the surface. Callbacks registered with
// OnDrag and OnDragEnd receive the geographic position under the pointer.
type Handle interface {
	OnDrag(fn func(orb.Point))
	OnDragEnd(fn func(orb.Point))
	OnContextMenu(fn func())
	SetPosition(p orb.Point)
	SetText(text string)
	Remove()
}
