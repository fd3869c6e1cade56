package api

import (
	"github.com/joeblew999/plat-pyro/internal/humastar"
)

// Links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var Links = humastar.LinkMap{
	"/health": {
		humastar.Link("/api/v1/info", "info"),
		humastar.Link("/api/v1/scene", "scene"),
		humastar.Link("/api/v1/annotations", "annotations"),
		humastar.Link("/api/v1/settings", "settings"),
		humastar.Link("/api/v1/palette", "palette"),
		humastar.Link("/api/v1/report", "report"),
		humastar.Link("/openapi.json", "service-desc"),
		humastar.Link("/docs", "service-doc"),
	},
	"/api/v1/info": {
		humastar.Link("/health", "up"),
	},
	"/api/v1/scene": {
		humastar.Link("/health", "up"),
		humastar.Link("/api/v1/annotations", "annotations"),
		humastar.Link("/api/v1/scene/geojson", "alternate"),
		humastar.Link("/api/v1/scene/tiles.pmtiles", "alternate"),
		humastar.Link("/api/v1/share", "share"),
		humastar.Link("/api/v1/report", "report"),
	},
	"/api/v1/annotations": {
		humastar.Link("/health", "up"),
		humastar.Link("/api/v1/scene", "scene"),
		humastar.Link("/api/v1/annotations/{id}", "item"),
	},
	"/api/v1/annotations/{id}": {
		humastar.Link("/api/v1/annotations", "collection"),
	},
	"/api/v1/settings": {
		humastar.Link("/api/v1/scene", "scene"),
		humastar.Link("/api/v1/camera", "camera"),
	},
	"/api/v1/camera": {
		humastar.Link("/api/v1/settings", "settings"),
	},
	"/api/v1/palette": {
		humastar.Link("/health", "up"),
		humastar.Link("/api/v1/palette/{id}", "item"),
	},
	"/api/v1/palette/{id}": {
		humastar.Link("/api/v1/palette", "collection"),
	},
}
