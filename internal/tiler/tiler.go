// Package tiler cuts the scene's GeoJSON into Mapbox vector tiles, one at
// a time for a live map source or all at once as a PMTiles archive for
// viewers that work offline on site.
package tiler

import (
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-pyro/internal/pmtiles"
)

// Layer is the vector layer holding every annotation feature.
const Layer = "annotations"

// MaxZoom is the deepest zoom tiles are cut for. Beyond it a map client
// overzooms.
const MaxZoom = 22

// MaxArchiveTiles bounds one archive. A scene spread over a continent at
// street zoom would otherwise produce millions of tiles.
const MaxArchiveTiles = 20000

var (
	ErrEmpty        = errors.New("scene has no features")
	ErrZoomRange    = errors.New("invalid zoom range")
	ErrTooManyTiles = errors.New("too many tiles")
)

// Config selects the zoom range of an archive.
type Config struct {
	MinZoom int
	MaxZoom int
}

// DefaultConfig covers neighbourhood to site-detail zooms.
func DefaultConfig() Config {
	return Config{MinZoom: 12, MaxZoom: 18}
}

func (c Config) validate() error {
	if c.MinZoom < 0 || c.MaxZoom > MaxZoom || c.MinZoom > c.MaxZoom {
		return fmt.Errorf("%w: %d..%d", ErrZoomRange, c.MinZoom, c.MaxZoom)
	}
	return nil
}

// Tile encodes the features of fc that reach t. It returns nil data for
// a tile with nothing in it.
func Tile(fc *geojson.FeatureCollection, t maptile.Tile) ([]byte, error) {
	layer := buildLayer(fc, t)
	if layer == nil {
		return nil, nil
	}
	return mvt.Marshal(mvt.Layers{layer})
}

// Valid reports whether t addresses a tile that exists.
func Valid(t maptile.Tile) bool {
	if t.Z > MaxZoom {
		return false
	}
	n := uint32(1) << t.Z
	return t.X < n && t.Y < n
}

// WriteArchive writes every non-empty tile of cfg's zoom range to w as a
// PMTiles archive with gzipped tiles.
func WriteArchive(w io.Writer, fc *geojson.FeatureCollection, cfg Config) (pmtiles.Header, error) {
	if err := cfg.validate(); err != nil {
		return pmtiles.Header{}, err
	}
	if len(fc.Features) == 0 {
		return pmtiles.Header{}, ErrEmpty
	}
	bound := featuresBound(fc)

	total := 0
	for z := cfg.MinZoom; z <= cfg.MaxZoom; z++ {
		total += len(tilesInBounds(bound, maptile.Zoom(z)))
		if total > MaxArchiveTiles {
			return pmtiles.Header{}, fmt.Errorf("%w: more than %d for zoom %d..%d", ErrTooManyTiles, MaxArchiveTiles, cfg.MinZoom, cfg.MaxZoom)
		}
	}

	var tiles []pmtiles.Tile
	for z := cfg.MinZoom; z <= cfg.MaxZoom; z++ {
		for _, t := range tilesInBounds(bound, maptile.Zoom(z)) {
			layer := buildLayer(fc, t)
			if layer == nil {
				continue
			}
			data, err := mvt.MarshalGzipped(mvt.Layers{layer})
			if err != nil {
				return pmtiles.Header{}, fmt.Errorf("encode tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
			}
			tiles = append(tiles, pmtiles.Tile{Z: uint8(t.Z), X: t.X, Y: t.Y, Data: data})
		}
	}
	if len(tiles) == 0 {
		return pmtiles.Header{}, ErrEmpty
	}

	return pmtiles.Write(w, pmtiles.Archive{
		Tiles:           tiles,
		TileCompression: pmtiles.Gzip,
		MinZoom:         uint8(cfg.MinZoom),
		MaxZoom:         uint8(cfg.MaxZoom),
		Bounds:          bound,
		Metadata: map[string]any{
			"name":   "plat-pyro scene",
			"format": "pbf",
			"vector_layers": []map[string]any{{
				"id":      Layer,
				"minzoom": cfg.MinZoom,
				"maxzoom": cfg.MaxZoom,
				"fields": map[string]string{
					"id": "String", "kind": "String", "number": "Number", "name": "String",
					"label": "String", "color": "String", "role": "String",
				},
			}},
		},
	})
}

func featuresBound(fc *geojson.FeatureCollection) orb.Bound {
	b := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// buildLayer clips and projects the features reaching t. Returns nil when
// nothing is left.
func buildLayer(fc *geojson.FeatureCollection, t maptile.Tile) *mvt.Layer {
	tileBound := t.Bound()
	clipped := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if !intersects(f.Geometry, tileBound) {
			continue
		}
		// mvt clips and projects in place.
		g := orb.Clone(f.Geometry)
		if g == nil {
			continue
		}
		// Ids stay in the properties; MVT ids must be integers.
		clone := geojson.NewFeature(g)
		clone.Properties = f.Properties.Clone()
		clipped.Append(clone)
	}
	if len(clipped.Features) == 0 {
		return nil
	}

	layer := mvt.NewLayer(Layer, clipped)
	if eps := simplifyEpsilon(t.Z); eps > 0 {
		layer.Simplify(simplify.DouglasPeucker(eps))
	}
	layer.Clip(tileBound)
	layer.ProjectToTile(t)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil
	}
	return layer
}

// intersects refines the bounding-box test for polygons so a circle whose
// box only grazes a tile corner is left out.
func intersects(g orb.Geometry, tb orb.Bound) bool {
	if !g.Bound().Intersects(tb) {
		return false
	}
	switch g := g.(type) {
	case orb.Point:
		return tb.Contains(g)
	case orb.Polygon:
		for _, p := range g[0] {
			if tb.Contains(p) {
				return true
			}
		}
		corners := []orb.Point{tb.Min, {tb.Max[0], tb.Min[1]}, tb.Max, {tb.Min[0], tb.Max[1]}, tb.Center()}
		for _, p := range corners {
			if planar.PolygonContains(g, p) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func tilesInBounds(b orb.Bound, z maptile.Zoom) []maptile.Tile {
	lo := maptile.At(b.Min, z)
	hi := maptile.At(b.Max, z)
	minX, maxX := min(lo.X, hi.X), max(lo.X, hi.X)
	minY, maxY := min(lo.Y, hi.Y), max(lo.Y, hi.Y)

	tiles := make([]maptile.Tile, 0, int(maxX-minX+1)*int(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}
	return tiles
}

// simplifyEpsilon is in degrees. Fallout circles are a few hundred feet
// across, so simplification only starts well below site zoom.
func simplifyEpsilon(z maptile.Zoom) float64 {
	switch {
	case z >= 15:
		return 0
	case z >= 12:
		return 0.000005
	default:
		return 0.00002
	}
}
