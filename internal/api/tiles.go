package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/plat-pyro/internal/tiler"
)

type TileInput struct {
	Z int `path:"z" minimum:"0" maximum:"22" doc:"Zoom"`
	X int `path:"x" minimum:"0" doc:"Column"`
	Y int `path:"y" minimum:"0" doc:"Row"`
}

type TileOutput struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type ArchiveInput struct {
	MinZoom int `query:"minzoom" minimum:"0" maximum:"22" default:"12"`
	MaxZoom int `query:"maxzoom" minimum:"0" maximum:"22" default:"18"`
}

type ArchiveOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// RegisterTiles registers vector tile routes for the scene.
func (h *APIHandler) RegisterTiles(api huma.API) {
	tags := huma.OperationTags("scene")
	huma.Get(api, "/api/v1/scene/tiles/{z}/{x}/{y}", h.GetTile, tags, func(o *huma.Operation) {
		o.Summary = "Scene vector tile"
		o.Description = "Annotations as a Mapbox vector tile, layer \"annotations\". Empty tiles return 204."
	})
	huma.Get(api, "/api/v1/scene/tiles.pmtiles", h.GetTileArchive, tags, func(o *huma.Operation) {
		o.Summary = "Scene tile archive"
		o.Description = "Every non-empty scene tile for the zoom range as one PMTiles file."
	})
}

func (h *APIHandler) GetTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	t := maptile.New(uint32(input.X), uint32(input.Y), maptile.Zoom(input.Z))
	if !tiler.Valid(t) {
		return nil, huma.Error404NotFound(fmt.Sprintf("tile %d/%d/%d does not exist", input.Z, input.X, input.Y))
	}

	fc := SceneFeatures(h.svc.Store.List(), h.svc.Store.Settings())
	data, err := tiler.Tile(fc, t)
	if err != nil {
		return nil, httpError(err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{Status: http.StatusOK, ContentType: "application/vnd.mapbox-vector-tile", Body: data}, nil
}

func (h *APIHandler) GetTileArchive(ctx context.Context, input *ArchiveInput) (*ArchiveOutput, error) {
	fc := SceneFeatures(h.svc.Store.List(), h.svc.Store.Settings())

	var buf bytes.Buffer
	hdr, err := tiler.WriteArchive(&buf, fc, tiler.Config{MinZoom: input.MinZoom, MaxZoom: input.MaxZoom})
	if err != nil {
		return nil, httpError(err)
	}
	h.logger.Debug("tile archive written", "tiles", hdr.Tiles, "bytes", buf.Len())

	name := "scene"
	if p := h.svc.Store.Settings().ProjectName; p != "" {
		name = filenameSafe(p)
	}
	return &ArchiveOutput{
		ContentType:        "application/vnd.pmtiles",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name+".pmtiles"),
		Body:               buf.Bytes(),
	}, nil
}

func filenameSafe(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "scene"
	}
	return string(out)
}
