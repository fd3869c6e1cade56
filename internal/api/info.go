package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-pyro/internal/annotation"
)

type InfoHandler struct {
	dataDir string
}

func NewInfoHandler(dataDir string) *InfoHandler {
	return &InfoHandler{dataDir: dataDir}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Kinds    []string `json:"kinds" doc:"Annotation kinds"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	kinds := make([]string, len(annotation.Kinds))
	for i, k := range annotation.Kinds {
		kinds[i] = string(k)
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-pyro",
		Version:  Version,
		DataDir:  h.dataDir,
		Kinds:    kinds,
		Features: []string{"share-links", "geojson", "vector-tiles", "pmtiles", "report", "palette", "live-editor"},
	}}, nil
}
