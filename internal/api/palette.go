package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-pyro/internal/service"
)

type PaletteIDInput struct {
	ID string `path:"id" doc:"Palette item ID" example:"3_shell"`
}

type PaletteItemOutput struct {
	Body service.PaletteItem
}

// RegisterPalette registers palette CRUD routes.
func (h *APIHandler) RegisterPalette(api huma.API) {
	tags := huma.OperationTags("palette")
	huma.Get(api, "/api/v1/palette", h.ListPalette, tags)
	huma.Post(api, "/api/v1/palette", h.CreatePaletteItem, tags, func(o *huma.Operation) {
		o.DefaultStatus = http.StatusCreated
	})
	huma.Get(api, "/api/v1/palette/{id}", h.GetPaletteItem, tags)
	huma.Put(api, "/api/v1/palette/{id}", h.PutPaletteItem, tags)
	huma.Delete(api, "/api/v1/palette/{id}", h.DeletePaletteItem, tags)
}

func (h *APIHandler) ListPalette(ctx context.Context, input *struct{}) (*struct{ Body []service.PaletteItem }, error) {
	return &struct{ Body []service.PaletteItem }{Body: h.svc.Palette.List()}, nil
}

func (h *APIHandler) CreatePaletteItem(ctx context.Context, input *struct{ Body service.PaletteItem }) (*PaletteItemOutput, error) {
	created, err := h.svc.Palette.Create(input.Body)
	if err != nil {
		return nil, httpError(err)
	}
	return &PaletteItemOutput{Body: created}, nil
}

func (h *APIHandler) GetPaletteItem(ctx context.Context, input *PaletteIDInput) (*PaletteItemOutput, error) {
	item, ok := h.svc.Palette.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("palette item not found")
	}
	return &PaletteItemOutput{Body: item}, nil
}

func (h *APIHandler) PutPaletteItem(ctx context.Context, input *struct {
	PaletteIDInput
	Body service.PaletteItem
}) (*PaletteItemOutput, error) {
	updated, err := h.svc.Palette.Update(input.ID, input.Body)
	if err != nil {
		return nil, httpError(err)
	}
	return &PaletteItemOutput{Body: updated}, nil
}

func (h *APIHandler) DeletePaletteItem(ctx context.Context, input *PaletteIDInput) (*struct{ Body MessageBody }, error) {
	if err := h.svc.Palette.Delete(input.ID); err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Palette item deleted"}}, nil
}
