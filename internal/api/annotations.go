package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geometry"
	"github.com/joeblew999/plat-pyro/internal/humastar"
	"github.com/joeblew999/plat-pyro/internal/scene"
)

var annotationActions = []humastar.ActionDef{
	{Rel: "edit", Pattern: "/api/v1/annotations/%s", Method: http.MethodPatch, Title: "Edit annotation"},
	{Rel: "delete", Pattern: "/api/v1/annotations/%s", Method: http.MethodDelete, Title: "Remove annotation"},
}

// AnnotationBody is an annotation with its rendered label.
type AnnotationBody struct {
	annotation.Entity
	Name string `json:"name" doc:"Display name, e.g. Firework #3"`
	Text string `json:"text" doc:"Label text in the current unit"`
}

// Actions implements humastar.Actor.
func (b AnnotationBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, annotationActions)
}

func annotationBody(e annotation.Entity, s scene.Settings) AnnotationBody {
	return AnnotationBody{Entity: e, Name: e.DisplayName(), Text: scene.RenderLabelText(e, s)}
}

type IDInput struct {
	ID string `path:"id" doc:"Annotation ID"`
}

type AnnotationOutput struct {
	Body AnnotationBody
}

type ListAnnotationsInput struct {
	humastar.PageInput
	Kind string `query:"kind" enum:"firework,audience,measurement,restricted,custom" doc:"Only this kind"`
}

type PlaceBody struct {
	Kind          string    `json:"kind,omitempty" enum:"firework,audience,measurement,restricted,custom" doc:"Kind to place; optional with paletteId"`
	PaletteID     string    `json:"paletteId,omitempty" doc:"Palette preset supplying kind and defaults"`
	Position      orb.Point `json:"position" doc:"Center [lng, lat]"`
	Label         string    `json:"label,omitempty"`
	Color         string    `json:"color,omitempty"`
	CaliberInches float64   `json:"caliberInches,omitempty" minimum:"0"`
	Description   string    `json:"description,omitempty"`
	Emoji         string    `json:"emoji,omitempty"`
}

type EditBody struct {
	Label         *string  `json:"label,omitempty"`
	Color         *string  `json:"color,omitempty"`
	CaliberInches *float64 `json:"caliberInches,omitempty" exclusiveMinimum:"0"`
	Description   *string  `json:"description,omitempty"`
	Emoji         *string  `json:"emoji,omitempty"`
}

type HandleInput struct {
	IDInput
	Handle int `path:"handle" minimum:"-1" maximum:"3" doc:"Control point; -1 moves the whole shape"`
	Body   struct {
		Position orb.Point `json:"position" doc:"New position [lng, lat]"`
	}
}

// RegisterAnnotations registers annotation routes.
func (h *APIHandler) RegisterAnnotations(api huma.API) {
	tags := huma.OperationTags("annotations")
	huma.Get(api, "/api/v1/annotations", h.ListAnnotations, tags)
	huma.Post(api, "/api/v1/annotations", h.PlaceAnnotation, tags, func(o *huma.Operation) {
		o.DefaultStatus = http.StatusCreated
	})
	huma.Get(api, "/api/v1/annotations/{id}", h.GetAnnotation, tags)
	huma.Patch(api, "/api/v1/annotations/{id}", h.EditAnnotation, tags)
	huma.Patch(api, "/api/v1/annotations/{id}/handles/{handle}", h.DragHandle, tags)
	huma.Delete(api, "/api/v1/annotations/{id}", h.DeleteAnnotation, tags)
}

func (h *APIHandler) ListAnnotations(ctx context.Context, input *ListAnnotationsInput) (*struct {
	Body humastar.PageBody[AnnotationBody]
}, error) {
	settings := h.svc.Store.Settings()
	items := []AnnotationBody{}
	for _, e := range h.svc.Store.List() {
		if input.Kind != "" && string(e.Kind) != input.Kind {
			continue
		}
		items = append(items, annotationBody(e, settings))
	}
	return &struct {
		Body humastar.PageBody[AnnotationBody]
	}{Body: humastar.Paginate(items, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) PlaceAnnotation(ctx context.Context, input *struct{ Body PlaceBody }) (*AnnotationOutput, error) {
	in := input.Body
	kindName := in.Kind
	var opts scene.PlaceOptions
	if in.PaletteID != "" {
		item, ok := h.svc.Palette.Get(in.PaletteID)
		if !ok {
			return nil, huma.Error404NotFound(fmt.Sprintf("palette item %q not found", in.PaletteID))
		}
		if kindName == "" {
			kindName = item.Kind
		}
		opts = item.PlaceOptions()
	}
	if in.Label != "" {
		opts.Label = in.Label
	}
	if in.Color != "" {
		opts.Color = in.Color
	}
	if in.CaliberInches > 0 {
		opts.CaliberInches = in.CaliberInches
	}
	if in.Description != "" {
		opts.Description = in.Description
	}
	if in.Emoji != "" {
		opts.Emoji = in.Emoji
	}

	kind, err := annotation.ParseKind(kindName)
	if err != nil {
		return nil, httpError(err)
	}
	e, err := h.svc.Store.Place(kind, in.Position, opts)
	if err != nil {
		return nil, httpError(err)
	}
	return &AnnotationOutput{Body: annotationBody(e, h.svc.Store.Settings())}, nil
}

func (h *APIHandler) GetAnnotation(ctx context.Context, input *IDInput) (*AnnotationOutput, error) {
	e, ok := h.svc.Store.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("annotation not found")
	}
	return &AnnotationOutput{Body: annotationBody(e, h.svc.Store.Settings())}, nil
}

func (h *APIHandler) EditAnnotation(ctx context.Context, input *struct {
	IDInput
	Body EditBody
}) (*AnnotationOutput, error) {
	edit := input.Body
	e, ok := h.svc.Store.Edit(input.ID, func(e *annotation.Entity) {
		if edit.Label != nil {
			e.Label = *edit.Label
		}
		if edit.Color != nil {
			e.Color = *edit.Color
		}
		if edit.CaliberInches != nil {
			e.CaliberInches = *edit.CaliberInches
		}
		if edit.Description != nil {
			e.Description = *edit.Description
		}
		if edit.Emoji != nil {
			e.Emoji = *edit.Emoji
		}
	})
	if !ok {
		return nil, huma.Error404NotFound("annotation not found")
	}
	return &AnnotationOutput{Body: annotationBody(e, h.svc.Store.Settings())}, nil
}

func (h *APIHandler) DragHandle(ctx context.Context, input *HandleInput) (*AnnotationOutput, error) {
	if _, ok := h.svc.Store.Get(input.ID); !ok {
		return nil, huma.Error404NotFound("annotation not found")
	}
	e, ok := h.svc.Store.UpdateGeometry(input.ID, geometry.Drag{
		Handle:   geometry.Handle(input.Handle),
		Position: input.Body.Position,
	})
	if !ok {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("handle %d does not exist on this annotation", input.Handle))
	}
	return &AnnotationOutput{Body: annotationBody(e, h.svc.Store.Settings())}, nil
}

func (h *APIHandler) DeleteAnnotation(ctx context.Context, input *IDInput) (*struct{}, error) {
	if !h.svc.Store.Remove(input.ID) {
		return nil, huma.Error404NotFound("annotation not found")
	}
	return nil, nil
}
