package api

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/geometry"
	"github.com/joeblew999/plat-pyro/internal/report"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/sharelink"
)

type SnapshotOutput struct {
	Body scene.Snapshot
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type SettingsOutput struct {
	Body scene.Settings
}

type CameraOutput struct {
	Body scene.Camera
}

type ShareBody struct {
	Token string `json:"token" doc:"Fragment parameter, s=<token>"`
	URL   string `json:"url,omitempty" doc:"Share URL when a base URL is configured"`
}

type LoadShareBody struct {
	Token string `json:"token" minLength:"1" doc:"Share URL, fragment or bare token"`
}

type LoadShareResult struct {
	Annotations int    `json:"annotations" doc:"Annotations loaded"`
	Message     string `json:"message" doc:"Result message"`
}

// RegisterScene registers whole-scene routes.
func (h *APIHandler) RegisterScene(api huma.API) {
	tags := huma.OperationTags("scene")
	huma.Get(api, "/api/v1/scene", h.GetScene, tags)
	huma.Put(api, "/api/v1/scene", h.PutScene, tags)
	huma.Delete(api, "/api/v1/scene", h.ClearScene, tags)
	huma.Get(api, "/api/v1/scene/geojson", h.GetSceneGeoJSON, tags)
	huma.Get(api, "/api/v1/report", h.GetReport, tags)
}

// RegisterSettings registers settings and camera routes.
func (h *APIHandler) RegisterSettings(api huma.API) {
	tags := huma.OperationTags("settings")
	huma.Get(api, "/api/v1/settings", h.GetSettings, tags)
	huma.Put(api, "/api/v1/settings", h.PutSettings, tags)
	huma.Get(api, "/api/v1/camera", h.GetCamera, tags)
	huma.Put(api, "/api/v1/camera", h.PutCamera, tags)
}

// RegisterShare registers share link routes.
func (h *APIHandler) RegisterShare(api huma.API) {
	tags := huma.OperationTags("share")
	huma.Post(api, "/api/v1/share", h.CreateShare, tags)
	huma.Post(api, "/api/v1/share/load", h.LoadShare, tags)
}

func (h *APIHandler) GetScene(ctx context.Context, input *struct{}) (*SnapshotOutput, error) {
	return &SnapshotOutput{Body: h.svc.Store.Snapshot()}, nil
}

func (h *APIHandler) PutScene(ctx context.Context, input *struct{ Body scene.Snapshot }) (*SnapshotOutput, error) {
	if err := h.svc.Store.Restore(input.Body); err != nil {
		return nil, httpError(err)
	}
	return &SnapshotOutput{Body: h.svc.Store.Snapshot()}, nil
}

func (h *APIHandler) ClearScene(ctx context.Context, input *struct{}) (*struct{}, error) {
	h.svc.Store.Clear()
	return nil, nil
}

// GetSceneGeoJSON exports every annotation as a feature: markers as points,
// zones and fallout radii as polygons, measurements as lines.
func (h *APIHandler) GetSceneGeoJSON(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	fc := SceneFeatures(h.svc.Store.List(), h.svc.Store.Settings())
	raw, err := fc.MarshalJSON()
	if err != nil {
		return nil, httpError(err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: raw}, nil
}

// SceneFeatures builds the GeoJSON export of entities.
func SceneFeatures(entities []annotation.Entity, s scene.Settings) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range entities {
		props := geojson.Properties{
			"id":     e.ID,
			"kind":   string(e.Kind),
			"number": e.Number,
			"name":   e.DisplayName(),
			"label":  scene.RenderLabelText(e, s),
			"color":  e.Color,
		}

		if e.Kind.Family() == annotation.FamilyRadiusPoint || e.Kind.Family() == annotation.FamilyBarePoint {
			f := geojson.NewFeature(e.Anchor)
			f.ID = e.ID
			f.Properties = props.Clone()
			f.Properties["role"] = "anchor"
			fc.Append(f)
		}
		for _, shape := range geometry.Shapes(e) {
			f := geojson.NewFeature(shape.Geometry)
			f.ID = shape.SourceID
			f.Properties = props.Clone()
			f.Properties["role"] = "shape"
			fc.Append(f)
		}
	}
	return fc
}

func (h *APIHandler) GetReport(ctx context.Context, input *struct{}) (*struct{ Body *report.Report }, error) {
	r, err := h.svc.Reports.Build(h.svc.Store.Snapshot())
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body *report.Report }{Body: r}, nil
}

func (h *APIHandler) GetSettings(ctx context.Context, input *struct{}) (*SettingsOutput, error) {
	return &SettingsOutput{Body: h.svc.Store.Settings()}, nil
}

func (h *APIHandler) PutSettings(ctx context.Context, input *struct{ Body scene.Settings }) (*SettingsOutput, error) {
	if input.Body != h.svc.Store.Settings() {
		if err := h.svc.Store.ApplySettings(input.Body); err != nil {
			return nil, httpError(err)
		}
	}
	return &SettingsOutput{Body: h.svc.Store.Settings()}, nil
}

func (h *APIHandler) GetCamera(ctx context.Context, input *struct{}) (*CameraOutput, error) {
	return &CameraOutput{Body: h.svc.Store.Camera()}, nil
}

func (h *APIHandler) PutCamera(ctx context.Context, input *struct{ Body scene.Camera }) (*CameraOutput, error) {
	c := input.Body
	if c.Zoom < 0 || c.Zoom > 24 {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("zoom %v out of range", c.Zoom))
	}
	h.svc.Store.SetCamera(c)
	return &CameraOutput{Body: h.svc.Store.Camera()}, nil
}

func (h *APIHandler) CreateShare(ctx context.Context, input *struct{}) (*struct{ Body ShareBody }, error) {
	snap := h.svc.Store.Snapshot()
	token, err := sharelink.Encode(snap)
	var link string
	if err == nil && h.svc.ShareBaseURL != "" {
		link, err = sharelink.EncodeURL(h.svc.ShareBaseURL, snap)
	}
	if h.svc.Metrics != nil {
		h.svc.Metrics.ShareEncoded(err)
	}
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body ShareBody }{Body: ShareBody{Token: token, URL: link}}, nil
}

func (h *APIHandler) LoadShare(ctx context.Context, input *struct{ Body LoadShareBody }) (*struct{ Body LoadShareResult }, error) {
	snap, err := sharelink.Decode(input.Body.Token)
	if h.svc.Metrics != nil {
		h.svc.Metrics.ShareDecoded(err)
	}
	if err != nil {
		h.logger.Warn("share link rejected", "error", err)
		return nil, httpError(err)
	}
	if err := h.svc.Store.Restore(snap); err != nil {
		return nil, httpError(err)
	}
	n := h.svc.Store.Len()
	return &struct{ Body LoadShareResult }{Body: LoadShareResult{
		Annotations: n,
		Message:     fmt.Sprintf("Loaded %d annotations", n),
	}}, nil
}
