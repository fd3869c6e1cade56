// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-pyro/internal/annotation"
	"github.com/joeblew999/plat-pyro/internal/observability"
	"github.com/joeblew999/plat-pyro/internal/report"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/service"
	"github.com/joeblew999/plat-pyro/internal/sharelink"
	"github.com/joeblew999/plat-pyro/internal/tiler"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers. Metrics and
// Logger may be nil.
type Services struct {
	Store        *scene.Store
	Palette      *service.PaletteService
	Reports      *report.Generator
	Metrics      *observability.Metrics
	ShareBaseURL string
	Logger       *slog.Logger
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status      string `json:"status" doc:"Health status" example:"ok"`
	Version     string `json:"version" doc:"API version" example:"0.1.0"`
	Annotations int    `json:"annotations" doc:"Annotations in the scene"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc    *Services
	logger *slog.Logger
}

func NewAPIHandler(svc *Services) *APIHandler {
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{svc: svc, logger: logger.With("component", "api")}
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services, dataDir string) {
	huma.AutoRegister(api, NewAPIHandler(svc))
	NewInfoHandler(dataDir).RegisterRoutes(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{
		Status:      "ok",
		Version:     Version,
		Annotations: h.svc.Store.Len(),
	}}, nil
}

// httpError maps domain errors onto Huma status errors.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrPaletteNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrPaletteDuplicate):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, annotation.ErrUnknownKind),
		errors.Is(err, scene.ErrInvalidSetting),
		errors.Is(err, scene.ErrUnknownSetting),
		errors.Is(err, scene.ErrInvalidSnapshot),
		errors.Is(err, service.ErrPaletteInvalid),
		errors.Is(err, sharelink.ErrNoState),
		errors.Is(err, tiler.ErrEmpty),
		errors.Is(err, tiler.ErrZoomRange),
		errors.Is(err, tiler.ErrTooManyTiles):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
