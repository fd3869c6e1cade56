package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-pyro/internal/api"
	"github.com/joeblew999/plat-pyro/internal/api/editor"
	"github.com/joeblew999/plat-pyro/internal/humastar"
	"github.com/joeblew999/plat-pyro/internal/observability"
	"github.com/joeblew999/plat-pyro/internal/report"
	"github.com/joeblew999/plat-pyro/internal/scene"
	"github.com/joeblew999/plat-pyro/internal/service"
	"github.com/joeblew999/plat-pyro/internal/sharelink"
	"github.com/joeblew999/plat-pyro/internal/surface"
	"github.com/joeblew999/plat-pyro/internal/templates"
)

//go:embed static
var staticFiles embed.FS

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	DataDir      string  // palette.yaml lives here
	WebDir       string  // optional override for templates/ and static/
	MinSizeFeet  float64 // smallest rectangle side; 0 means the default
	ShareBaseURL string  // prefix of generated share links
	InitialShare string  // share URL, fragment or token to start from
	Logger       *slog.Logger
	Registerer   prometheus.Registerer // nil means a server-local registry
}

// Server is the pyro HTTP server.
type Server struct {
	config   Config
	logger   *slog.Logger
	mux      *http.ServeMux
	humaAPI  huma.API
	gatherer prometheus.Gatherer

	store    *scene.Store
	bus      *service.EventBus
	palette  *service.PaletteService
	metrics  *observability.Metrics
	reports  *report.Generator
	renderer *templates.Renderer
	surface  *editor.RemoteSurface
	binder   *surface.Binder
}

// New creates a new pyro server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	switch reg := cfg.Registerer.(type) {
	case nil:
		local := prometheus.NewRegistry()
		cfg.Registerer, gatherer = local, local
	case prometheus.Gatherer:
		gatherer = reg
	}
	metrics := observability.NewMetrics(cfg.Registerer)

	storeOpts := []scene.Option{scene.WithLogger(logger), scene.WithRecorder(metrics)}
	if cfg.MinSizeFeet > 0 {
		storeOpts = append(storeOpts, scene.WithMinSizeFeet(cfg.MinSizeFeet))
	}
	store := scene.NewStore(storeOpts...)
	bus := service.NewEventBus()
	service.PublishScene(store, bus)

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		gatherer: gatherer,
		store:    store,
		bus:      bus,
		palette:  service.NewPaletteService(cfg.DataDir, bus, logger),
		metrics:  metrics,
		reports:  report.NewGenerator(),
		renderer: loadRenderer(cfg.WebDir, logger),
		surface:  editor.NewRemoteSurface(logger),
	}
	s.binder = surface.NewBinder(store, s.surface, logger)
	s.loadInitialShare()
	s.binder.Bind()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-pyro API", api.Version)
	humaConfig.Info.Description = "Annotate pyrotechnic display sites: shells with fallout radii, audience and restricted zones, measurements and markers."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(api.Links))
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	return s
}

func loadRenderer(webDir string, logger *slog.Logger) *templates.Renderer {
	if webDir != "" {
		dir := filepath.Join(webDir, "templates")
		if _, err := os.Stat(dir); err == nil {
			r, err := templates.NewFromDir(dir)
			if err == nil {
				logger.Info("loaded templates", "dir", dir)
				return r
			}
			logger.Warn("templates unusable, using built-in set", "dir", dir, "error", err)
		}
	}
	r, err := templates.NewEmbedded()
	if err != nil {
		// Embedded templates are parsed by the tests; this is a build defect.
		panic(err)
	}
	return r
}

// loadInitialShare restores the configured share link. A link that cannot
// be read starts an empty scene.
func (s *Server) loadInitialShare() {
	if s.config.InitialShare == "" {
		return
	}
	snap, ok := sharelink.Load(s.config.InitialShare, s.logger)
	s.metrics.ShareLoaded(ok)
	if err := s.store.Restore(snap); err != nil {
		s.logger.Warn("initial share link rejected, starting empty", "error", err)
		return
	}
	s.logger.Info("scene loaded from share link", "annotations", s.store.Len())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document of the REST and editor routes.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Store exposes the scene, for the CLI and tests.
func (s *Server) Store() *scene.Store {
	return s.store
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, &api.Services{
		Store:        s.store,
		Palette:      s.palette,
		Reports:      s.reports,
		Metrics:      s.metrics,
		ShareBaseURL: s.config.ShareBaseURL,
		Logger:       s.logger,
	}, s.config.DataDir)

	// Register Editor SSE routes using Huma + Datastar SDK
	editor.NewHandler(editor.Deps{
		Store:        s.store,
		Surface:      s.surface,
		Binder:       s.binder,
		Palette:      s.palette,
		Bus:          s.bus,
		Metrics:      s.metrics,
		Renderer:     s.renderer,
		ShareBaseURL: s.config.ShareBaseURL,
		Logger:       s.logger,
	}).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.staticFS()))))

	// Page routes
	s.mux.HandleFunc("/editor", s.handleEditor)
	s.mux.HandleFunc("/report", s.handleReport)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) staticFS() fs.FS {
	if s.config.WebDir != "" {
		dir := filepath.Join(s.config.WebDir, "static")
		if _, err := os.Stat(dir); err == nil {
			return os.DirFS(dir)
		}
	}
	sub, _ := fs.Sub(staticFiles, "static")
	return sub
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range api.Links["/health"] {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"service":     "plat-pyro",
		"status":      "running",
		"annotations": s.store.Len(),
		"editor":      "/editor",
	})
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	settings := s.store.Settings()
	signals, _ := json.Marshal(map[string]any{
		"measurementunit": string(settings.Unit),
		"safetydistance":  strconv.Itoa(settings.SafetyDistance),
		"shareurl":        "",
		"error":           "",
		"success":         "",
	})
	title := settings.ProjectName
	if title == "" {
		title = "Pyro site plan"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.renderer.Execute(w, "editor.html", map[string]any{
		"Title":   title,
		"Signals": string(signals),
		"Palette": s.palette.List(),
	})
	if err != nil {
		s.logger.Error("render editor", "error", err)
	}
}

// handleReport renders the printable report. ?s= renders a share link
// instead of the live scene.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	if token := r.URL.Query().Get(sharelink.Key); token != "" {
		var err error
		snap, err = sharelink.Decode(token)
		s.metrics.ShareDecoded(err)
		if err != nil {
			http.Error(w, "share link could not be read", http.StatusUnprocessableEntity)
			return
		}
	}

	rep, err := s.reports.Build(snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Execute(w, "report.html", rep); err != nil {
		s.logger.Error("render report", "error", err)
	}
}
