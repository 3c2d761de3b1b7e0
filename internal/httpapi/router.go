package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docgate/internal/api"
	"docgate/internal/engine"
	"docgate/internal/gateway"
	"docgate/internal/logging"
	"docgate/internal/upload"
)

// EngineView is the read-only view of the engine the transport needs.
type EngineView interface {
	State() engine.State
	Registry() *engine.Registry
}

// StatusProvider assembles the /api/status payload.
type StatusProvider interface {
	Status(ctx context.Context) api.StatusResponse
}

// StatusFunc adapts a function to StatusProvider.
type StatusFunc func(ctx context.Context) api.StatusResponse

// Status implements StatusProvider.
func (f StatusFunc) Status(ctx context.Context) api.StatusResponse { return f(ctx) }

// Options wires the router to its collaborators.
type Options struct {
	Gateway   *gateway.Gateway
	Engine    EngineView
	Extractor *upload.Extractor
	Status    StatusProvider
	APIToken  string
	Logger    *slog.Logger
}

type server struct {
	gateway   *gateway.Gateway
	engine    EngineView
	extractor *upload.Extractor
	status    StatusProvider
	logger    *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Gateway == nil {
		return nil, errors.New("httpapi: gateway is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	s := &server{
		gateway:   opts.Gateway,
		engine:    opts.Engine,
		extractor: opts.Extractor,
		status:    opts.Status,
		logger:    opts.Logger,
	}
	if s.extractor == nil {
		s.extractor = upload.NewExtractor()
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = logging.NewComponentLogger(s.logger, "http")

	r := chi.NewRouter()
	r.Use(requestID, middleware.RealIP, accessLog(s.logger), middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Post("/convert/{ext}", s.handleConvert)
	r.Post("/converted/{name}", s.handleConverted)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(opts.APIToken))
		r.Get("/formats", s.handleFormats)
		r.Get("/status", s.handleStatus)
	})

	return r, nil
}
