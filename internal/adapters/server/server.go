// Package server mounts the board API and MCP tools on one chi router.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/evanschultz/boardsync/internal/adapters/server/common"
	"github.com/evanschultz/boardsync/internal/adapters/server/httpapi"
	"github.com/evanschultz/boardsync/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress  = "127.0.0.1:5437"
	defaultAPIEndpoint  = "/api/v1"
	defaultMCPEndpoint  = "/mcp"
	readHeaderTimeout   = 10 * time.Second
	shutdownGracePeriod = 5 * time.Second
)

// Config holds the listen address and mount points.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
}

// Dependencies are the board service both transports share and an optional
// request logger.
type Dependencies struct {
	Board  common.BoardService
	Logger *charmLog.Logger
}

// NewHandler builds the router: liveness, board readiness, the REST API under
// APIEndpoint and MCP at MCPEndpoint. It returns the normalized config.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Board == nil {
		return nil, Config{}, errors.New("board dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}

	tools, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, deps.Board)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, healthStatus{Status: "ok"})
	})
	r.Get("/readyz", readiness(deps.Board))
	r.Handle(cfg.MCPEndpoint, tools)
	r.Mount(cfg.APIEndpoint, httpapi.NewHandler(deps.Board))
	return r, cfg, nil
}

// Run listens on cfg.HTTPBind and serves until ctx ends, then drains
// in-flight requests.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	ln, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	if deps.Logger != nil {
		deps.Logger.Info("http server listening", "addr", ln.Addr().String(), "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	shutdownErr := srv.Shutdown(drainCtx)
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve after shutdown: %w", err)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	return nil
}

func normalizeConfig(cfg Config) (Config, error) {
	if cfg.HTTPBind = strings.TrimSpace(cfg.HTTPBind); cfg.HTTPBind == "" {
		cfg.HTTPBind = defaultBindAddress
	}
	cfg.APIEndpoint = mountPath(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = mountPath(cfg.MCPEndpoint, defaultMCPEndpoint)
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ: both %q", cfg.APIEndpoint)
	}
	if cfg.ServerName = strings.TrimSpace(cfg.ServerName); cfg.ServerName == "" {
		cfg.ServerName = "boardsync"
	}
	if cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion); cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	return cfg, nil
}

// mountPath cleans a mount point to "/a/b". Root or blank yields fallback.
func mountPath(raw, fallback string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return fallback
	}
	return "/" + trimmed
}

type healthStatus struct {
	Status    string `json:"status"`
	ProjectID string `json:"project_id,omitempty"`
	Tasks     int    `json:"tasks,omitempty"`
	Error     string `json:"error,omitempty"`
}

// readiness reports ready only once the board has loaded.
func readiness(board common.BoardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := board.Board(r.Context())
		if err != nil {
			writeStatus(w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Error: err.Error()})
			return
		}
		writeStatus(w, http.StatusOK, healthStatus{Status: "ready", ProjectID: view.ProjectID, Tasks: len(view.Tasks)})
	}
}

func writeStatus(w http.ResponseWriter, code int, body healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// requestLogger writes one debug line per request.
func requestLogger(logger *charmLog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
