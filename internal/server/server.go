// Package server exposes meshes and named simulations over HTTP.
//
//	GET    /healthz
//	GET    /meshes
//	GET    /meshes/{name}
//	GET    /simulations
//	POST   /simulations
//	GET    /simulations/{name}
//	POST   /simulations/{name}/frames?size=&count=
//	GET    /simulations/{name}/stream?size=&count=   (websocket)
//	DELETE /simulations/{name}
//
// Errors are JSON bodies {"error": "..."} with a status derived from the
// dynamo error taxonomy.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/san-kum/deform/internal/config"
	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/meshio"
	"github.com/san-kum/deform/internal/registry"
	"github.com/san-kum/deform/internal/sim"
)

const (
	// DefaultMaxSteps bounds frames*size for a single request.
	DefaultMaxSteps = 200000
	maxBodyBytes    = 1 << 20
)

type Server struct {
	registry *registry.Registry
	meshes   *meshio.Store
	logger   *slog.Logger
	maxSteps int
}

type Option func(*Server)

func WithMaxSteps(n int) Option {
	return func(s *Server) { s.maxSteps = n }
}

func New(reg *registry.Registry, meshes *meshio.Store, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry: reg,
		meshes:   meshes,
		logger:   logger,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /meshes", s.listMeshes)
	mux.HandleFunc("GET /meshes/{name}", s.getMesh)
	mux.HandleFunc("GET /simulations", s.listSimulations)
	mux.HandleFunc("POST /simulations", s.createSimulation)
	mux.HandleFunc("GET /simulations/{name}", s.getSimulation)
	mux.HandleFunc("POST /simulations/{name}/frames", s.stepSimulation)
	mux.HandleFunc("GET /simulations/{name}/stream", s.streamSimulation)
	mux.HandleFunc("DELETE /simulations/{name}", s.deleteSimulation)
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= 500 {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, dynamo.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dynamo.ErrExists):
		return http.StatusConflict
	case errors.Is(err, dynamo.ErrParameterBounds),
		errors.Is(err, dynamo.ErrDimensionMismatch),
		errors.Is(err, dynamo.ErrNotImplemented),
		errors.Is(err, dynamo.ErrSingular):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dynamo.ErrContextCanceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error(op, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug(op, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listMeshes(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if s.meshes != nil {
		var err error
		names, err = s.meshes.List()
		if err != nil {
			s.fail(w, r, "list meshes", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"meshes": names})
}

type meshBody struct {
	Name     string    `json:"name"`
	Vertices []float64 `json:"vertices"`
	Indices  []int     `json:"indices"`
}

func (s *Server) getMesh(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.meshes == nil {
		s.fail(w, r, "get mesh", fmt.Errorf("mesh %q: %w", name, dynamo.ErrNotFound))
		return
	}
	geo, err := s.meshes.Load(name)
	if err != nil {
		s.fail(w, r, "get mesh", err)
		return
	}

	body := meshBody{
		Name:     name,
		Vertices: make([]float64, 0, 2*len(geo.Vertices)),
		Indices:  make([]int, 0, 3*len(geo.Triangles)),
	}
	for _, v := range geo.Vertices {
		body.Vertices = append(body.Vertices, v[0], v[1])
	}
	for _, tri := range geo.Triangles {
		body.Indices = append(body.Indices, tri[0], tri[1], tri[2])
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listSimulations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]registry.Info{"simulations": s.registry.List()})
}

// createSimulation decodes a config over the defaults, builds the
// simulation and registers it under cfg.Name.
func (s *Server) createSimulation(w http.ResponseWriter, r *http.Request) {
	cfg := config.DefaultConfig()
	cfg.Pin = config.PinConfig{}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		s.fail(w, r, "create simulation", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if cfg.Mesh.Path != "" {
		s.fail(w, r, "create simulation", fmt.Errorf("%w: mesh.path is not accepted, use mesh.name", errBadRequest))
		return
	}
	if err := cfg.Validate(); err != nil {
		s.fail(w, r, "create simulation", err)
		return
	}
	if s.registry.Exists(cfg.Name) {
		s.fail(w, r, "create simulation", fmt.Errorf("simulation %q: %w", cfg.Name, dynamo.ErrExists))
		return
	}

	geo, err := sim.ResolveGeometry(cfg, s.meshes)
	if err != nil {
		s.fail(w, r, "create simulation", err)
		return
	}
	simulation, err := sim.FromConfig(cfg, geo)
	if err != nil {
		s.fail(w, r, "create simulation", err)
		return
	}
	if err := s.registry.Add(simulation); err != nil {
		s.fail(w, r, "create simulation", err)
		return
	}

	s.logger.Info("simulation created", "name", cfg.Name, "simulation", simulation.String())
	info, err := s.registry.Describe(cfg.Name)
	if err != nil {
		s.fail(w, r, "create simulation", err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) getSimulation(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.Describe(r.PathValue("name"))
	if err != nil {
		s.fail(w, r, "get simulation", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", errBadRequest, key, raw)
	}
	return v, nil
}

// frameRequest reads size and count for a named simulation. Defaults come
// from the simulation's config and a single frame.
func (s *Server) frameRequest(r *http.Request, name string) (int, int, error) {
	size, count := config.DefaultFrameSize, 1
	err := s.registry.With(name, func(sm *sim.Simulation) error {
		if cfg := sm.Config(); cfg != nil {
			size = cfg.Frames.Size
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if size, err = queryInt(r, "size", size); err != nil {
		return 0, 0, err
	}
	if count, err = queryInt(r, "count", count); err != nil {
		return 0, 0, err
	}
	if size < 1 || count < 1 || size > s.maxSteps || count > s.maxSteps || size*count > s.maxSteps {
		return 0, 0, fmt.Errorf("%d frames of %d steps (max %d steps): %w", count, size, s.maxSteps, dynamo.ErrParameterBounds)
	}
	return size, count, nil
}

// stepSimulation advances a registered simulation by count frames of size
// steps each.
func (s *Server) stepSimulation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	size, count, err := s.frameRequest(r, name)
	if err != nil {
		s.fail(w, r, "step simulation", err)
		return
	}

	payload, err := s.registry.Batch(r.Context(), name, size, count)
	if err != nil {
		s.fail(w, r, "step simulation", err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1 << 16,
}

// streamSimulation upgrades to a websocket and sends each of count frames
// as a JSON message as soon as it is computed. A failed step is sent as
// an error message before the connection closes. The stream stops early
// when the client goes away.
func (s *Server) streamSimulation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	size, count, err := s.frameRequest(r, name)
	if err != nil {
		s.fail(w, r, "stream simulation", err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "path", r.URL.Path, "err", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < count; i++ {
		frame, err := s.registry.Step(ctx, name, size)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("stream step failed", "name", name, "err", err)
				_ = ws.WriteJSON(errorBody{Error: err.Error()})
			}
			return
		}
		if err := ws.WriteJSON(frame); err != nil {
			s.logger.Debug("stream write failed", "name", name, "err", err)
			return
		}
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func (s *Server) deleteSimulation(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(r.PathValue("name")); err != nil {
		s.fail(w, r, "delete simulation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
