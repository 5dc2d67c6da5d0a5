// Package api serves the graph and the simulator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/metakg"
	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/simulate"
	"github.com/matsen/metakg/internal/storage"
)

// maxBodyBytes bounds simulation request bodies.
const maxBodyBytes = 1 << 20

// Graph is the read and simulate surface the handlers use.
type Graph interface {
	Stats(ctx context.Context) (*storage.Stats, error)
	Resolve(ctx context.Context, query string) (string, error)
	Node(ctx context.Context, query string) (*model.Node, error)
	GetCompound(ctx context.Context, query string) (*storage.CompoundDetail, error)
	GetReaction(ctx context.Context, query string) (*storage.ReactionDetail, error)
	FindPath(ctx context.Context, from, to string, maxHops int) (*storage.Path, error)
	Simulator() *simulate.Simulator
}

// Handler holds the graph behind the routes.
type Handler struct {
	kg      Graph
	maxHops int
	logger  *slog.Logger
	limiter *rate.Limiter
}

// Option configures NewRouter.
type Option func(*Handler)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMaxHops sets the path search limit used when a request gives none.
func WithMaxHops(n int) Option {
	return func(h *Handler) { h.maxHops = n }
}

// WithSimulateRate limits simulation requests to perSecond with the given
// burst. Excess requests get 429. perSecond <= 0 disables the limit.
func WithSimulateRate(perSecond float64, burst int) Option {
	return func(h *Handler) {
		if perSecond <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewRouter returns the HTTP handler for every /api route.
func NewRouter(kg Graph, opts ...Option) http.Handler {
	h := &Handler{kg: kg, maxHops: storage.DefaultMaxHops, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", h.handleHealth)
		api.Get("/stats", h.handleStats)
		api.Get("/resolve", h.handleResolve)
		api.Get("/nodes/{id}", h.handleNode)
		api.Get("/compounds/{id}", h.handleCompound)
		api.Get("/reactions/{id}", h.handleReaction)
		api.Get("/path", h.handlePath)

		api.Route("/simulate", func(sim chi.Router) {
			sim.Use(h.limitSimulations)
			sim.Post("/fba", h.handleFBA)
			sim.Post("/ode", h.handleODE)
			sim.Post("/whatif", h.handleWhatIf)
		})
	})
	return r
}

// requestLogger logs one line per request and puts the logger in the request context.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := h.logger.With("request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctxlog.WithLogger(r.Context(), logger)))
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// limitSimulations rejects requests beyond the configured rate.
func (h *Handler) limitSimulations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody("simulation rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.kg.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter q is required"))
		return
	}
	id, err := h.kg.Resolve(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"query": q, "id": id})
}

func (h *Handler) handleNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.kg.Node(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) handleCompound(w http.ResponseWriter, r *http.Request) {
	d, err := h.kg.GetCompound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleReaction(w http.ResponseWriter, r *http.Request) {
	d, err := h.kg.GetReaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" || to == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters from and to are required"))
		return
	}
	hops := h.maxHops
	if s := q.Get("max_hops"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("max_hops must be a positive integer"))
			return
		}
		hops = n
	}

	p, err := h.kg.FindPath(r.Context(), from, to, hops)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no path within "+strconv.Itoa(hops)+" hops"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// WhatIfRequest is the body of POST /api/simulate/whatif.
type WhatIfRequest struct {
	Config   *simulate.Config  `json:"config,omitempty"`
	Scenario simulate.Scenario `json:"scenario"`
	Mode     string            `json:"mode"`
}

func (h *Handler) handleFBA(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}
	res, err := h.kg.Simulator().RunFBA(r.Context(), cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleODE(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}
	res, err := h.kg.Simulator().RunODE(r.Context(), cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleWhatIf(w http.ResponseWriter, r *http.Request) {
	// Absent config fields keep their defaults, as in decodeConfig.
	cfg := simulate.DefaultConfig()
	req := WhatIfRequest{Config: &cfg, Mode: simulate.ModeFBA}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Config == nil {
		req.Config = &cfg
	}
	res, err := h.kg.Simulator().RunWhatIf(r.Context(), *req.Config, req.Scenario, req.Mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeConfig reads a simulation config, starting from the defaults so
// absent fields keep their default values.
func (h *Handler) decodeConfig(w http.ResponseWriter, r *http.Request) (simulate.Config, bool) {
	cfg := simulate.DefaultConfig()
	return cfg, decodeBody(w, r, &cfg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid payload: "+err.Error()))
		return false
	}
	return true
}

// writeError maps err to a status: 400 for invalid configs, 404 for
// unresolved ids, 500 otherwise.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, simulate.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, metakg.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		ctxlog.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
