// Package server exposes the engine and the model store over HTTP.
//
// Models are uploaded as raw protobuf bytes and addressed by the SHA-256 digest of those
// bytes. Operations that produce a model store it and return its id.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/born-ml/onnxkit/internal/checker"
	"github.com/born-ml/onnxkit/internal/compose"
	"github.com/born-ml/onnxkit/internal/convert"
	"github.com/born-ml/onnxkit/internal/engine"
	"github.com/born-ml/onnxkit/internal/logging"
	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/store"
)

// DefaultMaxModelBytes bounds uploaded models unless WithMaxModelBytes says otherwise.
const DefaultMaxModelBytes = 256 << 20

// Server serves the HTTP API.
type Server struct {
	engine   *engine.Engine
	store    store.Store
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	maxBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer sets the registry served on /metrics (default: prometheus.DefaultGatherer).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMaxModelBytes bounds request bodies.
func WithMaxModelBytes(n int64) Option {
	return func(s *Server) { s.maxBytes = n }
}

// New creates a server over eng and st.
func New(eng *engine.Engine, st store.Store, opts ...Option) *Server {
	s := &Server{
		engine:   eng,
		store:    st,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
		maxBytes: DefaultMaxModelBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/models", func(r chi.Router) {
			r.Put("/", s.putModel)
			r.Get("/", s.listModels)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getModel)
				r.Delete("/", s.deleteModel)
				r.Get("/inspect", s.inspectModel)
				r.Post("/check", s.checkModel)
				r.Post("/convert", s.convertModel)
				r.Post("/sort", s.sortModel)
			})
		})
		r.Post("/merge", s.merge)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Response bodies.
type (
	modelResponse struct {
		ID string `json:"id"`
	}
	listResponse struct {
		IDs []string `json:"ids"`
	}
	checkResponse struct {
		Valid    bool     `json:"valid"`
		Warnings []string `json:"warnings"`
	}
	errorResponse struct {
		Error string `json:"error"`
		Kind  string `json:"kind,omitempty"`
	}
)

// MergeRequest is the body of POST /v1/merge. First and Second are model ids.
type MergeRequest struct {
	First   string          `json:"first"`
	Second  string          `json:"second"`
	IOMap   []compose.Pair  `json:"io_map"`
	Options compose.Options `json:"options"`
}

// pinger is implemented by stores backed by a remote service.
type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("store unreachable", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) putModel(w http.ResponseWriter, r *http.Request) {
	data, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// Stored models only need to decode; validity is reported by the check endpoint.
	if _, err := onnx.Decode(data); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.store.Put(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/models/"+id)
	writeJSON(w, http.StatusCreated, modelResponse{ID: id})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, listResponse{IDs: ids})
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := store.ValidateID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) inspectModel(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.engine.Inspect(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) checkModel(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.engine.Check(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := checkResponse{Valid: true, Warnings: []string{}}
	for _, warning := range report.Warnings {
		resp.Warnings = append(resp.Warnings, warning.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) convertModel(w http.ResponseWriter, r *http.Request) {
	target, err := strconv.ParseInt(r.URL.Query().Get("target"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query parameter target must be an integer", Kind: "bad request"})
		return
	}
	data, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.engine.Convert(r.Context(), data, target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.storeResult(w, r, out)
}

func (s *Server) sortModel(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.engine.Sort(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.storeResult(w, r, out)
}

func (s *Server) merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error(), Kind: "bad request"})
		return
	}
	first, err := s.store.Get(r.Context(), req.First)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("first model: %w", err))
		return
	}
	second, err := s.store.Get(r.Context(), req.Second)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("second model: %w", err))
		return
	}
	out, err := s.engine.Merge(r.Context(), first, second, req.IOMap, req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.storeResult(w, r, out)
}

func (s *Server) storeResult(w http.ResponseWriter, r *http.Request, data []byte) {
	id, err := s.store.Put(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/models/"+id)
	writeJSON(w, http.StatusCreated, modelResponse{ID: id})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errTooLarge
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return data, nil
}

var errTooLarge = errors.New("model too large")

// statusOf maps an error to its HTTP status and a short kind label.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest, "invalid id"
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "too large"
	case engine.IsDefect(err):
		return http.StatusInternalServerError, "internal defect"
	case errors.Is(err, onnx.ErrMalformed):
		return http.StatusBadRequest, "malformed model"
	case errors.Is(err, onnx.ErrCycle):
		return http.StatusBadRequest, "cycle"
	case errors.Is(err, checker.ErrInvalidModel):
		return http.StatusBadRequest, "invalid model"
	case errors.Is(err, compose.ErrCompose):
		return http.StatusBadRequest, "compose"
	case errors.Is(err, convert.ErrConvert):
		return http.StatusBadRequest, "convert"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
