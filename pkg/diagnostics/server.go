// Package diagnostics serves a read-only HTTP view of a running bridge:
// its state, the recent frame trace and runtime memory samples.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/fonline/droidbridge/pkg/bridge"
	"github.com/fonline/droidbridge/pkg/logging"
	"github.com/fonline/droidbridge/pkg/render"
)

var log = logging.MustGetLogger("diagnostics")

// Source is what the server inspects; *bridge.Bridge satisfies it.
type Source interface {
	Status() bridge.Status
	Trace() *render.FrameTraceBuffer
}

// Config configures a Server.
type Config struct {
	// Port to listen on; 0 picks an ephemeral port.
	Port int
	// RuntimeSampleInterval and RuntimeSampleWindow size the runtime
	// history. Intervals below one second are raised to one second.
	RuntimeSampleInterval time.Duration
	RuntimeSampleWindow   time.Duration
}

// Server is the debug HTTP server.
type Server struct {
	src     Source
	port    int
	runtime *RuntimeSampleBuffer
	sampler sampler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New returns a stopped server for src.
func New(src Source, cfg Config) *Server {
	return &Server{
		src:     src,
		port:    cfg.Port,
		runtime: NewRuntimeSampleBuffer(cfg.RuntimeSampleWindow, cfg.RuntimeSampleInterval),
	}
}

// Handler returns the router serving the debug endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/frames", s.handleFrames)
	r.Get("/runtime", s.handleRuntime)
	r.Get("/jank", s.handleJank)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithField("status", ww.Status()).
			WithField("elapsed", time.Since(start)).
			Debugf("%s %s", r.Method, r.URL.Path)
	})
}

// Start binds the listener, starts runtime sampling and serves in the
// background. It returns the bound port. Starting a running server returns
// its current port.
func (s *Server) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return s.listener.Addr().(*net.TCPAddr).Port, nil
	}

	// Bind first to fail fast on port conflicts.
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return 0, fmt.Errorf("debug server listen: %w", err)
	}
	server := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.server = server
	s.listener = listener
	s.sampler.start(s.runtime)

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.mu.Lock()
			if s.server == server {
				s.server = nil
				s.listener = nil
			}
			s.mu.Unlock()
			log.WithError(err).Error("debug server stopped")
		}
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	log.Infof("debug server listening on :%d", port)
	return port, nil
}

// Stop shuts the server down and stops runtime sampling.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	s.sampler.halt()
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("debug server shutdown")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.src.Status())
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	trace := s.src.Trace()
	if trace == nil {
		http.Error(w, "frame tracing disabled", http.StatusServiceUnavailable)
		return
	}
	resp := trace.Snapshot()
	applyFrameFilters(r, &resp)
	writeJSON(w, resp)
}

func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Samples []RuntimeSample `json:"samples"`
	}{
		Samples: applyRuntimeFilters(r, s.runtime.Snapshot()),
	}
	writeJSON(w, resp)
}

// handleJank returns the frame trace and runtime samples together.
func (s *Server) handleJank(w http.ResponseWriter, r *http.Request) {
	trace := s.src.Trace()
	if trace == nil {
		http.Error(w, "frame tracing disabled", http.StatusServiceUnavailable)
		return
	}
	frames := trace.Snapshot()
	applyFrameFilters(r, &frames)

	resp := struct {
		Frames  render.FrameTimeline `json:"frames"`
		Runtime []RuntimeSample      `json:"runtime"`
	}{
		Frames:  frames,
		Runtime: applyRuntimeFilters(r, s.runtime.Snapshot()),
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	// Encode to a buffer first so errors can still become a 500.
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func applyFrameFilters(r *http.Request, resp *render.FrameTimeline) {
	var filters []func(render.FrameSample) bool

	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s render.FrameSample) bool { return s.FrameMs >= v })
	}
	if parseBoolQuery(r, "lock_failed") {
		filters = append(filters, func(s render.FrameSample) bool { return s.LockFailed })
	}
	if session := r.URL.Query().Get("session"); session != "" {
		filters = append(filters, func(s render.FrameSample) bool { return s.Session == session })
	}

	if len(filters) > 0 {
		filtered := make([]render.FrameSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit := parseLimit(r); limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}

func applyRuntimeFilters(r *http.Request, samples []RuntimeSample) []RuntimeSample {
	if windowSeconds := parseFloatQuery(r, "window"); windowSeconds > 0 {
		cutoff := time.Now().Add(-time.Duration(windowSeconds * float64(time.Second))).UnixMilli()
		filtered := make([]RuntimeSample, 0, len(samples))
		for _, sample := range samples {
			if sample.Timestamp >= cutoff {
				filtered = append(filtered, sample)
			}
		}
		samples = filtered
	}
	if limit := parseLimit(r); limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

func parseLimit(r *http.Request) int {
	parsed, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func parseFloatQuery(r *http.Request, key string) float64 {
	parsed, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseBoolQuery(r *http.Request, key string) bool {
	parsed, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && parsed
}
