package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/agleyzer/dash2hls/internal/config"
	"github.com/agleyzer/dash2hls/internal/metrics"
	"github.com/agleyzer/dash2hls/internal/segment"
	"github.com/agleyzer/dash2hls/internal/stream"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"
)

// Resolver turns a stream source into a segment plan.
type Resolver interface {
	Resolve(ctx context.Context, src stream.Source) (segment.Plan, error)
}

// Server serves synthesized HLS playlists for the configured streams
type Server struct {
	cfg        *config.Config
	resolver   Resolver
	logger     *slog.Logger
	httpServer *http.Server
	inflight   singleflight.Group
	started    time.Time
}

// New creates a new HTTP server
func New(cfg *config.Config, resolver Resolver, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		resolver: resolver,
		logger:   logger,
		started:  time.Now(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/streams", s.handleStreams).Methods(http.MethodGet)
	router.HandleFunc("/streams/{name}/playlist.m3u8", s.handlePlaylist).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.Use(s.loggingMiddleware)

	return router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "port", s.cfg.Port, "streams", len(s.cfg.Streams))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// handlePlaylist fetches the stream's manifest and serves a playlist window
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	sc, ok := s.cfg.Streams[name]
	if !ok {
		http.Error(w, "Stream not found", http.StatusNotFound)
		return
	}

	offset, count, err := s.parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	src, err := sc.Source()
	if err != nil {
		s.logger.Error("invalid stream source", "stream", name, "error", err)
		http.Error(w, "Invalid stream configuration", http.StatusInternalServerError)
		return
	}

	plan, err := s.resolve(r.Context(), name, src)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("failed to resolve stream", "stream", name, "url", src.URL, "error", err)
		http.Error(w, "Failed to load manifest", http.StatusBadGateway)
		return
	}

	if plan.IsDynamic {
		metrics.LiveEdgeSegment.WithLabelValues(name).Set(float64(plan.EndNumber))
	} else if err := stream.CheckWindow(plan, plan.SeekToOffset(offset)); err != nil {
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
		return
	}

	start, content := stream.Window(plan, offset, count)

	// Set HLS-specific headers
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Media-Sequence", strconv.FormatInt(start, 10))

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

// resolve collapses concurrent manifest loads for the same stream. Results
// are not retained once the in-flight call completes.
func (s *Server) resolve(ctx context.Context, name string, src stream.Source) (segment.Plan, error) {
	ch := s.inflight.DoChan(name, func() (interface{}, error) {
		return s.resolver.Resolve(context.WithoutCancel(ctx), src)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return segment.Plan{}, res.Err
		}
		return res.Val.(segment.Plan), nil
	case <-ctx.Done():
		return segment.Plan{}, ctx.Err()
	}
}

func (s *Server) parseWindow(r *http.Request) (float64, int, error) {
	q := r.URL.Query()

	offset := 0.0
	if v := q.Get("offset"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
		offset = f
	}

	count := s.cfg.DefaultCount
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.cfg.MaxCount {
			return 0, 0, fmt.Errorf("invalid count %q (want 1..%d)", v, s.cfg.MaxCount)
		}
		count = n
	}

	return offset, count, nil
}

type streamInfo struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url"`
	Format   string `json:"format"`
	Playlist string `json:"playlist"`
}

// handleStreams lists the configured streams
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	streams := make([]streamInfo, 0, len(s.cfg.Streams))
	for _, name := range s.cfg.StreamNames() {
		sc := s.cfg.Streams[name]
		src, err := sc.Source()
		if err != nil {
			continue
		}
		streams = append(streams, streamInfo{
			Name:     name,
			Title:    sc.Title,
			URL:      src.URL,
			Format:   string(src.Format),
			Playlist: fmt.Sprintf("/streams/%s/playlist.m3u8", name),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(streams)
}

// handleHealth serves health check information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "ok",
		"streams": len(s.cfg.Streams),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// loggingMiddleware logs HTTP requests and records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		// Wrap the response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		s.logger.Info("HTTP request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", duration,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
