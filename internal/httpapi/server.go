// Package httpapi implements BrainStream's minimal HTTP surface: health,
// feed, article lookup/action, topology overview, source listing, and a
// manual collection trigger. Authentication and multi-user concerns are
// explicitly out of scope (spec Non-goals).
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catchup-feed/internal/collector"
	"catchup-feed/internal/config"
	"catchup-feed/internal/feed"
	"catchup-feed/internal/handler/http/pathutil"
	"catchup-feed/internal/handler/http/requestid"
	"catchup-feed/internal/handler/http/responsewriter"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/plugin"
	"catchup-feed/internal/scheduler"
	"catchup-feed/internal/topology"
)

// Server wires every HTTP-facing dependency and builds the routed handler.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	selector   *feed.Selector
	topo       *topology.Engine
	registry   *plugin.Registry
	collector  *collector.Collector
	scheduler  *scheduler.Scheduler
	startedAt  time.Time
	limiter    *ipRateLimiter
}

// New builds a Server. scheduler may be nil when running without the
// background scheduler (BRAINSTREAM_SCHEDULER=false).
func New(cfg *config.Config, logger *slog.Logger, selector *feed.Selector, topo *topology.Engine, registry *plugin.Registry, coll *collector.Collector, sched *scheduler.Scheduler) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		selector:  selector,
		topo:      topo,
		registry:  registry,
		collector: coll,
		scheduler: sched,
		startedAt: time.Now(),
		limiter:   newIPRateLimiter(10, 20),
	}
}

// Handler returns the fully wrapped root http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/feed", s.handleFeed)
	mux.HandleFunc("GET /api/v1/articles/{id}", s.handleGetArticle)
	mux.HandleFunc("POST /api/v1/articles/{id}/action", s.handleRecordAction)
	mux.HandleFunc("GET /api/v1/topology", s.handleTopology)
	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	mux.HandleFunc("POST /api/v1/collect", s.handleCollect)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = s.loggingMiddleware(h)
	h = s.metricsMiddleware(h)
	h = s.rateLimitMiddleware(h)
	h = requestid.Middleware(h)
	h = s.recoverMiddleware(h)
	return h
}

// metricsMiddleware records request counts and latency under a
// cardinality-bounded path label, using the teacher's response-writer
// wrapper to observe the real status code.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := responsewriter.Wrap(w)
		next.ServeHTTP(rw, r)
		path := pathutil.NormalizePath(r.URL.Path)
		metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(rw.StatusCode()), time.Since(start))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestid.FromContext(r.Context())),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", slog.Any("panic", rec))
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}
