package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stagehand-cli/stagehand/internal/model"
)

const (
	// defaultPollInterval bounds how stale a cached asset can be when
	// reload is enabled.
	defaultPollInterval = 2 * time.Second

	// shutdownTimeout is how long in-flight requests get to finish
	// after shutdown is requested.
	shutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// BundleDir is the built bundle directory to serve.
	BundleDir string

	// Port is the HTTP port to bind on all interfaces.
	Port int

	// MetricsPort, when non-zero, exposes Prometheus metrics on a
	// separate port at /metrics.
	MetricsPort int

	// Reload enables the bundle change watcher. When the bundle's
	// modification times change, the asset cache is invalidated.
	Reload bool

	// PollInterval is the watcher's polling interval. Zero means
	// defaultPollInterval.
	PollInterval time.Duration

	// Logf receives progress messages. Nil disables logging.
	Logf func(format string, args ...interface{})

	// Registry receives the server's Prometheus metrics. Nil means the
	// default registry; tests pass a fresh one to avoid duplicate
	// registration across server instances.
	Registry prometheus.Registerer
}

// Server serves a built bundle over HTTP.
type Server struct {
	opts    Options
	cache   *assetCache
	router  *gin.Engine
	metrics *Metrics
}

// New creates a Server for the given options. The bundle directory must
// contain an index.html entrypoint; anything else returns a CLIError
// with ExitBundleInvalid.
func New(opts Options) (*Server, error) {
	if _, err := os.Stat(filepath.Join(opts.BundleDir, "index.html")); err != nil {
		return nil, model.WrapCLIError(
			model.ExitBundleInvalid,
			fmt.Sprintf("bundle directory %q has no index.html", opts.BundleDir),
			err,
		)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...interface{}) {}
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.DefaultRegisterer
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		opts:    opts,
		cache:   newAssetCache(opts.BundleDir),
		router:  router,
		metrics: NewMetrics(opts.Registry),
	}

	router.Use(corsMiddleware(), s.countingMiddleware())
	router.GET("/healthz", s.handleHealth)
	// Everything else, "/" included, resolves against the bundle with
	// SPA fallback to index.html.
	router.NoRoute(s.handleAsset)

	return s, nil
}

// Handler returns the HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server and blocks until ctx is cancelled or the
// listener fails. On cancellation, in-flight requests get
// shutdownTimeout to complete.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.Reload {
		go s.watchBundle(ctx)
	}
	if s.opts.MetricsPort > 0 {
		go s.runMetricsServer(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.opts.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.opts.Logf("serving %s on http://localhost:%d", s.opts.BundleDir, s.opts.Port)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// corsMiddleware applies the permissive CORS policy the runtime expects:
// any origin, credentials allowed, all methods and headers. Preflight
// OPTIONS requests are answered immediately with 204.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// countingMiddleware records request and response-byte totals.
func (s *Server) countingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		s.metrics.requestsTotal.Inc()
		if size := c.Writer.Size(); size > 0 {
			s.metrics.bytesTotal.Add(float64(size))
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAsset serves a bundle file, falling back to index.html for
// unknown paths so client-side routing works after a full page reload.
func (s *Server) handleAsset(c *gin.Context) {
	a, err := s.cache.Get(c.Request.URL.Path)
	if err != nil {
		s.metrics.fallbackTotal.Inc()
		a, err = s.cache.Get("/index.html")
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
	}

	c.Data(http.StatusOK, a.contentType, a.data)
}

// watchBundle polls the bundle directory's modification times and
// invalidates the asset cache when they change.
func (s *Server) watchBundle(ctx context.Context) {
	lastMod, lastCount, err := latestModTime(s.opts.BundleDir)
	if err != nil {
		s.opts.Logf("bundle watcher disabled: %v", err)
		return
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mod, count, err := latestModTime(s.opts.BundleDir)
			if err != nil {
				// The bundle may be mid-rebuild; try again next tick.
				continue
			}
			if mod.After(lastMod) || count != lastCount {
				s.cache.Invalidate()
				s.metrics.reloadsTotal.Inc()
				s.opts.Logf("bundle changed, asset cache invalidated")
				lastMod, lastCount = mod, count
			}
		}
	}
}

// metricsHandler exposes the registry the server's metrics were
// registered on. A Registerer that is not also a Gatherer falls back to
// the process-wide default gatherer.
func (s *Server) metricsHandler() http.Handler {
	if g, ok := s.opts.Registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// runMetricsServer serves Prometheus metrics on the dedicated port.
func (s *Server) runMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metricsHandler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.opts.MetricsPort),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.opts.Logf("metrics server error: %v", err)
	}
}
