package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// writeTestBundle creates a minimal bundle directory with index.html and
// a couple of assets.
func writeTestBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"index.html":    "<html><body>hello</body></html>",
		"assets/app.js": "console.log('hi');",
		"style.css":     "body { margin: 0; }",
	}
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	return dir
}

func newTestServer(t *testing.T, dir string) *Server {
	t.Helper()
	s, err := New(Options{
		BundleDir: dir,
		Registry:  prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return s
}

func TestNew_MissingIndex(t *testing.T) {
	_, err := New(Options{
		BundleDir: t.TempDir(),
		Registry:  prometheus.NewRegistry(),
	})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitBundleInvalid, cliErr.Code)
}

func TestServe_Root(t *testing.T) {
	s := newTestServer(t, writeTestBundle(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html><body>hello</body></html>", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestServe_Asset(t *testing.T) {
	s := newTestServer(t, writeTestBundle(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log('hi');", rec.Body.String())
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))
}

func TestServe_SPAFallback(t *testing.T) {
	s := newTestServer(t, writeTestBundle(t))

	// A client-side route has no file on disk; the server answers with
	// index.html so the SPA router can take over.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings/profile", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html><body>hello</body></html>", rec.Body.String())
}

func TestServe_CORSHeaders(t *testing.T) {
	s := newTestServer(t, writeTestBundle(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestServe_Preflight(t *testing.T) {
	s := newTestServer(t, writeTestBundle(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/assets/app.js", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServe_PathTraversal(t *testing.T) {
	dir := writeTestBundle(t)
	// Place a file just above the bundle root that must not be reachable.
	secret := filepath.Join(filepath.Dir(dir), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0o644))

	s := newTestServer(t, dir)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	// Bypass the request-line normalization httptest applies to the path.
	req.URL.Path = "/../secret.txt"
	s.Handler().ServeHTTP(rec, req)

	assert.NotContains(t, rec.Body.String(), "top secret")
}

// TestMetricsHandler_CustomRegistry verifies the metrics endpoint serves
// the registry the server's metrics were registered on, not the process
// default.
func TestMetricsHandler_CustomRegistry(t *testing.T) {
	s := newTestServer(t, writeTestBundle(t))

	// Generate a request so the counters have samples to expose.
	s.Handler().ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	s.metricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stagehand_requests_total")
}

func TestServe_Healthz(t *testing.T) {
	s := newTestServer(t, writeTestBundle(t))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCache_ServesUpdatedAssetAfterInvalidate(t *testing.T) {
	dir := writeTestBundle(t)
	s := newTestServer(t, dir)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	require.Equal(t, "<html><body>hello</body></html>", rec.Body.String())

	// Rewrite the file. The cached copy is served until invalidation.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("v2"), 0o644))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, "<html><body>hello</body></html>", rec.Body.String())

	s.cache.Invalidate()

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, "v2", rec.Body.String())
}

func TestLatestModTime_DetectsChanges(t *testing.T) {
	dir := writeTestBundle(t)

	mod1, count1, err := latestModTime(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, count1)

	// Adding a file changes the count even if mtime granularity hides
	// the timestamp change.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))

	mod2, count2, err := latestModTime(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, count2)
	assert.False(t, mod2.Before(mod1))
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "root", in: "/", want: "index.html"},
		{name: "plain asset", in: "/assets/app.js", want: "assets/app.js"},
		{name: "dot segments collapse", in: "/a/./b/../c.js", want: "a/c.js"},
		{name: "leading dotdot anchored at root", in: "/../etc/passwd", want: "etc/passwd"},
		{name: "empty", in: "", want: "index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizePath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatchBundle_InvalidatesOnChange(t *testing.T) {
	dir := writeTestBundle(t)
	s, err := New(Options{
		BundleDir:    dir,
		Reload:       true,
		PollInterval: 10 * time.Millisecond,
		Registry:     prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	// Prime the cache.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	require.Equal(t, "<html><body>hello</body></html>", rec.Body.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.watchBundle(ctx)

	// Adding a file bumps the walk's file count, which the watcher
	// treats as a bundle change regardless of mtime granularity.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
		return rec.Body.String() == "v2"
	}, 2*time.Second, 20*time.Millisecond)
}
