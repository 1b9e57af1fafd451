package server

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/stagehand-cli/stagehand/internal/bundle"
)

// asset is one cached bundle file.
type asset struct {
	data        []byte
	contentType string
}

// assetCache holds bundle files in memory, loading them from disk on
// first access. Invalidate drops everything so the next request re-reads
// from disk; the watcher calls it when bundle mtimes change.
type assetCache struct {
	root string

	mu      sync.RWMutex
	entries map[string]*asset
}

func newAssetCache(root string) *assetCache {
	return &assetCache{
		root:    root,
		entries: make(map[string]*asset),
	}
}

// Get returns the asset for a request path like "/assets/app.js".
// Paths that escape the bundle directory and paths that don't name a
// regular file return an error; the caller decides whether that means
// SPA fallback or a hard failure.
func (c *assetCache) Get(requestPath string) (*asset, error) {
	rel, err := sanitizePath(requestPath)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	cached, ok := c.entries[rel]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	full := filepath.Join(c.root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", rel)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	a := &asset{
		data:        data,
		contentType: bundle.ContentType(rel),
	}

	c.mu.Lock()
	c.entries[rel] = a
	c.mu.Unlock()

	return a, nil
}

// Invalidate drops all cached entries.
func (c *assetCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]*asset)
	c.mu.Unlock()
}

// sanitizePath converts a request URL path to a bundle-relative slash
// path, rejecting anything that would escape the bundle directory.
func sanitizePath(requestPath string) (string, error) {
	cleaned := path.Clean("/" + requestPath)
	rel := strings.TrimPrefix(cleaned, "/")
	if rel == "" {
		rel = "index.html"
	}
	// path.Clean resolves embedded ".." segments; anything left over
	// points above the bundle root.
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %q escapes the bundle directory", requestPath)
	}
	return rel, nil
}

// latestModTime walks the bundle directory and returns the newest
// modification time of any regular file, along with the file count.
// The count is included so deletions (which can leave the max mtime
// unchanged) are still detected as changes.
func latestModTime(root string) (time.Time, int, error) {
	var latest time.Time
	count := 0

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		count++
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return time.Time{}, 0, err
	}

	return latest, count, nil
}
