// Package bundle inspects built asset bundles.
//
// A bundle is the directory a build stage produces: index.html plus the
// hashed JS/CSS/media assets next to it. The scanner walks the directory
// and produces a BundleManifest — the inventory used for image labels,
// build history records, and publish key prefixes.
//
// The aggregate digest is content-derived: SHA-256 over the sorted list of
// "path:filedigest" lines. Two bundles with identical file contents always
// share a digest, regardless of file timestamps or scan order.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// entrypointName is the file every bundle must contain. The runtime
// server falls back to it for unmatched routes, so a bundle without it
// cannot be served.
const entrypointName = "index.html"

// Scan walks the bundle directory at root and builds its manifest.
//
// Rules:
//   - only regular files are recorded; directories provide structure,
//     symlinks are rejected to keep published bundles self-contained
//   - paths in the manifest are bundle-relative with forward slashes
//   - the bundle must contain index.html at its top level
//
// Returns a CLIError with ExitBundleInvalid if the directory is missing,
// empty, contains a symlink, or lacks the entrypoint.
func Scan(root string) (*model.BundleManifest, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitBundleInvalid,
			fmt.Sprintf("bundle directory %s does not exist — did the build stage run?", root),
			err,
		)
	}
	if !info.IsDir() {
		return nil, model.NewCLIError(
			model.ExitBundleInvalid,
			fmt.Sprintf("bundle path %s is not a directory", root),
		)
	}

	var files []model.BundleFile
	var total int64

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		// Symlinks could point outside the bundle; a published copy of
		// the bundle would then differ from the scanned one.
		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("bundle contains symlink %s", path)
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("bundle contains non-regular file %s", path)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		digest, size, err := hashFile(path)
		if err != nil {
			return err
		}

		files = append(files, model.BundleFile{
			// ToSlash keeps manifest paths platform-independent, matching
			// the URL paths the server and publisher derive from them.
			Path:   filepath.ToSlash(rel),
			Size:   size,
			SHA256: digest,
		})
		total += size
		return nil
	})
	if walkErr != nil {
		return nil, model.WrapCLIError(
			model.ExitBundleInvalid,
			fmt.Sprintf("failed to scan bundle %s", root),
			walkErr,
		)
	}

	if len(files) == 0 {
		return nil, model.NewCLIError(
			model.ExitBundleInvalid,
			fmt.Sprintf("bundle directory %s is empty", root),
		)
	}

	// WalkDir visits lexically, but sort explicitly so the digest
	// derivation does not depend on walk-order guarantees.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	if !containsEntrypoint(files) {
		return nil, model.NewCLIError(
			model.ExitBundleInvalid,
			fmt.Sprintf("bundle %s has no %s entrypoint", root, entrypointName),
		)
	}

	return &model.BundleManifest{
		Entrypoint: entrypointName,
		Files:      files,
		TotalBytes: total,
		Digest:     aggregateDigest(files),
	}, nil
}

// containsEntrypoint reports whether index.html exists at the bundle root.
// Nested index.html files (e.g., docs/index.html) do not count.
func containsEntrypoint(files []model.BundleFile) bool {
	for _, f := range files {
		if f.Path == entrypointName {
			return true
		}
	}
	return false
}

// hashFile returns the lowercase hex SHA-256 of the file contents and its size.
// The file is streamed through the hash rather than read whole, since asset
// bundles can contain large media files.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// aggregateDigest derives the bundle-wide digest from the sorted file list.
// Each file contributes one "path:digest" line; the digest is the SHA-256
// of the concatenation. File sizes are implied by the content digests and
// are deliberately excluded.
func aggregateDigest(files []model.BundleFile) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Path)
		b.WriteByte(':')
		b.WriteString(f.SHA256)
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
