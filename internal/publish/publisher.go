package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stagehand-cli/stagehand/internal/bundle"
	"github.com/stagehand-cli/stagehand/internal/model"
)

// manifestObjectName is the key suffix for the bundle manifest written
// alongside the published files.
const manifestObjectName = "manifest.json"

// Uploader is the object storage surface the Publisher needs. S3Client
// satisfies it; tests provide an in-memory fake.
type Uploader interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// Publisher uploads a scanned bundle to object storage.
type Publisher struct {
	uploader Uploader

	// Logf receives per-file progress messages. Nil disables logging.
	Logf func(format string, args ...interface{})
}

// NewPublisher creates a Publisher over the given uploader.
func NewPublisher(uploader Uploader) *Publisher {
	return &Publisher{
		uploader: uploader,
		Logf:     func(string, ...interface{}) {},
	}
}

// Publish uploads every file of the manifest from bundleDir under
// "<project>/<digest>/<relpath>", then writes the manifest itself as
// JSON at "<project>/<digest>/manifest.json". Keying by digest makes
// published bundles immutable: re-publishing the same bundle overwrites
// identical objects, while a changed bundle lands under a new prefix.
//
// Any failed upload aborts with a CLIError carrying ExitPublishFailed.
func (p *Publisher) Publish(ctx context.Context, project, bundleDir string, manifest *model.BundleManifest) error {
	prefix := project + "/" + manifest.Digest

	for _, f := range manifest.Files {
		data, err := os.ReadFile(filepath.Join(bundleDir, filepath.FromSlash(f.Path)))
		if err != nil {
			return model.WrapCLIError(
				model.ExitPublishFailed,
				fmt.Sprintf("failed to read bundle file %q", f.Path),
				err,
			)
		}

		key := prefix + "/" + f.Path
		if err := p.uploader.Put(ctx, key, bundle.ContentType(f.Path), data); err != nil {
			return model.WrapCLIError(
				model.ExitPublishFailed,
				fmt.Sprintf("failed to upload %q", key),
				err,
			)
		}
		p.Logf("uploaded %s (%d bytes)", key, len(data))
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return model.WrapCLIError(model.ExitPublishFailed, "failed to encode bundle manifest", err)
	}

	key := prefix + "/" + manifestObjectName
	if err := p.uploader.Put(ctx, key, "application/json", manifestJSON); err != nil {
		return model.WrapCLIError(
			model.ExitPublishFailed,
			fmt.Sprintf("failed to upload %q", key),
			err,
		)
	}
	p.Logf("uploaded %s", key)

	return nil
}
