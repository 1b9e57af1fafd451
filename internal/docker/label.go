package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Label key constants define the Docker label keys used to persist build
// metadata on images and containers. These labels serve as the sole
// persistence mechanism on the Docker side — containers and images can be
// discovered and attributed without consulting the history database.
//
// All keys share the "stagehand." prefix to namespace them and avoid
// collisions with labels set by other tools (Docker Compose, CI systems).
const (
	// LabelPrefix is the common prefix for all stagehand labels.
	LabelPrefix = "stagehand."

	// LabelManagedBy identifies images and containers created by stagehand.
	// This is the primary label used for filtering and discovery.
	// Key: "stagehand.managed-by", Value: always "stagehand".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelProject stores the project name from the build descriptor.
	// Key: "stagehand.project", Value: project name (e.g., "my-app").
	LabelProject = LabelPrefix + "project"

	// LabelDigest stores the full bundle digest the image was built from.
	// Key: "stagehand.digest", Value: 64-char hex SHA-256.
	LabelDigest = LabelPrefix + "digest"

	// LabelPort stores the container port the runtime stage exposes.
	// Key: "stagehand.port", Value: decimal port number.
	LabelPort = LabelPrefix + "port"

	// LabelCreatedAt stores the build timestamp.
	// Key: "stagehand.created-at", Value: RFC3339 formatted timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
// Every image and container created by this CLI is tagged with this value,
// enabling discovery via Docker API label filters.
const ManagedByValue = "stagehand"

// Metadata is the build metadata encoded into Docker labels. It can be
// fully reconstructed from image or container inspection alone.
type Metadata struct {
	// Project is the descriptor's project name.
	Project string

	// Digest is the full bundle digest the image was built from.
	Digest string

	// Port is the exposed container port, 0 if none.
	Port int

	// CreatedAt is the build timestamp.
	CreatedAt time.Time
}

// BuildLabels constructs the Docker label map for an image or container.
// These labels allow full reconstruction of the Metadata from Docker
// inspection alone, and they feed the rendered Compose file so containers
// started either way are discoverable identically.
func BuildLabels(meta Metadata) map[string]string {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelProject:   meta.Project,
		LabelDigest:    meta.Digest,
		// UTC ensures consistent timestamps regardless of the host
		// machine's timezone.
		LabelCreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339),
	}

	if meta.Port != 0 {
		labels[LabelPort] = strconv.Itoa(meta.Port)
	}

	return labels
}

// ParseLabels reconstructs Metadata from Docker labels. This is the
// inverse of BuildLabels and is used when listing managed images and
// containers.
//
// Required labels: managed-by, project, digest, created-at. The port
// label is optional. Missing required labels cause an error listing all
// of them at once for easier debugging.
func ParseLabels(labels map[string]string) (*Metadata, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelProject,
		LabelDigest,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	port := 0
	if raw, ok := labels[LabelPort]; ok {
		port, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid label %s=%q: %w", LabelPort, raw, err)
		}
	}

	return &Metadata{
		Project:   labels[LabelProject],
		Digest:    labels[LabelDigest],
		Port:      port,
		CreatedAt: createdAt,
	}, nil
}
