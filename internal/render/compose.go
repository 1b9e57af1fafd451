// compose.go renders a Docker Compose file for the runtime image.
//
// The Compose file is the deployment companion to the Dockerfile: one
// service named after the project, publishing the declared port and
// carrying the stagehand management labels so `stagehand clean` can find
// containers started through Compose as well.
package render

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// composeFile represents the structure of the generated docker-compose
// YAML. This struct is used for YAML serialization via the yaml.v3 library.
type composeFile struct {
	// Name sets the Compose project name, which prefixes container,
	// network, and volume names.
	Name string `yaml:"name"`

	// Services maps service names to their definitions. Always exactly
	// one entry: the runtime service.
	Services map[string]composeService `yaml:"services"`
}

// composeService is the runtime service definition.
type composeService struct {
	// Image is the tag produced by `stagehand build --image`.
	Image string `yaml:"image"`

	// Ports lists the port mappings in "hostPort:containerPort" format.
	Ports []string `yaml:"ports,omitempty"`

	// Environment holds the runtime stage's env vars as KEY=value pairs,
	// sorted for deterministic output.
	Environment []string `yaml:"environment,omitempty"`

	// Labels carries the stagehand management labels so containers
	// started via Compose are discoverable the same way as `stagehand run`.
	Labels map[string]string `yaml:"labels,omitempty"`

	// Restart is the Compose restart policy. Always "unless-stopped" —
	// the runtime image is a long-running server.
	Restart string `yaml:"restart"`
}

// Compose renders a docker-compose.yml for the runtime image.
//
// Parameters:
//   - plan: the build plan (project name, port, env)
//   - imageTag: the image reference the service runs
//   - labels: stagehand management labels to apply to the container
//
// Returns the YAML bytes with a header comment, or an error if
// serialization fails.
func Compose(plan *model.BuildPlan, imageTag string, labels map[string]string) ([]byte, error) {
	service := composeService{
		Image:   imageTag,
		Labels:  labels,
		Restart: "unless-stopped",
	}

	if plan.Runtime.Expose != 0 {
		service.Ports = []string{
			fmt.Sprintf("%d:%d", plan.Runtime.Expose, plan.Runtime.Expose),
		}
	}

	if len(plan.Runtime.Env) > 0 {
		keys := make([]string, 0, len(plan.Runtime.Env))
		for k := range plan.Runtime.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			service.Environment = append(service.Environment, k+"="+plan.Runtime.Env[k])
		}
	}

	file := composeFile{
		Name: plan.Project,
		Services: map[string]composeService{
			plan.Project: service,
		},
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize compose file: %w", err)
	}

	return append([]byte(header+"\n"), data...), nil
}
