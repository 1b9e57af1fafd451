// Package cli — serve.go implements "stagehand serve", which serves the
// built bundle locally with SPA fallback, mirroring what the runtime
// container does in production.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/model"
	"github.com/stagehand-cli/stagehand/internal/port"
	"github.com/stagehand-cli/stagehand/internal/server"
)

// ephemeralRangeStart and ephemeralRangeEnd bound the search when
// --port 0 asks for any free port (IANA dynamic range).
const (
	ephemeralRangeStart = 49152
	ephemeralRangeEnd   = 65535
)

type serveFlags struct {
	dir         string
	port        int
	metricsPort int
	reload      bool
}

// NewServeCommand creates the "serve" cobra command.
func NewServeCommand() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the built bundle locally",
		Long: `Serve the build stage's output directory over HTTP with single-page
app fallback and permissive CORS, the same behavior the runtime container
has in production.

The port defaults to the runtime stage's exposed port; --port 0 picks
any free port. Reload is on by default: the bundle is watched for
changes and the in-memory asset cache invalidated, so a rebuild shows
up immediately. Disable it with --reload=false.

Examples:
  stagehand serve
  stagehand serve --port 0
  stagehand serve --reload=false --metrics-port 9102`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", -1, "Port to listen on (default: the descriptor's exposed port; 0 picks a free port)")
	cmd.Flags().IntVar(&flags.metricsPort, "metrics-port", 0, "Expose Prometheus metrics on this port (0 disables)")
	cmd.Flags().BoolVar(&flags.reload, "reload", true, "Watch the bundle and invalidate the asset cache on change")

	return cmd
}

func runServe(ctx context.Context, flags *serveFlags) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	plan, err := loadPlan(root)
	if err != nil {
		return err
	}

	listenPort := flags.port
	if listenPort < 0 {
		listenPort = plan.Runtime.Expose
	}

	scanner := port.NewScanner()
	if listenPort == 0 {
		listenPort, err = scanner.FindAvailablePort(ephemeralRangeStart, ephemeralRangeEnd, "tcp")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "no free port found", err)
		}
		VerboseLog("Picked free port %d", listenPort)
	} else if !scanner.IsPortAvailable(listenPort, "tcp") {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("port %d is already in use", listenPort))
	}

	srv, err := server.New(server.Options{
		BundleDir:   plan.BundlePath(),
		Port:        listenPort,
		MetricsPort: flags.metricsPort,
		Reload:      flags.reload,
		Logf:        VerboseLog,
	})
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"bundleDir": plan.BundlePath(),
			"url":       fmt.Sprintf("http://localhost:%d", listenPort),
			"reload":    flags.reload,
		})
	} else {
		fmt.Printf("Serving %s on http://localhost:%d (Ctrl-C to stop)\n",
			plan.BundlePath(), listenPort)
	}

	// Graceful shutdown on SIGINT/SIGTERM: cancel the context and give
	// in-flight requests their shutdown window.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(sigCtx)
}
