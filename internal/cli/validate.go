// Package cli — validate.go implements "stagehand validate", which
// checks the project descriptor without running anything.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/buildfile"
	"github.com/stagehand-cli/stagehand/internal/model"
)

type validateFlags struct {
	dir string
}

// NewValidateCommand creates the "validate" cobra command.
func NewValidateCommand() *cobra.Command {
	flags := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the project descriptor",
		Long: `Parse and validate stagehand.json, reporting every problem at once.

Exits 0 when the descriptor is valid.

Examples:
  stagehand validate
  stagehand validate --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")

	return cmd
}

func runValidate(flags *validateFlags) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	path, err := buildfile.FindDescriptor(root)
	if err != nil {
		return err
	}

	raw, err := buildfile.LoadConfig(path)
	if err != nil {
		return err
	}

	errs := buildfile.ValidateBuildfile(raw)
	if IsJSONOutput() {
		findings := make([]map[string]string, 0, len(errs))
		for _, e := range errs {
			findings = append(findings, map[string]string{
				"field":   e.Field,
				"message": e.Message,
			})
		}
		printJSON(map[string]interface{}{
			"descriptor": path,
			"valid":      len(errs) == 0,
			"errors":     findings,
		})
	} else {
		if len(errs) == 0 {
			fmt.Printf("%s is valid\n", path)
		} else {
			fmt.Printf("%s has %d problem(s):\n", path, len(errs))
			for _, e := range errs {
				fmt.Printf("  - %s\n", e.Error())
			}
		}
	}

	if len(errs) > 0 {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("descriptor validation failed with %d problem(s)", len(errs)))
	}

	return nil
}
