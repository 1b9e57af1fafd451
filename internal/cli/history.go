// Package cli — history.go implements "stagehand history", which lists
// recorded builds from the history database.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/model"
)

type historyFlags struct {
	status string
	limit  int
	prune  string
}

// NewHistoryCommand creates the "history" cobra command.
func NewHistoryCommand() *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded builds",
		Long: `List build records, newest first. Failed builds carry the failing
step's error message.

With --prune, delete records older than the given duration instead of
listing (e.g. --prune 720h for thirty days).

Examples:
  stagehand history
  stagehand history --status failed
  stagehand history --limit 5 --json
  stagehand history --prune 720h`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.status, "status", "all",
		"Filter by status: succeeded, failed, running, all (default: all)")
	cmd.Flags().IntVar(&flags.limit, "limit", 20, "Maximum records to show (0 = no limit)")
	cmd.Flags().StringVar(&flags.prune, "prune", "", "Delete records older than this duration instead of listing")

	return cmd
}

func runHistory(ctx context.Context, flags *historyFlags) error {
	store, err := openHistoryStore()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to open build history", err)
	}
	defer func() { _ = store.Close() }()

	if flags.prune != "" {
		age, err := time.ParseDuration(flags.prune)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid --prune duration %q", flags.prune), err)
		}

		removed, err := store.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to prune build history", err)
		}

		if IsJSONOutput() {
			printJSON(map[string]int64{"removed": removed})
		} else {
			fmt.Printf("Removed %d record(s)\n", removed)
		}
		return nil
	}

	var statusFilter model.BuildStatus
	if flags.status != "all" {
		statusFilter, err = model.ParseBuildStatus(flags.status)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid status filter %q: valid values are succeeded, failed, running, all", flags.status), nil)
		}
	}

	records, err := store.List(ctx, statusFilter, flags.limit)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to list build history", err)
	}

	printHistory(records)
	return nil
}

func printHistory(records []model.BuildRecord) {
	if IsJSONOutput() {
		if records == nil {
			records = []model.BuildRecord{}
		}
		printJSON(records)
		return
	}

	if len(records) == 0 {
		fmt.Println("No build records.")
		return
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s  %-9s  %s  %s",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Status,
			rec.Project,
			rec.Duration.Round(time.Millisecond))
		if rec.ImageTag != "" {
			line += "  " + rec.ImageTag
		} else if rec.Digest != "" {
			line += "  " + shortDigest(rec.Digest)
		}
		fmt.Println(line)
		if rec.Status == model.StatusFailed && rec.Error != "" {
			fmt.Printf("    %s\n", rec.Error)
		}
	}
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
