package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/output"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build the index once and report what it covers",
		Long: `Build the in-memory index for a project and print a summary.

The index is not persisted: 'quarry serve' rebuilds it at startup.
Use this command to verify what gets indexed (exclude patterns,
sensitive files, size caps) and how long a full build takes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(ctx, cmd, path)
		},
	}

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string) error {
	session, err := openProject(path)
	if err != nil {
		return err
	}
	defer session.Close()

	cleanup := setupCommandLogging(session.Config)
	defer cleanup()

	out := output.New(cmd.OutOrStdout())
	projectType := config.DetectProjectType(session.Root)

	slog.Info("index started",
		slog.String("root", session.Root),
		slog.String("project_type", string(projectType)))
	out.Statusf("📁", "Indexing %s (%s)", session.Root, projectType)

	summary, err := session.indexAll(ctx, func(done, total int) {
		out.Progress(done, total, fmt.Sprintf("%d/%d files", done, total))
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	slog.Info("index complete",
		slog.Int("files", summary.FilesScanned),
		slog.Int("failed", summary.FilesFailed),
		slog.Int("elements", summary.Elements),
		slog.Duration("duration", summary.Duration))

	out.Successf("Indexed %d files in %s",
		summary.FilesScanned-summary.FilesFailed, summary.Duration.Round(time.Millisecond))
	out.Field("Elements", summary.Elements)
	out.Field("Keywords", summary.Keywords)
	if summary.FilesFailed > 0 {
		out.Warningf("%d files could not be indexed; see 'quarry logs' for details", summary.FilesFailed)
	}
	out.Newline()
	out.Status("💡", "The index lives in memory; 'quarry serve' rebuilds it at startup")

	return nil
}
