package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/output"
)

// statsReport is the JSON output shape for the stats command.
type statsReport struct {
	Project    statsProject  `json:"project"`
	Index      statsIndex    `json:"index"`
	Embedder   statsEmbedder `json:"embedder"`
	DurationMS int64         `json:"duration_ms"`
}

type statsProject struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}

type statsIndex struct {
	Files    int `json:"files"`
	Elements int `json:"elements"`
	Keywords int `json:"keywords"`
}

type statsEmbedder struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats [path]",
		Short: "Show index statistics for a project",
		Long: `Build the in-memory index and report its size: files covered,
elements extracted, and distinct keywords.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runStats(ctx, cmd, path, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, path string, jsonOutput bool) error {
	session, err := openProject(path)
	if err != nil {
		return err
	}
	defer session.Close()

	cleanup := setupCommandLogging(session.Config)
	defer cleanup()

	summary, err := session.indexAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	stats := session.Indexer.Stats()
	report := statsReport{
		Project: statsProject{
			Name:     filepath.Base(session.Root),
			RootPath: session.Root,
			Type:     string(config.DetectProjectType(session.Root)),
		},
		Index: statsIndex{
			Files:    stats.FilesIndexed,
			Elements: stats.TotalEmbeddings,
			Keywords: stats.TotalKeywords,
		},
		Embedder: statsEmbedder{
			Model:      session.Embedder.ModelName(),
			Dimensions: session.Embedder.Dimensions(),
		},
		DurationMS: summary.Duration.Milliseconds(),
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printStats(cmd, report)
}

func printStats(cmd *cobra.Command, report statsReport) error {
	out := output.New(cmd.OutOrStdout())

	out.Header("Index Statistics")
	out.Newline()
	out.Field("Project", report.Project.Name)
	out.Field("Root", report.Project.RootPath)
	out.Field("Type", report.Project.Type)
	out.Newline()
	out.Field("Files", report.Index.Files)
	out.Field("Elements", report.Index.Elements)
	out.Field("Keywords", report.Index.Keywords)
	out.Newline()
	out.Field("Embedder", report.Embedder.Model)
	out.Field("Dimensions", report.Embedder.Dimensions)
	out.Field("Build time", fmt.Sprintf("%dms", report.DurationMS))

	return nil
}
