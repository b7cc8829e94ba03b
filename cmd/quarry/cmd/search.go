package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/output"
	"github.com/codequarry/quarry/internal/search"
)

// searchOptions holds the CLI flags for search. The weight fields use -1
// as "not set" so an explicit zero stays distinguishable.
type searchOptions struct {
	limit          int
	format         string
	keywordOnly    bool
	semanticOnly   bool
	keywordWeight  float64
	semanticWeight float64
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Index the project and run one search",
		Long: `Index the project and search it in one shot.

Combines keyword and semantic retrieval with reciprocal rank fusion.
The index is built fresh for each invocation; for repeated queries an
MCP client talking to 'quarry serve' avoids the rebuild.

Examples:
  quarry search "authentication middleware"
  quarry search "parse config" --limit 3
  quarry search "handleRequest" --keyword-only
  quarry search "retry logic" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			query := strings.Join(args, " ")
			return runSearch(ctx, cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.keywordOnly, "keyword-only", false, "Use keyword retrieval only")
	cmd.Flags().BoolVar(&opts.semanticOnly, "semantic-only", false, "Use semantic retrieval only")
	cmd.Flags().Float64Var(&opts.keywordWeight, "keyword-weight", -1, "Keyword weight for rank fusion, in [0, 1]")
	cmd.Flags().Float64Var(&opts.semanticWeight, "semantic-weight", -1, "Semantic weight for rank fusion, in [0, 1]")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.keywordOnly && opts.semanticOnly {
		return fmt.Errorf("--keyword-only and --semantic-only are mutually exclusive")
	}
	hasWeights := opts.keywordWeight >= 0 || opts.semanticWeight >= 0
	if hasWeights && (opts.keywordOnly || opts.semanticOnly) {
		return fmt.Errorf("--keyword-weight and --semantic-weight apply to hybrid search only")
	}
	switch opts.format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format: %s (use: text, json)", opts.format)
	}

	session, err := openProject(".")
	if err != nil {
		return err
	}
	defer session.Close()

	cleanup := setupCommandLogging(session.Config)
	defer cleanup()

	weights, err := fusionWeights(session.Config, opts)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	// JSON mode keeps stdout machine-readable: results only.
	quiet := opts.format == "json"

	slog.Info("search started",
		slog.String("query", query),
		slog.Int("limit", opts.limit))

	summary, err := session.indexAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	if !quiet {
		out.Statusf("📦", "Indexed %d files in %s",
			summary.FilesScanned-summary.FilesFailed, summary.Duration.Round(time.Millisecond))
	}

	var results []search.Result
	switch {
	case opts.keywordOnly:
		results, err = session.Engine.SearchByKeyword(ctx, query, opts.limit)
	case opts.semanticOnly:
		results, err = session.Engine.SearchByEmbedding(ctx, query, opts.limit)
	default:
		results, err = session.Engine.Search(ctx, query, search.Options{
			Limit:   opts.limit,
			Weights: weights,
		})
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	slog.Info("search complete", slog.Int("results", len(results)))

	if opts.format == "json" {
		if results == nil {
			results = []search.Result{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return formatResults(out, query, results)
}

// fusionWeights resolves the rank fusion weights for one query: flag
// overrides on top of the configured values. Returns nil when no weight
// flag was given, so the engine applies its configured defaults.
func fusionWeights(cfg *config.Config, opts searchOptions) (*search.Weights, error) {
	if opts.keywordWeight < 0 && opts.semanticWeight < 0 {
		return nil, nil
	}

	w := search.Weights{
		Keyword:  cfg.Search.KeywordWeight,
		Semantic: cfg.Search.SemanticWeight,
	}
	if opts.keywordWeight >= 0 {
		w.Keyword = opts.keywordWeight
	}
	if opts.semanticWeight >= 0 {
		w.Semantic = opts.semanticWeight
	}

	if w.Keyword > 1 {
		return nil, fmt.Errorf("--keyword-weight must be in [0, 1], got %v", w.Keyword)
	}
	if w.Semantic > 1 {
		return nil, fmt.Errorf("--semantic-weight must be in [0, 1], got %v", w.Semantic)
	}
	if w.Keyword == 0 && w.Semantic == 0 {
		return nil, fmt.Errorf("--keyword-weight and --semantic-weight cannot both be zero")
	}
	return &w, nil
}

// formatResults prints results in the human-readable text format.
func formatResults(out *output.Writer, query string, results []search.Result) error {
	if len(results) == 0 {
		out.Statusf("", "No results found for %q", query)
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	out.Newline()

	for i, r := range results {
		out.Statusf("", "%d. %s (%s, score: %.3f)", i+1, r.ID, r.Type, r.Relevance)
		for _, line := range highlightLines(r.Highlights, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

// highlightLines returns up to n non-blank highlight lines.
func highlightLines(highlights []string, n int) []string {
	var lines []string
	for _, h := range highlights {
		h = strings.TrimRight(h, " \t")
		if strings.TrimSpace(h) == "" {
			continue
		}
		lines = append(lines, h)
		if len(lines) == n {
			break
		}
	}
	return lines
}
