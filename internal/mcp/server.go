package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codequarry/quarry/internal/config"
	"github.com/codequarry/quarry/internal/embed"
	"github.com/codequarry/quarry/internal/index"
	"github.com/codequarry/quarry/internal/search"
	"github.com/codequarry/quarry/internal/telemetry"
	"github.com/codequarry/quarry/internal/watcher"
	"github.com/codequarry/quarry/pkg/version"
)

// Server bridges AI clients with the hybrid search index over MCP.
// Tool handlers validate inputs, run the engine, and map failures to
// JSON-RPC error codes; all logging goes through slog so stdio stays
// clean for protocol frames.
type Server struct {
	mcp      *mcp.Server
	engine   *search.Engine
	indexer  *index.Indexer
	embedder embed.Embedder
	cfg      *config.Config
	rootPath string
	logger   *slog.Logger

	// Optional live-update plumbing, set before Serve.
	coord *index.Coordinator
	watch *watcher.HybridWatcher
}

// NewServer creates an MCP server over an engine and its indexer.
// rootPath is the project root, used for resource reads and project
// identification in index_status.
func NewServer(engine *search.Engine, indexer *index.Indexer, embedder embed.Embedder, cfg *config.Config, rootPath string) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:   engine,
		indexer:  indexer,
		embedder: embedder,
		cfg:      cfg,
		rootPath: rootPath,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "quarry",
			Version: version.Version,
		},
		nil, // Capabilities are inferred from registered tools and resources
	)
	s.registerTools()

	return s, nil
}

// SetCoordinator attaches the live-update coordinator so index_status can
// report event and reconciliation counters. Call before Serve.
func (s *Server) SetCoordinator(c *index.Coordinator) {
	s.coord = c
}

// SetWatcher attaches the file watcher so index_status can report watch
// health. Call before Serve.
func (s *Server) SetWatcher(w *watcher.HybridWatcher) {
	s.watch = w
}

// MCPServer returns the underlying SDK server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the advertised server name and version.
func (s *Server) Info() (name, ver string) {
	return "quarry", version.Version
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid code search over the project index. Combines keyword matching with semantic similarity, so it finds both exact identifiers and conceptually related code. Use this for most searches.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_keyword",
		Description: "Keyword-only search over the project index. Matches identifier tokens exactly (camelCase and snake_case are split). Use when you know the exact name you are looking for.",
	}, s.searchKeywordHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_semantic",
		Description: "Semantic-only search over the project index. Ranks code by embedding similarity to the query, finding related code that shares no literal tokens with it.",
	}, s.searchSemanticHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report index size, update activity, and watcher health. Use to verify the index is ready before searching.",
	}, s.indexStatusHandler)

	s.logger.Debug("mcp tools registered", slog.Int("count", 4))
}

// searchHandler serves the hybrid search tool.
func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input HybridSearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if err := validateQuery(input.Query); err != nil {
		return nil, SearchOutput{}, err
	}

	opts := search.Options{Limit: input.Limit}
	weights, err := s.weightOverrides(input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	opts.Weights = weights

	requestID := newRequestID()
	start := time.Now()
	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", input.Limit))

	results, err := s.engine.Search(ctx, input.Query, opts)
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))

	return nil, toSearchOutput(results), nil
}

// searchKeywordHandler serves the keyword-only search tool.
func (s *Server) searchKeywordHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if err := validateQuery(input.Query); err != nil {
		return nil, SearchOutput{}, err
	}

	requestID := newRequestID()
	start := time.Now()
	s.logger.Info("search_keyword started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", input.Limit))

	results, err := s.engine.SearchByKeyword(ctx, input.Query, input.Limit)
	if err != nil {
		s.logger.Error("search_keyword failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search_keyword completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))

	return nil, toSearchOutput(results), nil
}

// searchSemanticHandler serves the semantic-only search tool.
func (s *Server) searchSemanticHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if err := validateQuery(input.Query); err != nil {
		return nil, SearchOutput{}, err
	}

	requestID := newRequestID()
	start := time.Now()
	s.logger.Info("search_semantic started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", input.Limit))

	results, err := s.engine.SearchByEmbedding(ctx, input.Query, input.Limit)
	if err != nil {
		s.logger.Error("search_semantic failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("search_semantic completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))

	return nil, toSearchOutput(results), nil
}

// indexStatusHandler serves the index_status tool.
func (s *Server) indexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	stats := s.indexer.Stats()

	embedderStatus := "ready"
	if !s.embedder.Available(ctx) {
		embedderStatus = "unavailable"
	}

	output := &IndexStatusOutput{
		Project: ProjectInfo{
			Name:     filepath.Base(s.rootPath),
			RootPath: s.rootPath,
			Type:     string(config.DetectProjectType(s.rootPath)),
		},
		Index: IndexInfo{
			Files:      stats.FilesIndexed,
			Elements:   stats.TotalEmbeddings,
			Keywords:   stats.TotalKeywords,
			Generation: s.indexer.Generation(),
			State:      "static",
		},
		Embedder: EmbedderInfo{
			Model:      s.embedder.ModelName(),
			Dimensions: s.embedder.Dimensions(),
			Status:     embedderStatus,
		},
		Queries: toQueryInfo(s.engine.QueryMetrics()),
	}

	if s.coord != nil {
		st := s.coord.Status()
		output.Index.State = string(st.State)
		output.Index.EventsApplied = st.EventsApplied
		output.Index.EventsFailed = st.EventsFailed
		output.Index.ReconcileRuns = st.ReconcileRuns
		if !st.LastReconcile.IsZero() {
			output.Index.LastReconcile = st.LastReconcile.Format(time.RFC3339)
		}
	}
	if s.watch != nil {
		output.Watcher = &WatcherInfo{
			Type:           s.watch.WatcherType(),
			Healthy:        s.watch.IsHealthy(),
			DroppedBatches: s.watch.DroppedBatches(),
		}
	}

	s.logger.Debug("index_status served",
		slog.Int("files", output.Index.Files),
		slog.Int("elements", output.Index.Elements),
		slog.String("state", output.Index.State))

	return nil, output, nil
}

// weightOverrides turns optional per-call weight inputs into engine
// weights, validating ranges the engine would otherwise clamp silently.
func (s *Server) weightOverrides(input HybridSearchInput) (*search.Weights, error) {
	if input.KeywordWeight == nil && input.SemanticWeight == nil {
		return nil, nil
	}

	keyword := s.cfg.Search.KeywordWeight
	semantic := s.cfg.Search.SemanticWeight
	if input.KeywordWeight != nil {
		keyword = *input.KeywordWeight
	}
	if input.SemanticWeight != nil {
		semantic = *input.SemanticWeight
	}

	if keyword < 0 || keyword > 1 {
		return nil, NewInvalidParamsError(fmt.Sprintf("keyword_weight must be in [0, 1], got %v", keyword))
	}
	if semantic < 0 || semantic > 1 {
		return nil, NewInvalidParamsError(fmt.Sprintf("semantic_weight must be in [0, 1], got %v", semantic))
	}
	if keyword+semantic == 0 {
		return nil, NewInvalidParamsError("keyword_weight and semantic_weight cannot both be zero")
	}

	return &search.Weights{Keyword: keyword, Semantic: semantic}, nil
}

// validateQuery rejects queries the engine would treat as match-nothing
// or, worse for semantic search, match-everything.
func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return NewInvalidParamsError("query must not be empty")
	}
	return nil
}

func toSearchOutput(results []search.Result) SearchOutput {
	out := SearchOutput{Results: make([]SearchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, SearchResult{
			ID:         r.ID,
			FilePath:   r.FilePath,
			Name:       r.Name,
			Type:       string(r.Type),
			Relevance:  r.Relevance,
			Highlights: r.Highlights,
		})
	}
	return out
}

func toQueryInfo(s telemetry.Snapshot) QueryInfo {
	info := QueryInfo{
		Total:         s.TotalQueries,
		MeanLatencyMS: s.MeanLatencyMS,
		ZeroResults:   s.ZeroResults,
		NoHitQueries:  s.NoHitQueries,
		RepeatRate:    s.RepeatRate,
	}
	if len(s.ByType) > 0 {
		info.ByType = make(map[string]int64, len(s.ByType))
		for k, v := range s.ByType {
			info.ByType[string(k)] = v
		}
	}
	if len(s.Latency) > 0 {
		info.Latency = make(map[string]int64, len(s.Latency))
		for k, v := range s.Latency {
			info.Latency[string(k)] = v
		}
	}
	return info
}

// Serve runs the server until the context is cancelled or the client
// disconnects. Only the stdio transport is supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting mcp server",
		slog.String("transport", transport),
		slog.String("root", s.rootPath))

	switch transport {
	case "stdio":
		// A closed stdin is how stdio clients signal shutdown, so EOF is a
		// clean exit alongside context cancellation.
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// newRequestID creates a short unique id for log correlation.
func newRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
