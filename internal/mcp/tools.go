package mcp

// Tool input and output schemas. The SDK derives JSON Schema for each
// tool from these structs, so the jsonschema tags are what the client
// model reads when deciding how to call us.

// SearchInput is the input for the single-mode search tools.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query, e.g. an identifier, phrase, or short description of the code you want"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// HybridSearchInput is the input for the hybrid search tool. Weights
// are optional; when only one is given the other keeps its configured
// value.
type HybridSearchInput struct {
	Query          string   `json:"query" jsonschema:"the search query, e.g. an identifier, phrase, or short description of the code you want"`
	Limit          int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	KeywordWeight  *float64 `json:"keyword_weight,omitempty" jsonschema:"relative weight of keyword matches in [0, 1]; overrides the configured value for this call"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty" jsonschema:"relative weight of semantic matches in [0, 1]; overrides the configured value for this call"`
}

// SearchOutput carries ranked results back to the client.
type SearchOutput struct {
	Results []SearchResult `json:"results" jsonschema:"matching code elements, best first"`
}

// SearchResult is one ranked match.
type SearchResult struct {
	ID         string   `json:"id" jsonschema:"stable identifier of the code element"`
	FilePath   string   `json:"file_path" jsonschema:"path of the file containing the element, relative to the project root"`
	Name       string   `json:"name" jsonschema:"name of the matched element"`
	Type       string   `json:"type" jsonschema:"element kind, e.g. function, method, type, file"`
	Relevance  float64  `json:"relevance" jsonschema:"fused relevance score; higher is better, comparable only within one response"`
	Highlights []string `json:"highlights,omitempty" jsonschema:"query terms that matched keyword tokens"`
}

// IndexStatusInput is empty; index_status takes no arguments.
type IndexStatusInput struct{}

// IndexStatusOutput describes the index and its supporting machinery.
type IndexStatusOutput struct {
	Project  ProjectInfo  `json:"project"`
	Index    IndexInfo    `json:"index"`
	Embedder EmbedderInfo `json:"embedder"`
	Queries  QueryInfo    `json:"queries"`
	Watcher  *WatcherInfo `json:"watcher,omitempty"`
}

// ProjectInfo identifies the indexed project.
type ProjectInfo struct {
	Name     string `json:"name" jsonschema:"project directory name"`
	RootPath string `json:"root_path" jsonschema:"absolute path of the project root"`
	Type     string `json:"type" jsonschema:"detected project type, e.g. go, typescript, python"`
}

// IndexInfo reports index size and live-update activity. State is
// "static" when no coordinator is attached, otherwise one of idle,
// applying, reconciling.
type IndexInfo struct {
	Files         int    `json:"files" jsonschema:"number of indexed files"`
	Elements      int    `json:"elements" jsonschema:"number of indexed code elements"`
	Keywords      int    `json:"keywords" jsonschema:"number of distinct keyword tokens"`
	Generation    uint64 `json:"generation" jsonschema:"index generation, bumped on every applied change"`
	State         string `json:"state" jsonschema:"live-update state: static, idle, applying, or reconciling"`
	EventsApplied uint64 `json:"events_applied,omitempty" jsonschema:"file change events applied since startup"`
	EventsFailed  uint64 `json:"events_failed,omitempty" jsonschema:"file change events that failed to apply"`
	ReconcileRuns uint64 `json:"reconcile_runs,omitempty" jsonschema:"full reconciliation passes completed"`
	LastReconcile string `json:"last_reconcile,omitempty" jsonschema:"RFC 3339 time of the last reconciliation pass"`
}

// EmbedderInfo reports the embedding backend.
type EmbedderInfo struct {
	Model      string `json:"model" jsonschema:"embedding model name"`
	Dimensions int    `json:"dimensions" jsonschema:"embedding vector dimensions"`
	Status     string `json:"status" jsonschema:"ready or unavailable"`
}

// QueryInfo summarizes query telemetry since the server started.
type QueryInfo struct {
	Total         int64            `json:"total" jsonschema:"queries answered since startup"`
	ByType        map[string]int64 `json:"by_type,omitempty" jsonschema:"query counts per retrieval path: keyword, semantic, hybrid"`
	Latency       map[string]int64 `json:"latency,omitempty" jsonschema:"query counts per latency band"`
	MeanLatencyMS float64          `json:"mean_latency_ms" jsonschema:"mean query latency in milliseconds"`
	ZeroResults   int64            `json:"zero_results" jsonschema:"queries that found nothing"`
	NoHitQueries  []string         `json:"no_hit_queries,omitempty" jsonschema:"recent distinct queries that found nothing, oldest first"`
	RepeatRate    float64          `json:"repeat_rate" jsonschema:"fraction of queries that repeated a recent query"`
}

// WatcherInfo reports file watcher health when watching is enabled.
type WatcherInfo struct {
	Type           string `json:"type" jsonschema:"watch mechanism in use: fsnotify or polling"`
	Healthy        bool   `json:"healthy" jsonschema:"whether the watcher is delivering events"`
	DroppedBatches uint64 `json:"dropped_batches" jsonschema:"event batches dropped because the consumer fell behind"`
}
