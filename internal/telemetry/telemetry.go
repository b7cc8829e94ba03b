// Package telemetry aggregates in-memory query metrics: counts per query
// type, a fixed-bucket latency histogram, zero-result tracking, and a
// repeat-rate estimate over a bounded window of recent queries. Nothing
// is persisted or reported externally; the collector exists so agents can
// inspect query health through the index_status tool.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryType classifies which retrieval path answered a query.
type QueryType string

const (
	QueryKeyword  QueryType = "keyword"
	QuerySemantic QueryType = "semantic"
	QueryHybrid   QueryType = "hybrid"
)

// LatencyBucket is one band of the fixed latency histogram.
type LatencyBucket string

// Histogram bands. In-memory search latencies cluster well under a
// second, so the bands are dense at the low end.
const (
	BucketUnder10ms  LatencyBucket = "under_10ms"
	BucketUnder50ms  LatencyBucket = "under_50ms"
	BucketUnder100ms LatencyBucket = "under_100ms"
	BucketUnder500ms LatencyBucket = "under_500ms"
	BucketOver500ms  LatencyBucket = "over_500ms"
)

// BucketFor maps a query latency to its histogram band.
func BucketFor(d time.Duration) LatencyBucket {
	switch ms := d.Milliseconds(); {
	case ms < 10:
		return BucketUnder10ms
	case ms < 50:
		return BucketUnder50ms
	case ms < 100:
		return BucketUnder100ms
	case ms < 500:
		return BucketUnder500ms
	default:
		return BucketOver500ms
	}
}

// Event is one completed query.
type Event struct {
	Query   string
	Type    QueryType
	Results int
	Latency time.Duration
}

// Config bounds the collector's memory. Zero fields take defaults.
type Config struct {
	// RecentQueries is the window size for repeat-rate estimation.
	RecentQueries int

	// NoHitQueries is how many distinct zero-result queries to keep.
	NoHitQueries int
}

const (
	defaultRecentQueries = 512
	defaultNoHitQueries  = 25
)

// Metrics aggregates query events. Safe for concurrent use; Record is a
// short critical section and never fails.
type Metrics struct {
	mu           sync.Mutex
	since        time.Time
	totalQueries int64
	totalLatency time.Duration
	byType       map[QueryType]int64
	latency      map[LatencyBucket]int64
	zeroResults  int64
	repeats      int64

	// recent holds normalized query hashes; a hit means a repeat.
	recent *lru.Cache[string, struct{}]

	// noHits keeps the most recent distinct queries that found nothing,
	// verbatim, so agents can see what vocabulary is missing.
	noHits *lru.Cache[string, struct{}]
}

// NewMetrics creates an empty collector.
func NewMetrics(cfg Config) *Metrics {
	if cfg.RecentQueries <= 0 {
		cfg.RecentQueries = defaultRecentQueries
	}
	if cfg.NoHitQueries <= 0 {
		cfg.NoHitQueries = defaultNoHitQueries
	}

	recent, _ := lru.New[string, struct{}](cfg.RecentQueries)
	noHits, _ := lru.New[string, struct{}](cfg.NoHitQueries)

	return &Metrics{
		since:   time.Now(),
		byType:  make(map[QueryType]int64),
		latency: make(map[LatencyBucket]int64),
		recent:  recent,
		noHits:  noHits,
	}
}

// Record folds one event into the aggregates.
func (m *Metrics) Record(ev Event) {
	key := queryKey(ev.Query)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries++
	m.totalLatency += ev.Latency
	m.byType[ev.Type]++
	m.latency[BucketFor(ev.Latency)]++

	if ev.Results == 0 {
		m.zeroResults++
		if q := strings.TrimSpace(ev.Query); q != "" {
			m.noHits.Add(q, struct{}{})
		}
	}

	if _, seen := m.recent.Get(key); seen {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// queryKey normalizes and hashes a query so repeat detection ignores case
// and surrounding whitespace.
func queryKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Snapshot is a point-in-time copy of the aggregates.
type Snapshot struct {
	TotalQueries  int64                   `json:"total_queries"`
	ByType        map[QueryType]int64     `json:"by_type,omitempty"`
	Latency       map[LatencyBucket]int64 `json:"latency,omitempty"`
	MeanLatencyMS float64                 `json:"mean_latency_ms"`
	ZeroResults   int64                   `json:"zero_results"`
	NoHitQueries  []string                `json:"no_hit_queries,omitempty"`
	RepeatRate    float64                 `json:"repeat_rate"`
	Since         time.Time               `json:"since"`
}

// Snapshot copies the aggregates consistent with one point in time.
// NoHitQueries is ordered oldest first.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		TotalQueries: m.totalQueries,
		ZeroResults:  m.zeroResults,
		Since:        m.since,
	}
	if keys := m.noHits.Keys(); len(keys) > 0 {
		s.NoHitQueries = keys
	}
	if len(m.byType) > 0 {
		s.ByType = make(map[QueryType]int64, len(m.byType))
		for k, v := range m.byType {
			s.ByType[k] = v
		}
	}
	if len(m.latency) > 0 {
		s.Latency = make(map[LatencyBucket]int64, len(m.latency))
		for k, v := range m.latency {
			s.Latency[k] = v
		}
	}
	if m.totalQueries > 0 {
		s.MeanLatencyMS = float64(m.totalLatency.Microseconds()) / float64(m.totalQueries) / 1000
		s.RepeatRate = float64(m.repeats) / float64(m.totalQueries)
	}
	return s
}
