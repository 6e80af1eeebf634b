package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridmind/gridmind/internal/llm"
	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/types"
)

const (
	defaultBatchSize   = 50
	defaultConcurrency = 3

	// Stratified sampling bounds for pattern discovery
	minSampleSize  = 100
	maxSampleSize  = 150
	sampleFraction = 0.30

	// Discovery asks for at least this many patterns
	minDiscoveredPatterns = 10

	// Hybrid mode: a pattern must match at least this many of its keywords
	// in the reasoning text to count as a confident match.
	minKeywordHits = 2

	// UncategorizedCluster is the catch-all bucket for experiences no
	// pattern claimed (bad indices, failed batches, no keyword match).
	UncategorizedCluster = "uncategorized"
)

// PatternDeps are the collaborators of the model-assisted algorithm
type PatternDeps struct {
	Client llm.Client
}

// PatternAlgorithm is the model-assisted clustering variant: it discovers
// reasoning patterns from a stratified sample via the reasoning service,
// then categorizes the entire input across them in bounded-parallel batches.
// Every reasoning-service failure degrades at the smallest scope (fallback
// library for discovery, uncategorized for a batch); the run itself never
// fails on a bad model response.
type PatternAlgorithm struct {
	meta   Meta
	client llm.Client
}

// NewPatternAlgorithm creates the model-assisted pattern-discovery algorithm
func NewPatternAlgorithm(deps PatternDeps) *PatternAlgorithm {
	return &PatternAlgorithm{
		meta: newMeta("pattern-discovery", 1,
			"Model-assisted clustering: stratified sampling, reasoning-pattern "+
				"discovery, and batched full categorization with fallbacks",
			patternSourceFingerprint()),
		client: deps.Client,
	}
}

func patternSourceFingerprint() string {
	return fmt.Sprintf("pattern-discovery v1\nsample:%d-%d frac:%.2f batch:%d conc:%d min-patterns:%d hits:%d",
		minSampleSize, maxSampleSize, sampleFraction,
		defaultBatchSize, defaultConcurrency, minDiscoveredPatterns, minKeywordHits)
}

// Meta returns the algorithm's immutable metadata
func (a *PatternAlgorithm) Meta() Meta {
	return a.meta
}

// Cluster partitions experiences across discovered (or fallback) patterns
func (a *PatternAlgorithm) Cluster(ctx context.Context, exps []*types.Experience, target int, cfg Config) (*types.ClusterResult, error) {
	start := time.Now()
	if len(exps) == 0 {
		return emptyResult(start), nil
	}

	sample := stratifiedSample(exps)
	patterns := a.discoverPatterns(ctx, sample, target)
	assignments := a.categorize(ctx, exps, patterns, cfg)

	clusters := make(map[string][]*types.Experience)
	for i, exp := range exps {
		name := assignments[i]
		if name == "" {
			name = UncategorizedCluster
		}
		clusters[name] = append(clusters[name], exp)
	}

	return finishResult(clusters, start), nil
}

// stratifiedSample selects up to maxSampleSize experiences spanning the full
// difficulty spectrum: sorted by remaining empty cells and evenly strided
// across the sorted order.
func stratifiedSample(exps []*types.Experience) []*types.Experience {
	size := int(sampleFraction * float64(len(exps)))
	if size < minSampleSize {
		size = minSampleSize
	}
	if size > maxSampleSize {
		size = maxSampleSize
	}
	if size >= len(exps) {
		size = len(exps)
	}

	sorted := make([]*types.Experience, len(exps))
	copy(sorted, exps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Metrics.EmptyCells != sorted[j].Metrics.EmptyCells {
			return sorted[i].Metrics.EmptyCells < sorted[j].Metrics.EmptyCells
		}
		return sorted[i].ID < sorted[j].ID
	})

	if size == len(sorted) {
		return sorted
	}

	sample := make([]*types.Experience, 0, size)
	for i := 0; i < size; i++ {
		sample = append(sample, sorted[i*len(sorted)/size])
	}
	return sample
}

// discoverPatterns asks the reasoning service to name distinct reasoning
// patterns in the sample. Any failure (transport, empty reply, unparseable
// blocks) falls back to the fixed pattern library.
func (a *PatternAlgorithm) discoverPatterns(ctx context.Context, sample []*types.Experience, target int) []types.ReasoningPattern {
	want := minDiscoveredPatterns
	if target > want {
		want = target
	}

	resp, err := a.client.Send(ctx, llm.UserMessage(a.buildDiscoveryPrompt(sample, want)))
	if err != nil {
		logging.Info("cluster", "pattern discovery failed (%v), using fallback library", err)
		return FallbackPatterns()
	}

	patterns, err := ParsePatterns(resp)
	if err != nil {
		logging.Info("cluster", "pattern discovery unparseable (%v), using fallback library", err)
		return FallbackPatterns()
	}

	logging.Debug("cluster", "discovered %d reasoning patterns", len(patterns))
	return patterns
}

// buildDiscoveryPrompt constructs the pattern-discovery request
func (a *PatternAlgorithm) buildDiscoveryPrompt(sample []*types.Experience, want int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are analyzing how a puzzle-solving agent reasons about Sudoku moves.
Identify at least %d distinct reasoning patterns in the move explanations below.

For each pattern, output a block in exactly this format:

PATTERN: p1
NAME: <short pattern name>
DESC: <one-line description>
KEYWORDS: <comma-separated keywords that signal this pattern>
CHAR: <free-text characteristics>

Move explanations:
`, want)

	for i, exp := range sample {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, oneLine(exp.Move.Reasoning))
	}

	sb.WriteString("\n\nOutput only pattern blocks, nothing else.")
	return sb.String()
}

// categorize assigns every experience a pattern name ("" = uncategorized),
// in fixed-size batches dispatched with bounded concurrency. Batch-to-index
// mapping stays intra-batch so positional response parsing never misaligns.
func (a *PatternAlgorithm) categorize(ctx context.Context, exps []*types.Experience, patterns []types.ReasoningPattern, cfg Config) []string {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	assignments := make([]string, len(exps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(exps); start += batchSize {
		end := start + batchSize
		if end > len(exps) {
			end = len(exps)
		}
		batch := exps[start:end]
		out := assignments[start:end]

		g.Go(func() error {
			a.categorizeBatch(gctx, batch, out, patterns, cfg)
			return nil // batch failures degrade to uncategorized, never fail the run
		})
	}

	// Goroutines only return nil; Wait is for completion, not errors.
	_ = g.Wait()

	return assignments
}

// categorizeBatch fills out[i] with the pattern name for batch[i].
// Resolution order: cache hit, hybrid keyword match, model call.
func (a *PatternAlgorithm) categorizeBatch(ctx context.Context, batch []*types.Experience, out []string, patterns []types.ReasoningPattern, cfg Config) {
	// Positions still needing a model decision
	var pending []int

	for i, exp := range batch {
		if cfg.Cache != nil {
			if name, ok := cfg.Cache.Get(exp.ID); ok {
				out[i] = name
				continue
			}
		}
		if cfg.Hybrid {
			if name, ok := keywordMatch(exp, patterns); ok {
				out[i] = name
				if cfg.Cache != nil {
					cfg.Cache.Put(exp.ID, name)
				}
				continue
			}
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		return
	}

	resp, err := a.client.Send(ctx, llm.UserMessage(a.buildCategorizationPrompt(batch, pending, patterns)))
	if err != nil {
		// Failure isolation is batch-scoped: these stay uncategorized.
		logging.Info("cluster", "categorization batch failed (%d experiences): %v", len(pending), err)
		return
	}

	indices := ParseCategorization(resp, len(pending), len(patterns))
	for j, pos := range pending {
		idx := indices[j]
		if idx < 1 || idx > len(patterns) {
			continue // uncategorized
		}
		name := patterns[idx-1].Name
		out[pos] = name
		if cfg.Cache != nil {
			cfg.Cache.Put(batch[pos].ID, name)
		}
	}
}

// keywordMatch finds the pattern with the most keyword hits in the
// experience's reasoning, requiring at least minKeywordHits to count.
func keywordMatch(exp *types.Experience, patterns []types.ReasoningPattern) (string, bool) {
	text := strings.ToLower(exp.Move.Reasoning)

	bestName, bestHits := "", 0
	for _, p := range patterns {
		hits := 0
		for _, kw := range p.Keywords {
			if kw != "" && strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestName, bestHits = p.Name, hits
		}
	}

	if bestHits >= minKeywordHits {
		return bestName, true
	}
	return "", false
}

// buildCategorizationPrompt constructs the index-per-line categorization
// request for the pending members of one batch.
func (a *PatternAlgorithm) buildCategorizationPrompt(batch []*types.Experience, pending []int, patterns []types.ReasoningPattern) string {
	var sb strings.Builder

	sb.WriteString("Categorize each Sudoku move explanation below into one of these reasoning patterns:\n\n")
	for i, p := range patterns {
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, p.Name, p.Description)
	}

	sb.WriteString("\nExplanations:\n")
	for j, pos := range pending {
		fmt.Fprintf(&sb, "%d. %s\n", j+1, oneLine(batch[pos].Move.Reasoning))
	}

	fmt.Fprintf(&sb, "\nReply with exactly %d lines, one pattern number per line (1-%d). Use 0 if no pattern fits. No other text.",
		len(pending), len(patterns))
	return sb.String()
}

// oneLine flattens reasoning text for prompt embedding
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
