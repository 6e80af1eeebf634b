package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/gridmind/gridmind/internal/llm"
	"github.com/gridmind/gridmind/internal/types"
)

// mockClient scripts reasoning-service replies per prompt
type mockClient struct {
	mu    sync.Mutex
	calls int
	fn    func(prompt string) (string, error)
}

func (m *mockClient) Send(ctx context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.fn(messages[len(messages)-1].Content)
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func failingClient() *mockClient {
	return &mockClient{fn: func(string) (string, error) {
		return "", errors.New("service unavailable")
	}}
}

func isDiscoveryPrompt(prompt string) bool {
	return strings.Contains(prompt, "Identify at least")
}

func fallbackNames() map[string]bool {
	names := map[string]bool{UncategorizedCluster: true}
	for _, p := range FallbackPatterns() {
		names[p.Name] = true
	}
	return names
}

// An unreachable reasoning service must still yield a complete partition
// drawn from the fallback library.
func TestPatternFallbackOnServiceFailure(t *testing.T) {
	a := NewPatternAlgorithm(PatternDeps{Client: failingClient()})

	var exps []*types.Experience
	for i := 0; i < 10; i++ {
		// Two fb1 keywords, enough for a confident hybrid match
		exps = append(exps, makeExperience(fmt.Sprintf("hit%d", i), "only candidate, the value is forced", i%9))
	}
	for i := 0; i < 10; i++ {
		exps = append(exps, makeExperience(fmt.Sprintf("miss%d", i), "no signal words at all", i%9))
	}

	result, err := a.Cluster(context.Background(), exps, 5, Config{Hybrid: true})
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	assertPartition(t, result, 20)

	allowed := fallbackNames()
	for name := range result.Clusters {
		if !allowed[name] {
			t.Errorf("Cluster %q is not a fallback pattern", name)
		}
	}
	if len(result.Clusters["direct placement"]) != 10 {
		t.Errorf("Expected 10 keyword-matched experiences under %q, got %d",
			"direct placement", len(result.Clusters["direct placement"]))
	}
	if len(result.Clusters[UncategorizedCluster]) != 10 {
		t.Errorf("Expected 10 uncategorized experiences, got %d", len(result.Clusters[UncategorizedCluster]))
	}
}

func TestPatternHealthyCategorization(t *testing.T) {
	client := &mockClient{fn: func(prompt string) (string, error) {
		if isDiscoveryPrompt(prompt) {
			return "PATTERN: p1\nNAME: alpha\nDESC: first\nKEYWORDS: aaa\nCHAR: x\n\n" +
				"PATTERN: p2\nNAME: beta\nDESC: second\nKEYWORDS: bbb\nCHAR: y\n", nil
		}
		return "1\n2\n1\n2\n1\n2", nil
	}}
	a := NewPatternAlgorithm(PatternDeps{Client: client})

	var exps []*types.Experience
	for i := 0; i < 6; i++ {
		exps = append(exps, makeExperience(fmt.Sprintf("e%d", i), "plain reasoning", i%9))
	}

	result, err := a.Cluster(context.Background(), exps, 2, Config{})
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	assertPartition(t, result, 6)

	if len(result.Clusters["alpha"]) != 3 || len(result.Clusters["beta"]) != 3 {
		t.Errorf("Expected alpha=3, beta=3, got %v", clusterSizes(result))
	}
}

// One failing batch must not poison the others
func TestPatternBatchFailureIsolation(t *testing.T) {
	client := &mockClient{fn: func(prompt string) (string, error) {
		if isDiscoveryPrompt(prompt) {
			return "", errors.New("discovery down")
		}
		if strings.Contains(prompt, "poison") {
			return "", errors.New("batch failed")
		}
		return "1\n1", nil
	}}
	a := NewPatternAlgorithm(PatternDeps{Client: client})

	exps := []*types.Experience{
		makeExperience("e0", "plain text", 0),
		makeExperience("e1", "plain text", 1),
		makeExperience("e2", "poison marker", 2),
		makeExperience("e3", "poison marker", 3),
	}

	result, err := a.Cluster(context.Background(), exps, 3, Config{BatchSize: 2, Concurrency: 1})
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	assertPartition(t, result, 4)

	if len(result.Clusters["direct placement"]) != 2 {
		t.Errorf("Expected the healthy batch under %q, got %v", "direct placement", clusterSizes(result))
	}
	if len(result.Clusters[UncategorizedCluster]) != 2 {
		t.Errorf("Expected the failed batch uncategorized, got %v", clusterSizes(result))
	}
}

func TestPatternCacheSkipsCategorization(t *testing.T) {
	client := failingClient()
	a := NewPatternAlgorithm(PatternDeps{Client: client})

	cache := NewCache()
	cache.Put("e0", "constraint elimination")

	exps := []*types.Experience{makeExperience("e0", "whatever", 0)}
	result, err := a.Cluster(context.Background(), exps, 2, Config{Cache: cache})
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}

	if len(result.Clusters["constraint elimination"]) != 1 {
		t.Errorf("Expected cached assignment, got %v", clusterSizes(result))
	}
	// Only the discovery call goes out; categorization is fully cached.
	if client.callCount() != 1 {
		t.Errorf("Expected 1 service call, got %d", client.callCount())
	}
}

func TestPatternHybridPopulatesCache(t *testing.T) {
	client := failingClient()
	a := NewPatternAlgorithm(PatternDeps{Client: client})

	cache := NewCache()
	var exps []*types.Experience
	for i := 0; i < 4; i++ {
		exps = append(exps, makeExperience(fmt.Sprintf("e%d", i), "eliminate by constraint check", i%9))
	}

	result, err := a.Cluster(context.Background(), exps, 2, Config{Hybrid: true, Cache: cache})
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	assertPartition(t, result, 4)

	if cache.Len() != 4 {
		t.Errorf("Expected 4 cached assignments, got %d", cache.Len())
	}
	if client.callCount() != 1 {
		t.Errorf("Expected only the discovery call, got %d calls", client.callCount())
	}
}

func TestStratifiedSampleBounds(t *testing.T) {
	var exps []*types.Experience
	for i := 0; i < 500; i++ {
		exp := makeExperience(fmt.Sprintf("e%03d", i), "r", i%9)
		exp.Metrics.EmptyCells = i % 60
		exps = append(exps, exp)
	}

	sample := stratifiedSample(exps)
	if len(sample) != maxSampleSize {
		t.Errorf("Sample size = %d, want %d", len(sample), maxSampleSize)
	}
	for i := 1; i < len(sample); i++ {
		if sample[i].Metrics.EmptyCells < sample[i-1].Metrics.EmptyCells {
			t.Fatalf("Sample not ordered by difficulty at %d", i)
		}
	}

	// Small inputs are used whole
	small := stratifiedSample(exps[:10])
	if len(small) != 10 {
		t.Errorf("Small sample size = %d, want 10", len(small))
	}
}

func TestKeywordMatchThreshold(t *testing.T) {
	patterns := FallbackPatterns()

	// One keyword hit is not confident enough
	exp := makeExperience("e1", "this mentions single once", 0)
	if name, ok := keywordMatch(exp, patterns); ok {
		t.Errorf("Single hit matched %q, want no match", name)
	}

	exp = makeExperience("e2", "only candidate here, value is forced", 0)
	name, ok := keywordMatch(exp, patterns)
	if !ok || name != "direct placement" {
		t.Errorf("keywordMatch = %q, %v; want %q, true", name, ok, "direct placement")
	}
}
