package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tsawler/prose/v3"

	"github.com/gridmind/gridmind/internal/types"
)

const (
	// A cluster holding more than this share of all experiences is dominant
	// and gets subdivided even when the cluster count already meets target.
	dominanceThreshold = 0.40

	// Clusters below this size are never split
	minSplittableSize = 6

	// Spatial subdivision produces at most this many row bands
	maxSplitBands = 3

	generalSignature = "general reasoning"
)

// keywordVocabulary is the priority-ordered list of domain reasoning terms
// scanned against each experience's free-text reasoning. Earlier terms win
// when a signature is truncated. Order is part of the algorithm's observable
// behavior and feeds the provenance hash.
var keywordVocabulary = []string{
	"naked single",
	"hidden single",
	"only candidate",
	"last remaining",
	"naked pair",
	"hidden pair",
	"pointing pair",
	"box line",
	"elimination",
	"constraint",
	"only place",
	"row scan",
	"column scan",
	"box scan",
	"cross hatch",
	"candidate",
	"must be",
	"cannot be",
	"forced",
	"guess",
}

// KeywordAlgorithm is the deterministic clustering variant: signature
// assignment over a fixed vocabulary, a dominance check, and forced spatial
// subdivision. Pure and I/O-free; identical input yields identical output.
type KeywordAlgorithm struct {
	meta Meta
}

// NewKeywordAlgorithm creates the deterministic keyword-signature algorithm
func NewKeywordAlgorithm() *KeywordAlgorithm {
	return &KeywordAlgorithm{
		meta: newMeta("keyword-signature", 1,
			"Deterministic clustering by keyword signatures over reasoning text, "+
				"with dominance-triggered spatial subdivision",
			keywordSourceFingerprint()),
	}
}

// keywordSourceFingerprint captures the behavior-defining inputs of this
// algorithm for the provenance hash: the vocabulary (in priority order) and
// the subdivision constants. Computed at construction, not from the
// filesystem, so it survives packaging.
func keywordSourceFingerprint() string {
	return fmt.Sprintf("keyword-signature v1\nvocab:%s\ndominance:%.2f min-split:%d bands:%d",
		strings.Join(keywordVocabulary, ","), dominanceThreshold, minSplittableSize, maxSplitBands)
}

// Meta returns the algorithm's immutable metadata
func (a *KeywordAlgorithm) Meta() Meta {
	return a.meta
}

// Cluster partitions experiences by keyword signature
func (a *KeywordAlgorithm) Cluster(ctx context.Context, exps []*types.Experience, target int, cfg Config) (*types.ClusterResult, error) {
	start := time.Now()
	if len(exps) == 0 {
		return emptyResult(start), nil
	}
	if target < 1 {
		target = 1
	}

	// Phase 1: signature assignment
	depth := signatureDepth(target)
	clusters := make(map[string][]*types.Experience)
	for _, exp := range exps {
		sig := signatureFor(exp.Move.Reasoning, depth)
		clusters[sig] = append(clusters[sig], exp)
	}

	// Phases 2 and 3: dominance check and forced subdivision
	clusters = a.subdivide(clusters, target, len(exps))

	return finishResult(clusters, start), nil
}

// signatureDepth maps the target cluster count to how many matched terms a
// signature keeps: shallower for small targets, deeper for large ones.
func signatureDepth(target int) int {
	switch {
	case target <= 3:
		return 1
	case target <= 6:
		return 2
	default:
		return 3
	}
}

// signatureFor scans reasoning text against the vocabulary and returns the
// ordered signature of matched terms, truncated to depth.
func signatureFor(reasoning string, depth int) string {
	text := normalizeReasoning(reasoning)

	var matched []string
	for _, term := range keywordVocabulary {
		if strings.Contains(text, term) {
			matched = append(matched, term)
			if len(matched) == depth {
				break
			}
		}
	}

	if len(matched) == 0 {
		return generalSignature
	}
	return strings.Join(matched, " + ")
}

// normalizeReasoning lowercases and re-spaces the reasoning text using prose
// tokenization, so punctuation never hides a vocabulary term. Falls back to
// a plain lowercase on tokenizer failure.
func normalizeReasoning(text string) string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return strings.ToLower(text)
	}

	var words []string
	for _, tok := range doc.Tokens() {
		words = append(words, strings.ToLower(tok.Text))
	}
	if len(words) == 0 {
		return strings.ToLower(text)
	}
	return strings.Join(words, " ")
}

// subdivide enforces the target count and the dominance bound. Clusters are
// processed largest-first; a cluster is split only if it has at least
// minSplittableSize members and is either needed to reach target or was
// flagged dominant. Splits partition members into row bands; singleton
// sub-clusters are folded into the largest sibling.
func (a *KeywordAlgorithm) subdivide(clusters map[string][]*types.Experience, target, total int) map[string][]*types.Experience {
	dominant := dominantCluster(clusters, total)
	if len(clusters) >= target && dominant == "" {
		return clusters
	}

	for _, name := range namesBySizeDesc(clusters) {
		members := clusters[name]
		if len(members) < minSplittableSize {
			continue
		}
		if len(clusters) >= target && name != dominant {
			continue
		}

		bands := splitBandCount(target - len(clusters) + 1)
		sub := splitByRowBands(name, members, bands)
		if len(sub) < 2 {
			continue // members too concentrated to split spatially
		}

		delete(clusters, name)
		for subName, subMembers := range sub {
			clusters[subName] = subMembers
		}
		if name == dominant {
			dominant = ""
		}
	}

	return clusters
}

// dominantCluster returns the name of the largest cluster exceeding the
// dominance threshold, or "" if none does.
func dominantCluster(clusters map[string][]*types.Experience, total int) string {
	name, size := "", 0
	for n, members := range clusters {
		if len(members) > size || (len(members) == size && n < name) {
			name, size = n, len(members)
		}
	}
	if total > 0 && float64(size) > dominanceThreshold*float64(total) {
		return name
	}
	return ""
}

// namesBySizeDesc orders cluster names largest-first, ties by name, so the
// subdivision pass is deterministic.
func namesBySizeDesc(clusters map[string][]*types.Experience) []string {
	names := make([]string, 0, len(clusters))
	for name := range clusters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		si, sj := len(clusters[names[i]]), len(clusters[names[j]])
		if si != sj {
			return si > sj
		}
		return names[i] < names[j]
	})
	return names
}

// splitBandCount clamps the desired sub-split count to 2..maxSplitBands
func splitBandCount(want int) int {
	if want < 2 {
		return 2
	}
	if want > maxSplitBands {
		return maxSplitBands
	}
	return want
}

// splitByRowBands partitions members into row bands (rows 0-8 divided evenly
// across bands). Singleton bands are folded into the largest sibling to
// avoid fragmentation; empty bands are dropped.
func splitByRowBands(name string, members []*types.Experience, bands int) map[string][]*types.Experience {
	grouped := make([][]*types.Experience, bands)
	for _, exp := range members {
		row := exp.Move.Row
		if row < 0 {
			row = 0
		}
		if row > 8 {
			row = 8
		}
		band := row * bands / 9
		grouped[band] = append(grouped[band], exp)
	}

	// Fold singletons into the largest band
	largest := 0
	for i := 1; i < bands; i++ {
		if len(grouped[i]) > len(grouped[largest]) {
			largest = i
		}
	}
	for i := range grouped {
		if i != largest && len(grouped[i]) == 1 {
			grouped[largest] = append(grouped[largest], grouped[i][0])
			grouped[i] = nil
		}
	}

	sub := make(map[string][]*types.Experience)
	for i, g := range grouped {
		if len(g) == 0 {
			continue
		}
		lo := i*9/bands + 1
		hi := (i + 1) * 9 / bands
		sub[fmt.Sprintf("%s / rows %d-%d", name, lo, hi)] = g
	}
	return sub
}
