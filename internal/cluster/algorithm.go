// Package cluster implements the pluggable clustering subsystem: the
// algorithm contract, the version registry, a deterministic keyword-signature
// algorithm, and a model-assisted pattern-discovery algorithm.
package cluster

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/gridmind/gridmind/internal/types"
)

// ErrUnknownAlgorithm is returned by the registry for lookups that match
// neither a family name nor a versioned identifier.
var ErrUnknownAlgorithm = errors.New("unknown clustering algorithm")

// Config tunes a clustering run. Zero values select the defaults.
type Config struct {
	BatchSize   int    // categorization batch size (default 50)
	Concurrency int    // simultaneous categorization batches (default 3)
	Hybrid      bool   // keyword pre-match before model categorization
	Cache       *Cache // optional per-experience categorization cache
}

// Algorithm partitions experiences into named clusters.
// Implementations must return a total, disjoint partition for any input,
// including empty (zero clusters, zero total) and single-experience input
// (one cluster of one).
type Algorithm interface {
	Cluster(ctx context.Context, exps []*types.Experience, target int, cfg Config) (*types.ClusterResult, error)
	Meta() Meta
}

// Meta describes an algorithm implementation. ID is stable for a given
// (name, version) pair for the lifetime of the registry; ContentHash is a
// provenance hash of the algorithm's packaged source, computed once at
// construction, so stored learning units can later be checked against the
// exact code that produced them.
type Meta struct {
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	ID          string    `json:"id"`
	Description string    `json:"description"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// newMeta derives the versioned identifier and provenance hash
func newMeta(name string, version int, description, source string) Meta {
	sum := blake3.Sum256([]byte(source))
	return Meta{
		Name:        name,
		Version:     version,
		ID:          fmt.Sprintf("%s_v%d", name, version),
		Description: description,
		ContentHash: hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now(),
	}
}

// emptyResult is the canonical zero-input result
func emptyResult(start time.Time) *types.ClusterResult {
	return &types.ClusterResult{
		Clusters:       map[string][]*types.Experience{},
		ProcessingTime: time.Since(start),
	}
}

// finishResult fills the derived counters on a cluster map
func finishResult(clusters map[string][]*types.Experience, start time.Time) *types.ClusterResult {
	total := 0
	for _, members := range clusters {
		total += len(members)
	}
	return &types.ClusterResult{
		Clusters:        clusters,
		Total:           total,
		ClustersCreated: len(clusters),
		ProcessingTime:  time.Since(start),
	}
}
