// Package dream implements the offline consolidation pipeline: it converts
// raw play experiences into reusable learning-unit strategies. One run
// fetches the profile's unconsolidated experiences, clusters them with a
// registered algorithm, synthesizes a strategy per cluster through the
// reasoning service, writes the results into a learning unit, and marks the
// consumed experiences consolidated.
package dream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridmind/gridmind/internal/cluster"
	"github.com/gridmind/gridmind/internal/experience"
	"github.com/gridmind/gridmind/internal/learnunit"
	"github.com/gridmind/gridmind/internal/llm"
	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/types"
)

// ErrMissingProfile signals a run against a profile with no recorded
// experiences at all. Surfaced before any state is mutated.
var ErrMissingProfile = errors.New("profile has no experiences")

// Consolidator orchestrates dreaming runs. Concurrent runs against the same
// profile are not serialized here; that is an operator responsibility.
type Consolidator struct {
	experiences *experience.Store
	units       *learnunit.Manager
	registry    *cluster.Registry
	client      llm.Client

	// ids created during the current invocation, so repeated same-day runs
	// and multi-unit modes never collide before hitting the store
	createdIDs map[string]bool
}

// NewConsolidator wires a consolidator to its collaborators
func NewConsolidator(exps *experience.Store, units *learnunit.Manager, registry *cluster.Registry, client llm.Client) *Consolidator {
	return &Consolidator{
		experiences: exps,
		units:       units,
		registry:    registry,
		client:      client,
		createdIDs:  make(map[string]bool),
	}
}

// Options configures one consolidation run
type Options struct {
	Profile   string
	Algorithm string // family name or versioned id; "" uses keyword-signature
	Target    int    // requested cluster count (default 8)
	UnitID    string // explicit destination unit; "" derives a fresh id

	ClusterConfig cluster.Config

	// Output policies, applied after clustering regardless of mode
	AnonymousPatterns bool
	CompactEncoding   bool

	MaxExemplars int    // exemplars per cluster in synthesis prompts (default 5)
	ReportPath   string // when set, the run report is serialized here
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Algorithm == "" {
		opts.Algorithm = "keyword-signature"
	}
	if opts.Target < 1 {
		opts.Target = 8
	}
	if opts.MaxExemplars < 1 {
		opts.MaxExemplars = 5
	}
	return opts
}

// Consolidate is the single-pass entry point: one algorithm, one strategy
// per cluster, written into the destination unit (created on first use),
// consumed experiences marked consolidated.
func (c *Consolidator) Consolidate(ctx context.Context, o Options) (*types.ConsolidationReport, error) {
	opts := o.withDefaults()

	algo, exps, err := c.prepare(opts)
	if err != nil {
		return nil, err
	}
	if len(exps) == 0 {
		logging.Info("dream", "nothing to consolidate for profile %s", opts.Profile)
		return &types.ConsolidationReport{}, nil
	}

	result, err := algo.Cluster(ctx, exps, opts.Target, opts.ClusterConfig)
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}
	logging.Info("dream", "clustered %d experiences into %d clusters via %s",
		result.Total, result.ClustersCreated, algo.Meta().ID)

	strategies := c.synthesizeAll(ctx, result, opts, 1)

	unitID := opts.UnitID
	if unitID == "" {
		unitID, err = c.nextUnitID(opts.Profile, "std", algo.Meta().ID)
		if err != nil {
			return nil, err
		}
	}

	unit, err := c.writeUnit(unitID, opts.Profile, algo.Meta(), strategies, exps)
	if err != nil {
		return nil, err
	}

	if err := c.markConsolidated(exps); err != nil {
		return nil, err
	}

	report := buildReport(result, unit, exps)
	if err := maybeWriteReport(report, opts.ReportPath); err != nil {
		return nil, err
	}
	return report, nil
}

// ConsolidateAll runs several algorithms in one invocation. With
// ResetBetweenAlgorithms set, the consolidated flag on the consumed
// experiences is explicitly reset between passes so every algorithm clusters
// the same full unconsolidated set independently. The reset is a deliberate
// side effect owned by this orchestration layer.
func (c *Consolidator) ConsolidateAll(ctx context.Context, o Options, algorithms []string, resetBetween bool) ([]*types.ConsolidationReport, error) {
	if len(algorithms) == 0 {
		return nil, fmt.Errorf("no algorithms requested")
	}

	// Resolve everything up front: an unknown algorithm must fail before
	// the first pass mutates any experience.
	for _, name := range algorithms {
		if _, err := c.registry.Resolve(name); err != nil {
			return nil, err
		}
	}

	// Snapshot the unconsolidated set so later resets restore exactly it
	snapshot, err := c.experiences.GetUnconsolidated(o.Profile)
	if err != nil {
		return nil, err
	}
	ids := experienceIDs(snapshot)

	var reports []*types.ConsolidationReport
	for i, name := range algorithms {
		opts := o
		opts.Algorithm = name
		opts.UnitID = "" // each algorithm writes its own unit

		report, err := c.Consolidate(ctx, opts)
		if err != nil {
			return reports, fmt.Errorf("algorithm %s: %w", name, err)
		}
		reports = append(reports, report)

		if resetBetween && i < len(algorithms)-1 {
			if err := c.experiences.ResetConsolidated(ids); err != nil {
				return reports, fmt.Errorf("reset between algorithms: %w", err)
			}
			logging.Debug("dream", "reset consolidated flag on %d experiences", len(ids))
		}
	}
	return reports, nil
}

// prepare resolves the algorithm and fetches the unconsolidated set,
// surfacing configuration errors before anything is mutated.
func (c *Consolidator) prepare(opts Options) (cluster.Algorithm, []*types.Experience, error) {
	if opts.Profile == "" {
		return nil, nil, fmt.Errorf("profile required")
	}

	algo, err := c.registry.Resolve(opts.Algorithm)
	if err != nil {
		return nil, nil, err
	}

	all, err := c.experiences.GetByProfile(opts.Profile)
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("profile %q: %w", opts.Profile, ErrMissingProfile)
	}

	unconsolidated := make([]*types.Experience, 0, len(all))
	for _, exp := range all {
		if !exp.Consolidated {
			unconsolidated = append(unconsolidated, exp)
		}
	}
	return algo, unconsolidated, nil
}

// writeUnit creates or updates the destination unit with the synthesized
// strategies and absorbs the consumed experience ids.
func (c *Consolidator) writeUnit(unitID, profile string, meta cluster.Meta, strategies []types.Strategy, exps []*types.Experience) (*types.LearningUnit, error) {
	unit, err := c.units.Get(unitID)
	if errors.Is(err, learnunit.ErrNotFound) {
		unit = &types.LearningUnit{
			ID:      unitID,
			Profile: profile,
			Name:    unitID,
			Description: fmt.Sprintf("Consolidated by %s (hash %.12s)",
				meta.ID, meta.ContentHash),
			Meta:      types.UnitMeta{PuzzleTypes: make(map[string]int)},
			CreatedAt: time.Now(),
		}
		if err := c.units.Create(unit); err != nil {
			return nil, err
		}
		c.createdIDs[unitID] = true
	} else if err != nil {
		return nil, err
	}

	unit.Strategies = strategies
	unit.Absorb(experienceIDs(exps)...)
	unit.Meta.TotalExperiences = len(unit.AbsorbedIDs)
	unit.Meta.Version++
	if unit.Meta.PuzzleTypes == nil {
		unit.Meta.PuzzleTypes = make(map[string]int)
	}
	for _, exp := range exps {
		if exp.PuzzleID != "" {
			unit.Meta.PuzzleTypes[exp.PuzzleID]++
		}
	}

	if err := c.units.Save(unit); err != nil {
		return nil, err
	}
	logging.Info("dream", "unit %s now holds %d strategies over %d experiences (v%d)",
		unit.ID, len(unit.Strategies), unit.Meta.TotalExperiences, unit.Meta.Version)
	return unit, nil
}

func (c *Consolidator) markConsolidated(exps []*types.Experience) error {
	if err := c.experiences.MarkConsolidated(experienceIDs(exps)); err != nil {
		return fmt.Errorf("mark consolidated: %w", err)
	}
	return nil
}

func experienceIDs(exps []*types.Experience) []string {
	ids := make([]string, len(exps))
	for i, exp := range exps {
		ids[i] = exp.ID
	}
	return ids
}
