package dream

import (
	"context"
	"fmt"

	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/types"
)

// ReConsolidate reruns clustering and synthesis for an existing unit over
// the union of its previously absorbed experiences and any newly
// unconsolidated ones, updating the unit in place with a version bump. The
// unit's absorbed set only grows: refinement never discards absorption
// history.
func (c *Consolidator) ReConsolidate(ctx context.Context, unitID string, o Options) (*types.ConsolidationReport, error) {
	opts := o.withDefaults()

	// The unit must exist before anything is touched
	unit, err := c.units.Get(unitID)
	if err != nil {
		return nil, err
	}
	if opts.Profile == "" {
		opts.Profile = unit.Profile
	}

	algo, fresh, err := c.prepare(opts)
	if err != nil {
		return nil, err
	}

	prior, err := c.experiences.GetByIDs(unit.AbsorbedIDs)
	if err != nil {
		return nil, err
	}

	union := unionExperiences(prior, fresh)
	if len(union) == 0 {
		logging.Info("dream", "unit %s has nothing to re-consolidate", unitID)
		return &types.ConsolidationReport{}, nil
	}
	logging.Info("dream", "re-consolidating unit %s over %d experiences (%d absorbed + %d new)",
		unitID, len(union), len(prior), len(fresh))

	result, err := algo.Cluster(ctx, union, opts.Target, opts.ClusterConfig)
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}

	strategies := c.synthesizeAll(ctx, result, opts, 1)

	updated, err := c.writeUnit(unitID, opts.Profile, algo.Meta(), strategies, union)
	if err != nil {
		return nil, err
	}

	if err := c.markConsolidated(fresh); err != nil {
		return nil, err
	}

	report := buildReport(result, updated, fresh)
	if err := maybeWriteReport(report, opts.ReportPath); err != nil {
		return nil, err
	}
	return report, nil
}

// unionExperiences merges two experience sets, first occurrence wins
func unionExperiences(a, b []*types.Experience) []*types.Experience {
	seen := make(map[string]bool, len(a)+len(b))
	var union []*types.Experience
	for _, exp := range append(append([]*types.Experience(nil), a...), b...) {
		if seen[exp.ID] {
			continue
		}
		seen[exp.ID] = true
		union = append(union, exp)
	}
	return union
}
