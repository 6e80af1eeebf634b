package dream

import (
	"context"
	"fmt"

	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/types"
)

// doubledSuffix names the sibling unit carrying the doubled strategy tier
const doubledSuffix = "_2x"

// ConsolidateDual runs one clustering pass but synthesizes two strategy
// densities from it: a standard tier (one strategy per cluster) and a
// doubled tier (two per cluster), written to sibling units `<id>` and
// `<id>_2x`. Both share the same source clustering, so downstream evaluation
// can compare strategy density without re-clustering.
func (c *Consolidator) ConsolidateDual(ctx context.Context, o Options) (*types.ConsolidationReport, error) {
	opts := o.withDefaults()

	algo, exps, err := c.prepare(opts)
	if err != nil {
		return nil, err
	}
	if len(exps) == 0 {
		logging.Info("dream", "nothing to consolidate for profile %s", opts.Profile)
		return &types.ConsolidationReport{}, nil
	}

	baseID := opts.UnitID
	if baseID == "" {
		baseID, err = c.nextUnitID(opts.Profile, "dual", algo.Meta().ID)
		if err != nil {
			return nil, err
		}
	}
	doubledID := baseID + doubledSuffix

	result, err := algo.Cluster(ctx, exps, opts.Target, opts.ClusterConfig)
	if err != nil {
		return nil, fmt.Errorf("clustering: %w", err)
	}
	logging.Info("dream", "dual-tier run: %d clusters feeding units %s and %s",
		result.ClustersCreated, baseID, doubledID)

	standard := c.synthesizeAll(ctx, result, opts, 1)
	doubled := c.synthesizeAll(ctx, result, opts, 2)

	baseUnit, err := c.writeUnit(baseID, opts.Profile, algo.Meta(), standard, exps)
	if err != nil {
		return nil, err
	}
	if _, err := c.writeUnit(doubledID, opts.Profile, algo.Meta(), doubled, exps); err != nil {
		return nil, err
	}

	if err := c.markConsolidated(exps); err != nil {
		return nil, err
	}

	report := buildReport(result, baseUnit, exps)
	if err := maybeWriteReport(report, opts.ReportPath); err != nil {
		return nil, err
	}
	return report, nil
}
