package dream

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/gridmind/gridmind/internal/types"
)

// buildReport summarizes a run from its clustering result, the written unit,
// and the consumed experiences.
func buildReport(result *types.ClusterResult, unit *types.LearningUnit, exps []*types.Experience) *types.ConsolidationReport {
	report := &types.ConsolidationReport{
		ExperiencesConsolidated: len(exps),
		FewShotsUpdated:         len(unit.Strategies),
	}

	// Cluster names split by their members' dominant outcome
	errorCounts := make(map[string]int)
	names := make([]string, 0, len(result.Clusters))
	for name := range result.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		members := result.Clusters[name]
		correct, deadEnd := 0, 0
		for _, exp := range members {
			if exp.Validation.Correct {
				correct++
			}
			if exp.Validation.Outcome == "dead_end" {
				deadEnd++
			}
			if exp.Validation.Error != "" {
				errorCounts[exp.Validation.Error]++
			}
		}
		switch {
		case len(members) > 0 && correct*2 > len(members):
			report.Patterns.SuccessStrategies = append(report.Patterns.SuccessStrategies, name)
		case len(members) > 0 && deadEnd*2 > len(members):
			report.Patterns.WrongPathPatterns = append(report.Patterns.WrongPathPatterns, name)
		}
	}

	// Most frequent validation errors first
	errs := make([]string, 0, len(errorCounts))
	for e := range errorCounts {
		errs = append(errs, e)
	}
	sort.Slice(errs, func(i, j int) bool {
		if errorCounts[errs[i]] != errorCounts[errs[j]] {
			return errorCounts[errs[i]] > errorCounts[errs[j]]
		}
		return errs[i] < errs[j]
	})
	if len(errs) > 5 {
		errs = errs[:5]
	}
	report.Patterns.CommonErrors = errs

	report.Insights = fmt.Sprintf(
		"%d experiences consolidated into %d strategies across %d clusters; %d reliable patterns, %d wrong-path patterns",
		len(exps), len(unit.Strategies), result.ClustersCreated,
		len(report.Patterns.SuccessStrategies), len(report.Patterns.WrongPathPatterns))

	return report
}

// maybeWriteReport serializes the report to path when one was supplied
func maybeWriteReport(report *types.ConsolidationReport, path string) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
