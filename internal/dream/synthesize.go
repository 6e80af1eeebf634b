package dream

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gridmind/gridmind/internal/llm"
	"github.com/gridmind/gridmind/internal/logging"
	"github.com/gridmind/gridmind/internal/types"
)

// synthesizeAll produces strategies for every non-empty cluster, in cluster
// name order so output is stable, then applies the run's output policies.
// density is how many strategies each cluster yields (1 standard, 2 doubled).
func (c *Consolidator) synthesizeAll(ctx context.Context, result *types.ClusterResult, opts Options, density int) []types.Strategy {
	names := make([]string, 0, len(result.Clusters))
	for name, members := range result.Clusters {
		if len(members) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var strategies []types.Strategy
	for _, name := range names {
		strategies = append(strategies,
			c.synthesizeCluster(ctx, name, result.Clusters[name], opts, density)...)
	}

	for i := range strategies {
		if opts.AnonymousPatterns {
			anonymizeStrategy(&strategies[i])
		}
		if opts.CompactEncoding {
			strategies[i].Compact = compactEncode(strategies[i])
		}
	}
	return strategies
}

// synthesizeCluster asks the reasoning service to distill one cluster's
// exemplars into `density` strategies. An unusable reply degrades to a
// deterministic baseline built from the cluster itself; synthesis failures
// never fail the run.
func (c *Consolidator) synthesizeCluster(ctx context.Context, name string, members []*types.Experience, opts Options, density int) []types.Strategy {
	exemplars := members
	if len(exemplars) > opts.MaxExemplars {
		exemplars = exemplars[:opts.MaxExemplars]
	}

	var parsed []types.Strategy
	resp, err := c.client.Send(ctx, llm.UserMessage(buildSynthesisPrompt(name, exemplars, density)))
	if err != nil {
		logging.Info("dream", "synthesis failed for cluster %q (%v), using baseline", name, err)
	} else {
		parsed = parseStrategies(resp)
		if len(parsed) == 0 {
			logging.Info("dream", "synthesis reply unusable for cluster %q, using baseline", name)
			logging.Debug("dream", "unusable reply: %s", logging.Truncate(resp, 200))
		}
	}

	if len(parsed) == 0 {
		parsed = baselineStrategies(name, members)
	}
	if len(parsed) > density {
		parsed = parsed[:density]
	}
	for len(parsed) < density {
		parsed = append(parsed, workedExampleVariant(parsed[0], members))
	}

	// Make sure every strategy carries a worked example when one exists
	if ex := exampleMove(members); ex != nil {
		for i := range parsed {
			if parsed[i].Example == nil {
				parsed[i].Example = ex
			}
		}
	}
	return parsed
}

// buildSynthesisPrompt constructs the per-cluster summarization request
func buildSynthesisPrompt(name string, exemplars []*types.Experience, density int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `These Sudoku move explanations all share the reasoning pattern %q.
Distill them into %d reusable solving strateg%s.

For each strategy, output a block in exactly this format:

STRATEGY: 1
NAME: <short technique name>
LEVEL: <instance|technique|category|principle>
TRIGGER: <one line describing when to apply it>
STEP: <first reasoning step>
STEP: <next reasoning step>

Move explanations:
`, name, density, plural(density))

	for i, exp := range exemplars {
		outcome := exp.Validation.Outcome
		if outcome == "" {
			outcome = "unknown"
		}
		fmt.Fprintf(&sb, "\n%d. [%s] %s", i+1, outcome, oneLineReasoning(exp.Move.Reasoning))
	}

	sb.WriteString("\n\nOutput only strategy blocks, nothing else.")
	return sb.String()
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// parseStrategies parses STRATEGY blocks from a synthesis reply. Incomplete
// blocks (no name) are dropped; markdown emphasis around labels is
// tolerated, like the clustering protocols.
func parseStrategies(text string) []types.Strategy {
	var strategies []types.Strategy
	var cur *types.Strategy

	flush := func() {
		if cur != nil && cur.Name != "" {
			if cur.Level == "" {
				cur.Level = types.LevelTechnique
			}
			strategies = append(strategies, *cur)
		}
		cur = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := cleanLabelLine(raw)

		switch {
		case strings.HasPrefix(line, "STRATEGY:"):
			flush()
			cur = &types.Strategy{}
		case strings.HasPrefix(line, "NAME:"):
			if cur == nil {
				cur = &types.Strategy{} // tolerate a missing STRATEGY header
			}
			cur.Name = strings.TrimSpace(line[len("NAME:"):])
		case strings.HasPrefix(line, "LEVEL:"):
			if cur != nil {
				cur.Level = parseLevel(strings.TrimSpace(line[len("LEVEL:"):]))
			}
		case strings.HasPrefix(line, "TRIGGER:"):
			if cur != nil {
				cur.Trigger = strings.TrimSpace(line[len("TRIGGER:"):])
			}
		case strings.HasPrefix(line, "STEP:"):
			if cur != nil {
				if step := strings.TrimSpace(line[len("STEP:"):]); step != "" {
					cur.Analysis = append(cur.Analysis, step)
				}
			}
		}
	}
	flush()
	return strategies
}

// cleanLabelLine trims whitespace and markdown emphasis around field labels
func cleanLabelLine(raw string) string {
	line := strings.TrimSpace(raw)
	for _, marker := range []string{"**", "__", "*", "_"} {
		line = strings.ReplaceAll(line, ":"+marker, ":")
		line = strings.ReplaceAll(line, marker+":", ":")
		line = strings.TrimPrefix(line, marker)
		line = strings.TrimSuffix(line, marker)
	}
	return strings.ToUpper(firstField(line)) + afterFirstField(line)
}

func firstField(line string) string {
	if idx := strings.Index(line, ":"); idx >= 0 {
		return line[:idx+1]
	}
	return line
}

func afterFirstField(line string) string {
	if idx := strings.Index(line, ":"); idx >= 0 {
		return line[idx+1:]
	}
	return ""
}

func parseLevel(s string) types.AbstractionLevel {
	switch types.AbstractionLevel(strings.ToLower(s)) {
	case types.LevelInstance, types.LevelTechnique, types.LevelCategory, types.LevelPrinciple:
		return types.AbstractionLevel(strings.ToLower(s))
	default:
		return types.LevelTechnique
	}
}

// baselineStrategies builds a deterministic strategy from the cluster when
// the reasoning service is unavailable or unusable.
func baselineStrategies(name string, members []*types.Experience) []types.Strategy {
	analysis := make([]string, 0, 3)
	for _, exp := range members {
		if r := oneLineReasoning(exp.Move.Reasoning); r != "" {
			analysis = append(analysis, r)
		}
		if len(analysis) == 3 {
			break
		}
	}

	return []types.Strategy{{
		Name:     name,
		Level:    types.LevelTechnique,
		Trigger:  fmt.Sprintf("Board situations matching the %q reasoning pattern", name),
		Analysis: analysis,
		Example:  exampleMove(members),
	}}
}

// workedExampleVariant derives an instance-level sibling strategy for the
// doubled tier from an already synthesized one.
func workedExampleVariant(base types.Strategy, members []*types.Experience) types.Strategy {
	variant := base
	variant.Name = base.Name + " (worked example)"
	variant.Level = types.LevelInstance
	variant.Example = exampleMove(members)
	return variant
}

// exampleMove picks the first correct move as a worked example, falling back
// to the first valid one.
func exampleMove(members []*types.Experience) *types.Move {
	var valid *types.Move
	for _, exp := range members {
		if exp.Validation.Correct {
			mv := exp.Move
			return &mv
		}
		if valid == nil && exp.Validation.Valid {
			mv := exp.Move
			valid = &mv
		}
	}
	return valid
}

func oneLineReasoning(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
