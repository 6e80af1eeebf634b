package cluster

import "github.com/gridmind/gridmind/internal/types"

// FallbackPatterns is the fixed library of generic reasoning patterns used
// when pattern discovery fails or returns nothing usable. The pipeline never
// stalls on a bad discovery response; it categorizes against these instead.
func FallbackPatterns() []types.ReasoningPattern {
	return []types.ReasoningPattern{
		{
			ID:              "fb1",
			Name:            "direct placement",
			Description:     "A cell has exactly one legal value and it is placed immediately",
			Keywords:        []string{"only candidate", "single", "last remaining", "must be", "forced"},
			Characteristics: "short, confident, cell-local reasoning",
		},
		{
			ID:              "fb2",
			Name:            "constraint elimination",
			Description:     "Candidates are removed by checking row, column, and box constraints",
			Keywords:        []string{"eliminate", "constraint", "cannot be", "rules out", "excluded"},
			Characteristics: "negative reasoning over peers of a cell",
		},
		{
			ID:              "fb3",
			Name:            "unit scanning",
			Description:     "A row, column, or box is scanned for where a value can still go",
			Keywords:        []string{"row", "column", "box", "scan", "only place"},
			Characteristics: "value-first reasoning across one unit",
		},
		{
			ID:              "fb4",
			Name:            "candidate interaction",
			Description:     "Pairs or groups of candidates constrain each other across units",
			Keywords:        []string{"pair", "pointing", "subset", "locked", "interaction"},
			Characteristics: "multi-cell logic linking two or more units",
		},
		{
			ID:              "fb5",
			Name:            "exploratory reasoning",
			Description:     "Tentative or trial-based reasoning without a firm logical chain",
			Keywords:        []string{"guess", "try", "assume", "probably", "likely"},
			Characteristics: "hedged language, low logical certainty",
		},
	}
}
