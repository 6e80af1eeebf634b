package cluster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gridmind/gridmind/internal/types"
)

// Line-oriented wire protocols for the reasoning service.
//
// Pattern discovery blocks:
//
//	PATTERN: p1
//	NAME: Single Candidate Scan
//	DESC: Finds cells with exactly one legal value
//	KEYWORDS: only candidate, single, last remaining
//	CHAR: local, cell-focused reasoning
//
// Models habitually wrap field labels in markdown emphasis ("**PATTERN:**"),
// so labels are matched after stripping leading/trailing emphasis markers.
// Anything else must match the literal field prefixes.

// ParsePatterns parses pattern-discovery blocks from a model reply.
// Returns an error when no complete pattern can be extracted; callers fall
// back to the fixed pattern library rather than failing the run.
func ParsePatterns(text string) ([]types.ReasoningPattern, error) {
	var patterns []types.ReasoningPattern
	var cur *types.ReasoningPattern

	flush := func() {
		if cur != nil && cur.Name != "" {
			patterns = append(patterns, *cur)
		}
		cur = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		line := stripEmphasis(strings.TrimSpace(raw))

		switch {
		case hasField(line, "PATTERN:"):
			flush()
			cur = &types.ReasoningPattern{ID: fieldValue(line, "PATTERN:")}
		case hasField(line, "NAME:"):
			if cur != nil {
				cur.Name = fieldValue(line, "NAME:")
			}
		case hasField(line, "DESC:"):
			if cur != nil {
				cur.Description = fieldValue(line, "DESC:")
			}
		case hasField(line, "KEYWORDS:"):
			if cur != nil {
				cur.Keywords = splitKeywords(fieldValue(line, "KEYWORDS:"))
			}
		case hasField(line, "CHAR:"):
			if cur != nil {
				cur.Characteristics = fieldValue(line, "CHAR:")
			}
		}
	}
	flush()

	if len(patterns) == 0 {
		return nil, fmt.Errorf("no patterns parsed from response (%d chars)", len(text))
	}
	return patterns, nil
}

// ParseCategorization parses the index-per-line categorization reply for n
// input experiences. Indices are 1-based into the pattern list; 0, negative,
// out-of-range, or non-numeric lines mean "uncategorized" and come back as 0.
// The returned slice always has length n: missing trailing lines are
// uncategorized, extra lines are ignored.
func ParseCategorization(text string, n, numPatterns int) []int {
	indices := make([]int, n)

	pos := 0
	for _, raw := range strings.Split(text, "\n") {
		if pos >= n {
			break
		}
		line := stripEmphasis(strings.TrimSpace(raw))
		if line == "" {
			continue
		}

		// Tolerate "3." / "3)" list decorations
		line = strings.TrimRight(line, ".)")

		idx, err := strconv.Atoi(line)
		if err != nil || idx < 1 || idx > numPatterns {
			indices[pos] = 0
		} else {
			indices[pos] = idx
		}
		pos++
	}

	return indices
}

// stripEmphasis removes markdown emphasis markers wrapped around a field
// label, e.g. "**PATTERN:** p1" -> "PATTERN: p1".
func stripEmphasis(line string) string {
	for _, marker := range []string{"**", "__", "*", "_"} {
		// "**PATTERN:** p1" and "**PATTERN**: p1" both normalize to "PATTERN: p1"
		line = strings.ReplaceAll(line, ":"+marker, ":")
		line = strings.ReplaceAll(line, marker+":", ":")
		line = strings.TrimPrefix(line, marker)
		line = strings.TrimSuffix(line, marker)
	}
	return strings.TrimSpace(line)
}

func hasField(line, field string) bool {
	return strings.HasPrefix(strings.ToUpper(line), field)
}

func fieldValue(line, field string) string {
	return strings.TrimSpace(line[len(field):])
}

func splitKeywords(s string) []string {
	var keywords []string
	for _, kw := range strings.Split(s, ",") {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
