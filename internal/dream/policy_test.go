package dream

import (
	"strings"
	"testing"

	"github.com/gridmind/gridmind/internal/types"
)

func TestAnonymizeStrategy(t *testing.T) {
	s := &types.Strategy{
		Name:    "Claude's trick for puzzle-a3f29b",
		Trigger: "I noticed the model hesitating",
		Analysis: []string{
			"gpt-4 eliminated candidates in my grid",
			"the llm placed the value",
		},
		Example: &types.Move{Row: 1, Col: 1, Value: 2, Reasoning: "I placed it because llama3 said so"},
	}

	anonymizeStrategy(s)

	joined := s.Name + " " + s.Trigger + " " + strings.Join(s.Analysis, " ") + " " + s.Example.Reasoning
	lower := strings.ToLower(joined)
	for _, banned := range []string{"claude", "gpt-4", "llama3", "the llm", "the model", "puzzle-a3f29b"} {
		if strings.Contains(lower, banned) {
			t.Errorf("Identifying term %q survived: %q", banned, joined)
		}
	}
	if !strings.Contains(s.Name, "the solver") {
		t.Errorf("Model reference not rewritten: %q", s.Name)
	}
	if !strings.Contains(s.Name, "the puzzle") {
		t.Errorf("Puzzle reference not rewritten: %q", s.Name)
	}
	if !strings.Contains(s.Trigger, "It can be observed") {
		t.Errorf("First-person phrasing survived: %q", s.Trigger)
	}
}

func TestAnonymizeCopiesExample(t *testing.T) {
	shared := &types.Move{Reasoning: "I placed the value"}
	s := &types.Strategy{Name: "n", Example: shared}

	anonymizeStrategy(s)

	if shared.Reasoning != "I placed the value" {
		t.Error("Anonymization mutated the shared example")
	}
	if s.Example.Reasoning == shared.Reasoning {
		t.Error("Example was not rewritten")
	}
}

func TestCompactEncode(t *testing.T) {
	s := types.Strategy{
		Level:    types.LevelPrinciple,
		Trigger:  "short trigger",
		Analysis: []string{"a", "b", "c"},
		Example:  &types.Move{Row: 3, Col: 7, Value: 9},
	}

	enc := compactEncode(s)
	if enc != "P|short trigger|s3|r3c7=9" {
		t.Errorf("compactEncode = %q", enc)
	}

	// Long triggers truncate; missing examples drop the move segment
	s = types.Strategy{
		Level:   types.LevelTechnique,
		Trigger: strings.Repeat("x", 60),
	}
	enc = compactEncode(s)
	if enc != "T|"+strings.Repeat("x", 40)+"|s0" {
		t.Errorf("compactEncode = %q", enc)
	}
}
