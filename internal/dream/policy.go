package dream

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gridmind/gridmind/internal/types"
)

// Anonymous pattern mode strips model- and puzzle-identifying language from
// synthesized strategies so they read as generic technique descriptions.

var (
	puzzleRefPattern = regexp.MustCompile(`(?i)\bpuzzle[-_ ]?[0-9a-f]{4,}\b`)
	modelRefPattern  = regexp.MustCompile(`(?i)\b(claude|gpt-?[0-9a-z.]*|llama[-0-9a-z.]*|gemini|the model|the llm|the ai)\b`)
	firstPerson      = strings.NewReplacer(
		"I noticed", "It can be observed",
		"I see", "There is",
		"I placed", "Place",
		"I chose", "Choose",
		"my ", "the ",
		"My ", "The ",
	)
)

// anonymizeStrategy rewrites identifying language in place
func anonymizeStrategy(s *types.Strategy) {
	s.Name = anonymizeText(s.Name)
	s.Trigger = anonymizeText(s.Trigger)
	for i, step := range s.Analysis {
		s.Analysis[i] = anonymizeText(step)
	}
	if s.Example != nil {
		ex := *s.Example
		ex.Reasoning = anonymizeText(ex.Reasoning)
		s.Example = &ex
	}
}

func anonymizeText(text string) string {
	text = puzzleRefPattern.ReplaceAllString(text, "the puzzle")
	text = modelRefPattern.ReplaceAllString(text, "the solver")
	text = firstPerson.Replace(text)
	return text
}

// compactEncode layers an alternate compact encoding on top of the normal
// strategy representation: level tag, truncated trigger, step count, and the
// worked example move if present.
func compactEncode(s types.Strategy) string {
	level := "T"
	switch s.Level {
	case types.LevelInstance:
		level = "I"
	case types.LevelCategory:
		level = "C"
	case types.LevelPrinciple:
		level = "P"
	}

	trigger := s.Trigger
	if len(trigger) > 40 {
		trigger = trigger[:40]
	}

	enc := fmt.Sprintf("%s|%s|s%d", level, trigger, len(s.Analysis))
	if s.Example != nil {
		enc += fmt.Sprintf("|r%dc%d=%d", s.Example.Row, s.Example.Col, s.Example.Value)
	}
	return enc
}
