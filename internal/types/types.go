package types

import "time"

// Experience is one recorded (proposed move, outcome) interaction from an
// agent-puzzle session. Created once during play; the only later mutation is
// flipping Consolidated during dreaming.
type Experience struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	Profile      string          `json:"profile"`
	PuzzleID     string          `json:"puzzle_id"`
	PuzzleHash   string          `json:"puzzle_hash,omitempty"`
	MoveNumber   int             `json:"move_number"`
	Board        [][]int         `json:"board"` // pre-move snapshot, 0 = empty cell
	Move         Move            `json:"move"`
	Validation   Validation      `json:"validation"`
	Metrics      Metrics         `json:"metrics"`
	Learning     LearningContext `json:"learning_context"`
	Consolidated bool            `json:"consolidated"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Move is a proposed placement with the model's free-text reasoning
type Move struct {
	Row        int      `json:"row"`
	Col        int      `json:"col"`
	Value      int      `json:"value"`
	Reasoning  string   `json:"reasoning"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Validation is the engine's verdict on a proposed move
type Validation struct {
	Valid   bool   `json:"valid"`
	Correct bool   `json:"correct"`
	Outcome string `json:"outcome"` // solved, progress, dead_end, invalid
	Error   string `json:"error,omitempty"`
}

// Metrics are contextual measurements captured at move time
type Metrics struct {
	EmptyCells        int     `json:"empty_cells"`
	ReasoningLength   int     `json:"reasoning_length"`
	ConstraintDensity float64 `json:"constraint_density"`
}

// LearningContext summarizes what knowledge was in play when the move was made
type LearningContext struct {
	FewShotsUsed      bool `json:"few_shots_used"`
	FewShotCount      int  `json:"few_shot_count"`
	PatternsAvailable int  `json:"patterns_available"`
	PriorConsolidated int  `json:"prior_consolidated"`
}

// Recency returns seconds since the experience was recorded
func (e *Experience) Recency() float64 {
	return time.Since(e.CreatedAt).Seconds()
}

// ClusterResult is the output of one clustering run. It is ephemeral and
// never persisted. The partition is total and disjoint: every input
// experience appears in exactly one cluster.
type ClusterResult struct {
	Clusters        map[string][]*Experience `json:"clusters"`
	Total           int                      `json:"total"`
	ClustersCreated int                      `json:"clusters_created"`
	ProcessingTime  time.Duration            `json:"processing_time"`
}

// ReasoningPattern is a discovered (or fallback) reasoning style used by the
// model-assisted clustering algorithm to categorize experiences.
type ReasoningPattern struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Keywords        []string `json:"keywords"`
	Characteristics string   `json:"characteristics"`
}

// AbstractionLevel classifies how general a strategy is
type AbstractionLevel string

const (
	LevelInstance  AbstractionLevel = "instance"  // one concrete board situation
	LevelTechnique AbstractionLevel = "technique" // a named solving technique
	LevelCategory  AbstractionLevel = "category"  // a family of techniques
	LevelPrinciple AbstractionLevel = "principle" // a general solving principle
)

// Strategy is a synthesized, reusable description of a solving technique,
// meant to be replayed into future prompts as a few-shot entry.
type Strategy struct {
	Name     string           `json:"name"`
	Level    AbstractionLevel `json:"level"`
	Trigger  string           `json:"trigger"`  // when to reach for this technique
	Analysis []string         `json:"analysis"` // ordered reasoning steps
	Example  *Move            `json:"example,omitempty"`
	Compact  string           `json:"compact,omitempty"` // alternate compact encoding
}

// UnitMeta holds a learning unit's bookkeeping
type UnitMeta struct {
	TotalExperiences int            `json:"total_experiences"`
	Version          int            `json:"version"`
	PuzzleTypes      map[string]int `json:"puzzle_types,omitempty"`
	MergedFrom       []string       `json:"merged_from,omitempty"`
}

// LearningUnit is a named, versioned bundle of synthesized strategies plus
// provenance over absorbed experiences. The absorbed-id set only grows,
// except through an explicit operator reset.
type LearningUnit struct {
	ID          string     `json:"id"`
	Profile     string     `json:"profile"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Strategies  []Strategy `json:"strategies"`
	AbsorbedIDs []string   `json:"absorbed_ids"`
	Hierarchy   *Hierarchy `json:"hierarchy,omitempty"`
	Meta        UnitMeta   `json:"meta"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasAbsorbed reports whether the unit already absorbed the experience id
func (u *LearningUnit) HasAbsorbed(id string) bool {
	for _, a := range u.AbsorbedIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Absorb adds experience ids to the unit, preserving set semantics
func (u *LearningUnit) Absorb(ids ...string) {
	for _, id := range ids {
		if !u.HasAbsorbed(id) {
			u.AbsorbedIDs = append(u.AbsorbedIDs, id)
		}
	}
}

// Hierarchy is an abstraction hierarchy over strategies: level name ->
// strategy names at that level, plus free-form notes.
type Hierarchy struct {
	Profile   string              `json:"profile"`
	Levels    map[string][]string `json:"levels"`
	Notes     string              `json:"notes,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// ReportPatterns groups the pattern-level findings of a consolidation run
type ReportPatterns struct {
	SuccessStrategies []string `json:"success_strategies"`
	CommonErrors      []string `json:"common_errors"`
	WrongPathPatterns []string `json:"wrong_path_patterns"`
}

// ConsolidationReport is the artifact summarizing one dreaming run.
// Optionally serialized to a caller-supplied path.
type ConsolidationReport struct {
	ExperiencesConsolidated int            `json:"experiences_consolidated"`
	FewShotsUpdated         int            `json:"few_shots_updated"`
	Patterns                ReportPatterns `json:"patterns"`
	Insights                string         `json:"insights"`
}
