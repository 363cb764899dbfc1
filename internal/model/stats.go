package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// RunState tracks where a pipeline run is in its lifecycle.
type RunState string

const (
	StateInit            RunState = "init"
	StateCollecting      RunState = "collecting"
	StateDeduping        RunState = "deduping"
	StateResolvingDates  RunState = "resolving_dates"
	StateFilteringDates  RunState = "filtering_dates"
	StateAnalyzing       RunState = "analyzing"
	StateFilteringScores RunState = "filtering_scores"
	StateEnhancing       RunState = "enhancing"
	StateDone            RunState = "done"
	StateCancelled       RunState = "cancelled"
	StateFailed          RunState = "failed"
)

// ScoreBands buckets relevance scores for reporting.
type ScoreBands struct {
	High   int `json:"high"`   // >= 80
	Medium int `json:"medium"` // 60-79
	Low    int `json:"low"`    // 40-59
	Reject int `json:"reject"` // < 40
}

// Add counts a score into its band.
func (b *ScoreBands) Add(score int) {
	switch {
	case score >= 80:
		b.High++
	case score >= 60:
		b.Medium++
	case score >= 40:
		b.Low++
	default:
		b.Reject++
	}
}

// StrategyStats is the per-strategy detail row captured verbatim for the
// metadata recorder.
type StrategyStats struct {
	Provider           Provider      `json:"provider"`
	Strategy           string        `json:"strategy"`
	Retrieved          int           `json:"retrieved"`
	CrossStrategyDupes int           `json:"cross_strategy_dupes"`
	CrossProviderDupes int           `json:"cross_provider_dupes"`
	InRange            int           `json:"in_range"`
	Bands              ScoreBands    `json:"score_bands"`
	Kept               int           `json:"kept"`
	UniqueContribution int           `json:"unique_contribution"`
	AvgScore           float64       `json:"avg_score"`
	Elapsed            time.Duration `json:"elapsed"`
	Err                string        `json:"error,omitempty"`
}

// ProviderStats aggregates a provider's strategies.
type ProviderStats struct {
	Provider           Provider      `json:"provider"`
	Strategies         []string      `json:"strategies"`
	Retrieved          int           `json:"retrieved"`
	AfterDedup         int           `json:"after_dedup"`
	UniqueContribution int           `json:"unique_contribution"`
	DuplicateRate      float64       `json:"duplicate_rate"`
	AvgScore           float64       `json:"avg_score"`
	Kept               int           `json:"kept"`
	Elapsed            time.Duration `json:"elapsed"`
}

// PhaseTiming records how long one pipeline phase took.
type PhaseTiming struct {
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed"`
	Skipped bool          `json:"skipped,omitempty"`
}

// RunStats carries every counter the pipeline accumulates across its stages.
// All mutation happens on the orchestrator goroutine.
type RunStats struct {
	Collected         int `json:"collected"`
	Unique            int `json:"unique"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	DuplicateGroups   int `json:"duplicate_groups"`

	WithDates      int `json:"with_dates"`
	WithoutDates   int `json:"without_dates"`
	ModelExtracted int `json:"model_extracted"`

	InRange      int `json:"in_range"`
	OutOfRange   int `json:"out_of_range"`
	ModelRescued int `json:"model_rescued"`

	Analyzed int `json:"analyzed"`
	Failures int `json:"failures"`
	Kept     int `json:"kept"`
	Filtered int `json:"filtered"`

	ScoreMin int        `json:"score_min"`
	ScoreMax int        `json:"score_max"`
	ScoreAvg float64    `json:"score_avg"`
	Bands    ScoreBands `json:"score_bands"`

	ArticleTypes map[string]int              `json:"article_types,omitempty"`
	Providers    map[Provider]*ProviderStats `json:"providers,omitempty"`
	Strategies   []StrategyStats             `json:"strategies,omitempty"`
	Phases       []PhaseTiming               `json:"phases,omitempty"`

	State RunState `json:"state"`
	Error string   `json:"error,omitempty"`
}

// CheckConsistency verifies the cross-stage counter invariants. A violation
// is an orchestrator bug, never a data condition.
func (s *RunStats) CheckConsistency() error {
	if s.Collected != s.Unique+s.DuplicatesRemoved {
		return eris.Errorf("stats: collected %d != unique %d + duplicates_removed %d",
			s.Collected, s.Unique, s.DuplicatesRemoved)
	}
	if s.Analyzed != s.Kept+s.Filtered {
		return eris.Errorf("stats: analyzed %d != kept %d + filtered %d",
			s.Analyzed, s.Kept, s.Filtered)
	}
	return nil
}

// RunResult is what a pipeline run hands back to the caller.
type RunResult struct {
	SessionID string        `json:"session_id"`
	Query     Query         `json:"query"`
	Articles  []Article     `json:"results"`
	Stats     RunStats      `json:"workflow_stats"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}
