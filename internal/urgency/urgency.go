// Package urgency derives a coarse urgency label from collected answers.
package urgency

import (
	"strconv"

	"triage/assistant/internal/intake"
	"triage/assistant/internal/types"
)

// Scorer is swapped per deployment.
type Scorer interface {
	Assess(answers map[int]types.AnswerRecord) Assessment
}

type Assessment struct {
	Score float64
	Label string
}

// Rule adds Weight when the normalized answer to QuestionID equals Answer.
type Rule struct {
	QuestionID int
	Answer     string
	Weight     float64
}

type AgeRule struct {
	QuestionID  int
	Over        int
	OverWeight  float64
	Under       int
	UnderWeight float64
}

// Thresholds are exclusive lower bounds; anything at or below Medium is LOW.
type Thresholds struct {
	Critical float64
	High     float64
	Medium   float64
}

type Table struct {
	Rules      []Rule
	Age        *AgeRule
	Thresholds Thresholds
}

func DefaultTable() Table {
	return Table{
		Rules: []Rule{
			{QuestionID: intake.QuestionBleeding, Answer: "Yes", Weight: 0.8},
			{QuestionID: intake.QuestionBreathing, Answer: "Yes", Weight: 0.7},
			{QuestionID: intake.QuestionChestPain, Answer: "Yes", Weight: 0.6},
			// unable to walk unaided
			{QuestionID: intake.QuestionMobility, Answer: "No", Weight: 0.4},
		},
		Age: &AgeRule{
			QuestionID:  intake.QuestionAge,
			Over:        65,
			OverWeight:  0.1,
			Under:       5,
			UnderWeight: 0.2,
		},
		Thresholds: Thresholds{Critical: 1.0, High: 0.6, Medium: 0.3},
	}
}

func (t Table) Assess(answers map[int]types.AnswerRecord) Assessment {
	var score float64
	for _, r := range t.Rules {
		rec, ok := answers[r.QuestionID]
		if !ok || rec.WasTimeout {
			continue
		}
		if rec.NormalizedValue == r.Answer {
			score += r.Weight
		}
	}
	if t.Age != nil {
		score += t.Age.weight(answers)
	}
	return Assessment{Score: score, Label: t.label(score)}
}

func (a *AgeRule) weight(answers map[int]types.AnswerRecord) float64 {
	rec, ok := answers[a.QuestionID]
	if !ok || rec.WasTimeout {
		return 0
	}
	age, err := strconv.Atoi(rec.NormalizedValue)
	if err != nil {
		return 0
	}
	switch {
	case age > a.Over:
		return a.OverWeight
	case age < a.Under:
		return a.UnderWeight
	default:
		return 0
	}
}

func (t Table) label(score float64) string {
	switch {
	case score > t.Thresholds.Critical:
		return types.UrgencyCritical
	case score > t.Thresholds.High:
		return types.UrgencyHigh
	case score > t.Thresholds.Medium:
		return types.UrgencyMedium
	default:
		return types.UrgencyLow
	}
}
