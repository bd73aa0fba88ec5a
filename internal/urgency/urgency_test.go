package urgency

import (
	"math"
	"testing"

	"triage/assistant/internal/intake"
	"triage/assistant/internal/types"
)

func answers(kv map[int]string) map[int]types.AnswerRecord {
	out := make(map[int]types.AnswerRecord, len(kv))
	for id, v := range kv {
		out[id] = types.AnswerRecord{QuestionID: id, NormalizedValue: v}
	}
	return out
}

func TestBleedingAndBreathingIsCritical(t *testing.T) {
	got := DefaultTable().Assess(answers(map[int]string{
		intake.QuestionBleeding:  "Yes",
		intake.QuestionBreathing: "Yes",
		intake.QuestionChestPain: "No",
		intake.QuestionMobility:  "Yes",
	}))
	if math.Abs(got.Score-1.5) > 1e-9 {
		t.Fatalf("expected score 1.5, got %v", got.Score)
	}
	if got.Label != types.UrgencyCritical {
		t.Fatalf("expected CRITICAL, got %s", got.Label)
	}
}

func TestLabels(t *testing.T) {
	cases := []struct {
		name string
		in   map[int]string
		want string
	}{
		{"nothing", map[int]string{}, types.UrgencyLow},
		{"cannot walk", map[int]string{intake.QuestionMobility: "No"}, types.UrgencyMedium},
		{"chest pain", map[int]string{intake.QuestionChestPain: "Yes"}, types.UrgencyMedium},
		{"bleeding", map[int]string{intake.QuestionBleeding: "Yes"}, types.UrgencyHigh},
		{"exactly one is not critical", map[int]string{intake.QuestionChestPain: "Yes", intake.QuestionMobility: "No"}, types.UrgencyHigh},
		{"elderly bleeding", map[int]string{intake.QuestionBleeding: "Yes", intake.QuestionAge: "80"}, types.UrgencyHigh},
		{"toddler chest pain", map[int]string{intake.QuestionChestPain: "Yes", intake.QuestionAge: "3"}, types.UrgencyHigh},
		{"unparsable age", map[int]string{intake.QuestionAge: "old"}, types.UrgencyLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DefaultTable().Assess(answers(tc.in)); got.Label != tc.want {
				t.Fatalf("got %s (score %.2f), want %s", got.Label, got.Score, tc.want)
			}
		})
	}
}

func TestTimedOutAnswersDoNotScore(t *testing.T) {
	in := map[int]types.AnswerRecord{
		intake.QuestionBleeding: {QuestionID: intake.QuestionBleeding, NormalizedValue: "Yes", WasTimeout: true},
	}
	if got := DefaultTable().Assess(in); got.Score != 0 {
		t.Fatalf("expected 0, got %v", got.Score)
	}
}
