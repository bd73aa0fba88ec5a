package record

import (
	"context"
	"errors"
	"testing"

	"triage/assistant/internal/intake"
	"triage/assistant/internal/types"
)

func sessionWith(answers map[int]types.AnswerRecord) *intake.Session {
	s := intake.New("sess-1", intake.DefaultQuestions())
	for _, a := range answers {
		_ = s.RecordAnswer(a)
	}
	return s
}

func TestBuildMapsFields(t *testing.T) {
	s := sessionWith(map[int]types.AnswerRecord{
		1: {QuestionID: intake.QuestionName, NormalizedValue: "Maria Lopez"},
		2: {QuestionID: intake.QuestionAge, NormalizedValue: "34"},
		3: {QuestionID: intake.QuestionGender, NormalizedValue: "Female"},
		4: {QuestionID: intake.QuestionSymptoms, NormalizedValue: "bad headache"},
	})
	rec := NewEmitter(nil, nil, nil).Build(s)

	if rec.Name != "Maria Lopez" || rec.Age != 34 || rec.Gender != "Female" || rec.ChiefComplaint != "bad headache" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.SessionID != "sess-1" || rec.ID == "" {
		t.Fatalf("expected ids to be set: %+v", rec)
	}
	if rec.UrgencyLabel != types.UrgencyLow {
		t.Fatalf("expected LOW, got %s", rec.UrgencyLabel)
	}
	if len(rec.RawAnswers) != 4 || rec.RawAnswers[intake.QuestionAge] != "34" {
		t.Fatalf("unexpected raw answers: %v", rec.RawAnswers)
	}
}

func TestBuildDefaultsForTimeoutsAndJunk(t *testing.T) {
	s := sessionWith(map[int]types.AnswerRecord{
		1: {QuestionID: intake.QuestionName, NormalizedValue: types.Sentinel(1), WasTimeout: true},
		2: {QuestionID: intake.QuestionAge, NormalizedValue: "thirty"},
		3: {QuestionID: intake.QuestionGender, NormalizedValue: "unsure"},
	})
	rec := NewEmitter(nil, nil, nil).Build(s)

	if rec.Name != "Unknown" || rec.Age != 0 || rec.Gender != types.GenderOther || rec.ChiefComplaint != "No symptoms provided" {
		t.Fatalf("unexpected defaults: %+v", rec)
	}
	if rec.RawAnswers[intake.QuestionName] != types.Sentinel(1) {
		t.Fatalf("raw answers should keep the sentinel, got %q", rec.RawAnswers[intake.QuestionName])
	}
}

func TestEmitCallsSinkOnce(t *testing.T) {
	calls := 0
	var got types.PatientRecord
	sink := SinkFunc(func(_ context.Context, rec types.PatientRecord) error {
		calls++
		got = rec
		return nil
	})
	s := sessionWith(map[int]types.AnswerRecord{
		5: {QuestionID: intake.QuestionBleeding, NormalizedValue: "Yes"},
		6: {QuestionID: intake.QuestionBreathing, NormalizedValue: "Yes"},
	})
	rec, err := NewEmitter(nil, nil, sink).Emit(context.Background(), s)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one sink call, got %d", calls)
	}
	if got.ID != rec.ID || rec.UrgencyLabel != types.UrgencyCritical {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestEmitSurfacesSinkError(t *testing.T) {
	boom := errors.New("queue down")
	calls := 0
	sink := SinkFunc(func(context.Context, types.PatientRecord) error {
		calls++
		return boom
	})
	_, err := NewEmitter(nil, nil, sink).Emit(context.Background(), sessionWith(nil))
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("sink must not be retried, got %d calls", calls)
	}
}
