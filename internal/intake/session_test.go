package intake

import (
	"errors"
	"testing"
	"time"

	"triage/assistant/internal/types"
)

func TestRecordAnswerFirstWriteWins(t *testing.T) {
	s := New("s1", DefaultQuestions())

	first := types.AnswerRecord{QuestionID: QuestionName, NormalizedValue: "Maria Lopez", CapturedAt: time.Now()}
	if err := s.RecordAnswer(first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	second := types.AnswerRecord{QuestionID: QuestionName, NormalizedValue: "Someone Else"}
	err := s.RecordAnswer(second)
	if !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
	if len(s.Answers) != 1 {
		t.Fatalf("expected exactly one answer, got %d", len(s.Answers))
	}
	if got := s.Answers[QuestionName].NormalizedValue; got != "Maria Lopez" {
		t.Fatalf("first write should be kept, got %q", got)
	}
}

func TestRecordAnswerUnknownQuestion(t *testing.T) {
	s := New("s1", DefaultQuestions())
	err := s.RecordAnswer(types.AnswerRecord{QuestionID: 42})
	if !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestNextUnansweredProgression(t *testing.T) {
	qs := DefaultQuestions()[:3]
	s := New("s1", qs)

	q, ok := s.NextUnanswered()
	if !ok || q.ID != QuestionName || s.CurrentIndex != 0 {
		t.Fatalf("expected first question, got %+v ok=%v idx=%d", q, ok, s.CurrentIndex)
	}
	_ = s.RecordAnswer(types.AnswerRecord{QuestionID: QuestionName})
	q, ok = s.NextUnanswered()
	if !ok || q.ID != QuestionAge || s.Step() != 2 {
		t.Fatalf("expected age question at step 2, got %+v step=%d", q, s.Step())
	}
	_ = s.RecordAnswer(types.AnswerRecord{QuestionID: QuestionAge})
	_ = s.RecordAnswer(types.AnswerRecord{QuestionID: QuestionGender})
	if _, ok := s.NextUnanswered(); ok {
		t.Fatalf("expected no more questions")
	}
	if !s.IsComplete() {
		t.Fatalf("expected complete")
	}
	if s.Step() != 3 {
		t.Fatalf("step should clamp to total, got %d", s.Step())
	}
	if _, ok := s.Current(); ok {
		t.Fatalf("no current question after completion")
	}
}

func TestNewCopiesQuestions(t *testing.T) {
	qs := DefaultQuestions()
	s := New("s1", qs)
	qs[0].Prompt = "changed"
	if s.Questions[0].Prompt == "changed" {
		t.Fatalf("session questions must not alias the caller's slice")
	}
}

func TestResponsesByKey(t *testing.T) {
	s := New("s1", DefaultQuestions())
	_ = s.RecordAnswer(types.AnswerRecord{QuestionID: QuestionGender, NormalizedValue: "Female"})
	got := s.Responses()
	if len(got) != 1 || got["gender"] != "Female" {
		t.Fatalf("unexpected responses: %v", got)
	}
}
