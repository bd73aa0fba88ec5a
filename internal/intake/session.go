// Package intake holds the question list and the answers collected for one
// assessment run. It has no locking; the dialogue controller owns it.
package intake

import (
	"errors"
	"fmt"
	"time"

	"triage/assistant/internal/types"
)

var (
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrUnknownQuestion = errors.New("unknown question")
)

type Session struct {
	ID           string
	Questions    []types.Question
	Answers      map[int]types.AnswerRecord
	CurrentIndex int
	Phase        types.Phase
	CreatedAt    time.Time
}

func New(id string, questions []types.Question) *Session {
	qs := make([]types.Question, len(questions))
	copy(qs, questions)
	return &Session{
		ID:        id,
		Questions: qs,
		Answers:   make(map[int]types.AnswerRecord, len(qs)),
		CreatedAt: time.Now().UTC(),
	}
}

// NextUnanswered returns the first question in list order without an answer
// and moves CurrentIndex to it.
func (s *Session) NextUnanswered() (types.Question, bool) {
	for i, q := range s.Questions {
		if _, ok := s.Answers[q.ID]; !ok {
			s.CurrentIndex = i
			return q, true
		}
	}
	s.CurrentIndex = len(s.Questions)
	return types.Question{}, false
}

// Current is the question at CurrentIndex, if any.
func (s *Session) Current() (types.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return types.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// RecordAnswer stores rec once. A second write for the same question is
// rejected and the first record is kept.
func (s *Session) RecordAnswer(rec types.AnswerRecord) error {
	if !s.hasQuestion(rec.QuestionID) {
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, rec.QuestionID)
	}
	if _, ok := s.Answers[rec.QuestionID]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyAnswered, rec.QuestionID)
	}
	s.Answers[rec.QuestionID] = rec
	return nil
}

func (s *Session) IsComplete() bool {
	for _, q := range s.Questions {
		if _, ok := s.Answers[q.ID]; !ok {
			return false
		}
	}
	return true
}

// Step is the 1-based position of the current question.
func (s *Session) Step() int {
	if s.CurrentIndex >= len(s.Questions) {
		return len(s.Questions)
	}
	return s.CurrentIndex + 1
}

// Responses maps question keys to normalized values.
func (s *Session) Responses() map[string]string {
	out := make(map[string]string, len(s.Answers))
	for _, q := range s.Questions {
		if rec, ok := s.Answers[q.ID]; ok {
			out[q.Key] = rec.NormalizedValue
		}
	}
	return out
}

func (s *Session) hasQuestion(id int) bool {
	for _, q := range s.Questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
