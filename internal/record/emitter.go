// Package record turns a finished intake session into the PatientRecord
// handed to the queue consumer.
package record

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"triage/assistant/internal/intake"
	"triage/assistant/internal/types"
	"triage/assistant/internal/urgency"
)

// Sink receives each completed record once.
type Sink interface {
	Deliver(ctx context.Context, rec types.PatientRecord) error
}

// SinkFunc adapts a plain onComplete callback to Sink.
type SinkFunc func(ctx context.Context, rec types.PatientRecord) error

func (f SinkFunc) Deliver(ctx context.Context, rec types.PatientRecord) error { return f(ctx, rec) }

const (
	FieldName           = "name"
	FieldAge            = "age"
	FieldGender         = "gender"
	FieldChiefComplaint = "chiefComplaint"
)

// DefaultFields maps question ids of the default questionnaire to record fields.
func DefaultFields() map[int]string {
	return map[int]string{
		intake.QuestionName:     FieldName,
		intake.QuestionAge:      FieldAge,
		intake.QuestionGender:   FieldGender,
		intake.QuestionSymptoms: FieldChiefComplaint,
	}
}

type Emitter struct {
	fields map[int]string
	scorer urgency.Scorer
	sink   Sink
	now    func() time.Time
}

func NewEmitter(fields map[int]string, scorer urgency.Scorer, sink Sink) *Emitter {
	if fields == nil {
		fields = DefaultFields()
	}
	if scorer == nil {
		scorer = urgency.DefaultTable()
	}
	return &Emitter{fields: fields, scorer: scorer, sink: sink, now: time.Now}
}

func (e *Emitter) Build(sess *intake.Session) types.PatientRecord {
	rec := types.PatientRecord{
		ID:             uuid.New().String(),
		SessionID:      sess.ID,
		Name:           "Unknown",
		Gender:         types.GenderOther,
		ChiefComplaint: "No symptoms provided",
		ArrivalTime:    e.now().UTC(),
		RawAnswers:     make(map[int]string, len(sess.Answers)),
	}
	for id, ans := range sess.Answers {
		rec.RawAnswers[id] = ans.NormalizedValue
		if ans.WasTimeout {
			continue
		}
		switch e.fields[id] {
		case FieldName:
			if ans.NormalizedValue != "" {
				rec.Name = ans.NormalizedValue
			}
		case FieldAge:
			if n, err := strconv.Atoi(ans.NormalizedValue); err == nil {
				rec.Age = n
			}
		case FieldGender:
			switch ans.NormalizedValue {
			case types.GenderMale, types.GenderFemale, types.GenderOther:
				rec.Gender = ans.NormalizedValue
			}
		case FieldChiefComplaint:
			if ans.NormalizedValue != "" {
				rec.ChiefComplaint = ans.NormalizedValue
			}
		}
	}
	a := e.scorer.Assess(sess.Answers)
	rec.UrgencyLabel = a.Label
	rec.UrgencyScore = a.Score
	return rec
}

// Emit builds the record and delivers it to the sink. There is no retry; a
// sink error is returned with the record that failed to deliver.
func (e *Emitter) Emit(ctx context.Context, sess *intake.Session) (types.PatientRecord, error) {
	rec := e.Build(sess)
	if e.sink == nil {
		return rec, nil
	}
	if err := e.sink.Deliver(ctx, rec); err != nil {
		return rec, fmt.Errorf("deliver patient record %s: %w", rec.ID, err)
	}
	return rec, nil
}
