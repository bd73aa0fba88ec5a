package types

import (
	"fmt"
	"time"
)

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// KindType enumerates the answer shapes a question can expect.
type KindType int

const (
	KindFreeText KindType = iota
	KindName
	KindIntegerRange
	KindYesNo
	KindEnum
)

func (k KindType) String() string {
	switch k {
	case KindFreeText:
		return "free_text"
	case KindName:
		return "name"
	case KindIntegerRange:
		return "integer_range"
	case KindYesNo:
		return "yes_no"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Option is one choice of an Enum answer. Aliases are matched after Label.
type Option struct {
	Label   string   `json:"label"`
	Aliases []string `json:"aliases,omitempty"`
}

type AnswerKind struct {
	Type    KindType `json:"type"`
	Min     int      `json:"min,omitempty"`
	Max     int      `json:"max,omitempty"`
	Options []Option `json:"options,omitempty"`
}

func FreeText() AnswerKind { return AnswerKind{Type: KindFreeText} }
func Name() AnswerKind     { return AnswerKind{Type: KindName} }
func YesNo() AnswerKind    { return AnswerKind{Type: KindYesNo} }

func IntegerRange(min, max int) AnswerKind {
	return AnswerKind{Type: KindIntegerRange, Min: min, Max: max}
}

func Enum(options ...Option) AnswerKind { return AnswerKind{Type: KindEnum, Options: options} }

type Question struct {
	ID     int        `json:"id"`
	Key    string     `json:"key"`
	Prompt string     `json:"prompt"`
	Kind   AnswerKind `json:"kind"`
}

type AnswerRecord struct {
	QuestionID      int       `json:"question_id"`
	RawTranscript   string    `json:"raw_transcript"`
	NormalizedValue string    `json:"normalized_value"`
	CapturedAt      time.Time `json:"captured_at"`
	WasTimeout      bool      `json:"was_timeout"`
}

// Sentinel is the normalized value stored when no speech was captured.
func Sentinel(questionID int) string {
	return fmt.Sprintf("no response given for question %d", questionID)
}

// Phase is the dialogue controller state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrompting
	PhaseListening
	PhaseFinalizing
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhasePrompting:
		return "PROMPTING"
	case PhaseListening:
		return "LISTENING"
	case PhaseFinalizing:
		return "FINALIZING"
	case PhaseComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for ph := PhaseIdle; ph <= PhaseComplete; ph++ {
		if ph.String() == string(b) {
			*p = ph
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

const (
	UrgencyCritical = "CRITICAL"
	UrgencyHigh     = "HIGH"
	UrgencyMedium   = "MEDIUM"
	UrgencyLow      = "LOW"
)

// PatientRecord is handed to the queue consumer once an assessment completes.
// The json names are consumed by the queue UI and must stay stable.
type PatientRecord struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	Name           string         `json:"name"`
	Age            int            `json:"age"`
	Gender         string         `json:"gender"`
	ChiefComplaint string         `json:"chiefComplaint"`
	UrgencyLabel   string         `json:"urgencyLabel"`
	UrgencyScore   float64        `json:"urgencyScore"`
	ArrivalTime    time.Time      `json:"arrivalTime"`
	// RawAnswers holds each answer's normalized value keyed by question id,
	// including the sentinel for questions that timed out.
	RawAnswers     map[int]string `json:"rawAnswers"`
}

const (
	StatusCreated  = "created"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusReset    = "reset"
	StatusEnded    = "ended"
)

// Assessment is the API-facing handle for one intake run and the browser
// connection that serves it. SessionID changes on every start.
type Assessment struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
