package dialogue

import (
	"time"

	"github.com/rs/zerolog"

	"triage/assistant/internal/intake"
	"triage/assistant/internal/types"
)

const (
	DefaultSilenceTimeout = 2500 * time.Millisecond
	DefaultHardTimeout    = 7 * time.Second
)

// Notice codes passed to Observer.Notice.
const (
	NoticeCaptureUnavailable = "capture_unavailable"
	NoticeSpeechOutputFailed = "speech_output_failed"
)

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. Tests replace it to fire timers by hand.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Observer receives controller notifications. Methods are called with the
// controller lock held, in order; they must not block or call back into the
// Controller.
type Observer interface {
	PhaseChanged(sessionID string, from, to types.Phase, step int)
	AnswerRecorded(sessionID string, q types.Question, rec types.AnswerRecord)
	Notice(sessionID, code, detail string)
	Completed(sessionID string, rec types.PatientRecord, err error)
}

type NopObserver struct{}

func (NopObserver) PhaseChanged(string, types.Phase, types.Phase, int)        {}
func (NopObserver) AnswerRecorded(string, types.Question, types.AnswerRecord) {}
func (NopObserver) Notice(string, string, string)                             {}
func (NopObserver) Completed(string, types.PatientRecord, error)              {}

type Options struct {
	// SilenceTimeout is the quiet period after the latest transcript update
	// that ends a turn.
	SilenceTimeout time.Duration
	// HardTimeout caps a turn from the moment the capture stream opens.
	HardTimeout time.Duration
	// MinAnswerRunes is the shortest transcript kept as an answer; anything
	// shorter is recorded as a timeout.
	MinAnswerRunes int
	Questions      []types.Question
	Observer       Observer
	Logger         *zerolog.Logger
	AfterFunc      AfterFunc
}

func (o Options) withDefaults() Options {
	if o.SilenceTimeout <= 0 {
		o.SilenceTimeout = DefaultSilenceTimeout
	}
	if o.HardTimeout <= 0 {
		o.HardTimeout = DefaultHardTimeout
	}
	if o.MinAnswerRunes < 1 {
		o.MinAnswerRunes = 1
	}
	if o.Questions == nil {
		o.Questions = intake.DefaultQuestions()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Logger == nil {
		l := zerolog.Nop()
		o.Logger = &l
	}
	if o.AfterFunc == nil {
		o.AfterFunc = realAfterFunc
	}
	return o
}
