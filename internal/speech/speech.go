// Package speech defines the two services the dialogue controller drives:
// speech output (prompt playback) and speech capture (recognition stream).
package speech

import (
	"context"
	"errors"
)

var (
	ErrCaptureUnavailable = errors.New("speech capture unavailable")
	ErrSpeechOutputFailed = errors.New("speech output failed")
)

// Speaker plays text to the patient. Speak returns when playback has ended
// or failed.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Capturer opens a recognition stream. StartCapture returns only once the
// stream is open; any error means capture is unavailable for this turn.
type Capturer interface {
	StartCapture(ctx context.Context) (Stream, error)
}

// Stream is one live recognition session. Events is closed when the stream
// ends, either naturally or after Stop.
type Stream interface {
	Events() <-chan TranscriptEvent
	Stop() error
}

type EventKind int

const (
	Partial EventKind = iota
	Final
)

func (k EventKind) String() string {
	if k == Final {
		return "final"
	}
	return "partial"
}

// TranscriptEvent carries the full transcript of the utterance so far, not a
// delta.
type TranscriptEvent struct {
	Kind EventKind
	Text string
}
