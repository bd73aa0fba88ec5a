package dialogue

import (
	"context"
	"time"

	"triage/assistant/internal/speech"
)

// attempt is the single in-flight turn: prompt playback, capture stream and
// its two timers. It lives from Prompting until Finalizing entry.
type attempt struct {
	token   uint64
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	stream     speech.Stream
	hard       Timer
	silence    Timer
	silenceGen uint64
	transcript string
}

// close stops both timers, cancels in-flight speech and stops the stream.
// Safe to call more than once.
func (a *attempt) close() error {
	a.cancel()
	if a.hard != nil {
		a.hard.Stop()
		a.hard = nil
	}
	if a.silence != nil {
		a.silence.Stop()
		a.silence = nil
	}
	if a.stream == nil {
		return nil
	}
	st := a.stream
	a.stream = nil
	return st.Stop()
}
