package speech

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ScriptedSpeaker records every prompt and finishes after Delay. It backs
// tests and the simulator.
type ScriptedSpeaker struct {
	Delay time.Duration
	Err   error

	mu     sync.Mutex
	spoken []string
}

func (s *ScriptedSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.Err != nil {
		return fmt.Errorf("%w: %v", ErrSpeechOutputFailed, s.Err)
	}
	return nil
}

func (s *ScriptedSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// Reply scripts a single capture turn.
type Reply struct {
	Unavailable bool
	Events      []TranscriptEvent
	// Hold keeps the stream open after Events until Stop is called.
	Hold bool
}

// Say is a reply that finalizes immediately with text.
func Say(text string) Reply {
	return Reply{Events: []TranscriptEvent{{Kind: Partial, Text: text}, {Kind: Final, Text: text}}}
}

// Mumble delivers partial text and leaves the stream open so the silence
// timer decides.
func Mumble(text string) Reply {
	return Reply{Events: []TranscriptEvent{{Kind: Partial, Text: text}}, Hold: true}
}

// Silence leaves the stream open with nothing said.
func Silence() Reply { return Reply{Hold: true} }

func Unavailable() Reply { return Reply{Unavailable: true} }

// ScriptedCapturer hands out one Reply per StartCapture call, in order.
// Once the script is exhausted every turn is silent.
type ScriptedCapturer struct {
	mu      sync.Mutex
	replies []Reply
	opened  int
	streams []*scriptedStream
}

func NewScriptedCapturer(replies ...Reply) *ScriptedCapturer {
	return &ScriptedCapturer{replies: replies}
}

func (c *ScriptedCapturer) StartCapture(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r := Silence()
	if c.opened < len(c.replies) {
		r = c.replies[c.opened]
	}
	c.opened++
	if r.Unavailable {
		return nil, fmt.Errorf("%w: scripted", ErrCaptureUnavailable)
	}
	st := &scriptedStream{ch: make(chan TranscriptEvent, len(r.Events))}
	for _, ev := range r.Events {
		st.ch <- ev
	}
	if !r.Hold {
		st.close()
	}
	c.streams = append(c.streams, st)
	return st, nil
}

// Opened is the number of StartCapture calls so far.
func (c *ScriptedCapturer) Opened() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Live counts streams that have not ended.
func (c *ScriptedCapturer) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, st := range c.streams {
		if !st.isClosed() {
			n++
		}
	}
	return n
}

type scriptedStream struct {
	ch     chan TranscriptEvent
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (s *scriptedStream) Events() <-chan TranscriptEvent { return s.ch }

func (s *scriptedStream) Stop() error {
	s.close()
	return nil
}

func (s *scriptedStream) close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.ch)
	})
}

func (s *scriptedStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
