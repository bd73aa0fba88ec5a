package voicews

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage/assistant/internal/speech"
	"triage/assistant/internal/tts"
)

const streamBuffer = 64

// Synthesizer renders prompt audio. Optional; without it the browser speaks
// the text with its own voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (tts.Clip, error)
}

type BridgeConfig struct {
	SpeakTimeout       time.Duration
	CaptureOpenTimeout time.Duration
	Synth              Synthesizer
}

type sender interface {
	Send(id string, msg Message) error
}

// Bridge implements speech.Speaker and speech.Capturer on top of the
// browser's speech APIs. Each command carries a fresh command id, and the
// client echoes it back in its replies.
type Bridge struct {
	id  string
	out sender
	cfg BridgeConfig
	log zerolog.Logger

	mu       sync.Mutex
	speaking map[string]chan error
	opening  map[string]chan error
	streams  map[string]*stream
}

var (
	_ speech.Speaker  = (*Bridge)(nil)
	_ speech.Capturer = (*Bridge)(nil)
)

func newBridge(id string, out sender, cfg BridgeConfig, log zerolog.Logger) *Bridge {
	if cfg.SpeakTimeout <= 0 {
		cfg.SpeakTimeout = 30 * time.Second
	}
	if cfg.CaptureOpenTimeout <= 0 {
		cfg.CaptureOpenTimeout = 5 * time.Second
	}
	return &Bridge{
		id:       id,
		out:      out,
		cfg:      cfg,
		log:      log,
		speaking: make(map[string]chan error),
		opening:  make(map[string]chan error),
		streams:  make(map[string]*stream),
	}
}

// Speak sends the prompt and waits for the client to report playback ended.
// A newer speak command supersedes an unfinished one on the client.
func (b *Bridge) Speak(ctx context.Context, text string) error {
	cmdID := uuid.New().String()
	payload := map[string]any{"text": text}
	if b.cfg.Synth != nil {
		clip, err := b.cfg.Synth.Synthesize(ctx, text)
		if err == nil {
			payload["audio_b64"] = base64.StdEncoding.EncodeToString(clip.Audio)
			payload["audio_mime"] = clip.MIME
		} else if ctx.Err() == nil {
			metricTTSFallbacks.Inc()
			b.log.Warn().Err(err).Msg("prompt audio unavailable, client voice fallback")
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	b.mu.Lock()
	b.speaking[cmdID] = done
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.speaking, cmdID)
		b.mu.Unlock()
	}()

	start := time.Now()
	if err := b.out.Send(b.id, Message{Type: TypeSpeak, CommandID: cmdID, Payload: payload}); err != nil {
		return fmt.Errorf("%w: %v", speech.ErrSpeechOutputFailed, err)
	}
	t := time.NewTimer(b.cfg.SpeakTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", speech.ErrSpeechOutputFailed, err)
		}
		metricSpeakMS.Observe(float64(time.Since(start).Milliseconds()))
		return nil
	case <-t.C:
		return fmt.Errorf("%w: no speech_ended after %s", speech.ErrSpeechOutputFailed, b.cfg.SpeakTimeout)
	}
}

// StartCapture asks the client to start recognition and returns once it
// reports the microphone is live.
func (b *Bridge) StartCapture(ctx context.Context) (speech.Stream, error) {
	cmdID := uuid.New().String()
	st := &stream{b: b, id: cmdID, events: make(chan speech.TranscriptEvent, streamBuffer)}
	opened := make(chan error, 1)
	b.mu.Lock()
	b.streams[cmdID] = st
	b.opening[cmdID] = opened
	b.mu.Unlock()

	fail := func(err error) (speech.Stream, error) {
		b.mu.Lock()
		delete(b.opening, cmdID)
		b.mu.Unlock()
		st.end()
		b.forget(cmdID)
		return nil, err
	}

	start := time.Now()
	if err := b.out.Send(b.id, Message{Type: TypeStartCapture, CommandID: cmdID}); err != nil {
		return fail(fmt.Errorf("%w: %v", speech.ErrCaptureUnavailable, err))
	}
	t := time.NewTimer(b.cfg.CaptureOpenTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		_ = b.out.Send(b.id, Message{Type: TypeStopCapture, CommandID: cmdID})
		return fail(ctx.Err())
	case err := <-opened:
		if err != nil {
			return fail(fmt.Errorf("%w: %v", speech.ErrCaptureUnavailable, err))
		}
		metricCaptureOpenMS.Observe(float64(time.Since(start).Milliseconds()))
		return st, nil
	case <-t.C:
		_ = b.out.Send(b.id, Message{Type: TypeStopCapture, CommandID: cmdID})
		return fail(fmt.Errorf("%w: capture did not start within %s", speech.ErrCaptureUnavailable, b.cfg.CaptureOpenTimeout))
	}
}

// Dispatch applies a client reply. Replies for unknown or finished commands
// are ignored.
func (b *Bridge) Dispatch(msg Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch msg.Type {
	case TypeSpeechEnded:
		ch, ok := b.speaking[msg.CommandID]
		if !ok {
			return false
		}
		var err error
		if e := msg.str("error"); e != "" {
			err = errors.New(e)
		}
		notify(ch, err)
	case TypeCaptureStarted, TypeCaptureUnavailable:
		ch, ok := b.opening[msg.CommandID]
		if !ok {
			return false
		}
		delete(b.opening, msg.CommandID)
		var err error
		if msg.Type == TypeCaptureUnavailable {
			reason := msg.str("reason")
			if reason == "" {
				reason = "unavailable"
			}
			err = errors.New(reason)
		}
		notify(ch, err)
	case TypeTranscript:
		st, ok := b.streams[msg.CommandID]
		if !ok {
			return false
		}
		ev := speech.TranscriptEvent{Kind: speech.Partial, Text: msg.str("text")}
		if msg.flag("final") {
			ev.Kind = speech.Final
		}
		st.push(ev)
	case TypeCaptureEnded:
		st, ok := b.streams[msg.CommandID]
		if !ok {
			return false
		}
		delete(b.streams, msg.CommandID)
		st.end()
	default:
		return false
	}
	return true
}

// disconnected fails every pending command and ends open streams.
func (b *Bridge) disconnected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.speaking {
		notify(ch, ErrNotConnected)
		delete(b.speaking, id)
	}
	for id, ch := range b.opening {
		notify(ch, ErrNotConnected)
		delete(b.opening, id)
	}
	for id, st := range b.streams {
		st.end()
		delete(b.streams, id)
	}
}

func (b *Bridge) forget(cmdID string) {
	b.mu.Lock()
	delete(b.streams, cmdID)
	b.mu.Unlock()
}

func notify(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

type stream struct {
	b      *Bridge
	id     string
	events chan speech.TranscriptEvent

	mu     sync.Mutex
	closed bool
}

func (s *stream) Events() <-chan speech.TranscriptEvent { return s.events }

// Stop ends the stream and tells the client to stop recognition.
func (s *stream) Stop() error {
	if !s.end() {
		return nil
	}
	s.b.forget(s.id)
	err := s.b.out.Send(s.b.id, Message{Type: TypeStopCapture, CommandID: s.id})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

func (s *stream) push(ev speech.TranscriptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		metricTranscriptDrops.Inc()
	}
}

func (s *stream) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.events)
	return true
}
