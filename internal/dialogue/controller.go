// Package dialogue runs the voice intake turn by turn: speak the prompt,
// listen, finalize on silence, hard timeout or stream end, record exactly one
// answer, advance. One Controller owns one assessment at a time.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage/assistant/internal/floor"
	"triage/assistant/internal/intake"
	"triage/assistant/internal/normalize"
	"triage/assistant/internal/record"
	"triage/assistant/internal/speech"
	"triage/assistant/internal/types"
)

var (
	ErrNotIdle      = errors.New("controller is not idle")
	ErrCannotRepeat = errors.New("no question to repeat")
	ErrReset        = errors.New("assessment was reset")
	ErrNotStarted   = errors.New("no assessment started")
)

type cause string

const (
	causeFinal       cause = "final"
	causeStreamEnded cause = "stream_ended"
	causeSilence     cause = "silence"
	causeHardTimeout cause = "hard_timeout"
	causeUnavailable cause = "capture_unavailable"
)

// run is one started assessment.
type run struct {
	sess   *intake.Session
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	finished bool
	rec      types.PatientRecord
	err      error
}

type Controller struct {
	speaker  speech.Speaker
	capturer speech.Capturer
	emitter  *record.Emitter
	opts     Options
	obs      Observer
	log      zerolog.Logger
	after    AfterFunc

	mu    sync.Mutex
	floor *floor.Manager
	run   *run
	att   *attempt
}

func New(speaker speech.Speaker, capturer speech.Capturer, emitter *record.Emitter, opts Options) *Controller {
	opts = opts.withDefaults()
	if emitter == nil {
		emitter = record.NewEmitter(nil, nil, nil)
	}
	return &Controller{
		speaker:  speaker,
		capturer: capturer,
		emitter:  emitter,
		opts:     opts,
		obs:      opts.Observer,
		log:      opts.Logger.With().Str("component", "dialogue").Logger(),
		after:    opts.AfterFunc,
		floor:    floor.New(),
	}
}

// Start creates a fresh session and prompts its first question. The
// assessment outlives ctx's cancellation; use Reset to abort it.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	if ph := c.floor.Phase(); ph != types.PhaseIdle {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: phase %s", ErrNotIdle, ph)
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		sess:   intake.New(uuid.NewString(), c.opts.Questions),
		ctx:    rctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.run = r
	c.log.Info().Str("session_id", r.sess.ID).Int("questions", len(r.sess.Questions)).Msg("assessment started")
	complete := c.advanceLocked(r)
	c.mu.Unlock()
	if complete {
		go c.complete(r)
	}
	return r.sess.ID, nil
}

// Repeat re-prompts the current question. The live turn is cancelled and its
// partial transcript discarded; no answer is written.
func (c *Controller) Repeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ph := c.floor.Phase()
	if ph != types.PhasePrompting && ph != types.PhaseListening {
		return fmt.Errorf("%w: phase %s", ErrCannotRepeat, ph)
	}
	c.floor.Cancel()
	c.teardownLocked()
	metricRepeats.Inc()
	c.log.Info().Str("session_id", c.run.sess.ID).Int("step", c.run.sess.Step()).Msg("repeat question")
	c.promptLocked(c.run)
	return nil
}

// Reset discards the session and any live turn and returns to Idle. Pending
// Wait calls return ErrReset.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := c.floor.Phase()
	c.floor.Reset()
	c.teardownLocked()
	r := c.run
	c.run = nil
	if r == nil {
		return
	}
	r.cancel()
	if !r.finished {
		metricResets.Inc()
	}
	c.finishLocked(r, types.PatientRecord{}, ErrReset)
	c.log.Info().Str("session_id", r.sess.ID).Str("from", from.String()).Msg("assessment reset")
	c.changedLocked(r, from)
}

// Wait blocks until the running assessment completes. It returns the emitted
// record, or the sink's error, or ErrReset.
func (c *Controller) Wait(ctx context.Context) (types.PatientRecord, error) {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return types.PatientRecord{}, ErrNotStarted
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		return types.PatientRecord{}, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.rec, r.err
}

type Status struct {
	SessionID string            `json:"session_id,omitempty"`
	Phase     types.Phase       `json:"phase"`
	Step      int               `json:"step"`
	Total     int               `json:"total"`
	Question  string            `json:"question,omitempty"`
	Responses map[string]string `json:"responses,omitempty"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{Phase: c.floor.Phase()}
	if c.run == nil {
		return st
	}
	s := c.run.sess
	st.SessionID = s.ID
	st.Step = s.Step()
	st.Total = len(s.Questions)
	st.Responses = s.Responses()
	if q, ok := s.Current(); ok && st.Phase != types.PhaseComplete {
		st.Question = q.Prompt
	}
	return st
}

// Answers returns a copy of the answers recorded so far.
func (c *Controller) Answers() map[int]types.AnswerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil
	}
	out := make(map[int]types.AnswerRecord, len(c.run.sess.Answers))
	for id, rec := range c.run.sess.Answers {
		out[id] = rec
	}
	return out
}

// advanceLocked prompts the next unanswered question, or moves to Complete
// and reports true when none is left.
func (c *Controller) advanceLocked(r *run) bool {
	if _, ok := r.sess.NextUnanswered(); ok {
		c.promptLocked(r)
		return false
	}
	from := c.floor.Phase()
	c.floor.Complete()
	c.changedLocked(r, from)
	return true
}

func (c *Controller) promptLocked(r *run) {
	c.teardownLocked()
	from := c.floor.Phase()
	d := c.floor.BeginPrompt()
	if !d.Accept {
		c.rejected("prompt", d)
		return
	}
	q, _ := r.sess.Current()
	ctx, cancel := context.WithCancel(r.ctx)
	c.att = &attempt{token: d.Token, ctx: ctx, cancel: cancel, started: time.Now()}
	c.changedLocked(r, from)
	go c.speak(ctx, d.Token, q.Prompt)
}

func (c *Controller) speak(ctx context.Context, tok uint64, text string) {
	err := c.speaker.Speak(ctx, text)
	if err != nil && ctx.Err() != nil {
		// superseded while speaking
		return
	}
	c.listen(ctx, tok, err)
}

// listen runs on the speech-ended path. The floor is claimed before the
// capture stream is requested and opened only after the stream confirms, so
// timers never run ahead of the stream.
func (c *Controller) listen(ctx context.Context, tok uint64, speakErr error) {
	c.mu.Lock()
	d := c.floor.ClaimListen(tok)
	if !d.Accept {
		c.mu.Unlock()
		c.rejected("claim_listen", d)
		return
	}
	r := c.run
	if speakErr != nil {
		metricSpeechFailures.Inc()
		c.log.Warn().Err(speakErr).Str("session_id", r.sess.ID).Msg("prompt playback failed, listening anyway")
		c.obs.Notice(r.sess.ID, NoticeSpeechOutputFailed, "prompt could not be played")
	}
	c.mu.Unlock()

	stream, err := c.capturer.StartCapture(ctx)

	c.mu.Lock()
	if err != nil {
		if !c.floor.Current(tok) {
			c.mu.Unlock()
			c.rejected("capture_failed", floor.Decision{Reason: floor.ReasonStale})
			return
		}
		metricCaptureUnavailable.Inc()
		c.log.Warn().Err(err).Str("session_id", r.sess.ID).Msg("capture unavailable, recording timeout")
		c.obs.Notice(r.sess.ID, NoticeCaptureUnavailable, "could not access microphone")
		done := c.finalizeLocked(tok, causeUnavailable)
		c.mu.Unlock()
		c.completeIf(done)
		return
	}
	from := c.floor.Phase()
	d = c.floor.OpenListen(tok)
	if !d.Accept {
		c.mu.Unlock()
		_ = stream.Stop()
		c.rejected("open_listen", d)
		return
	}
	c.att.stream = stream
	c.att.hard = c.after(c.opts.HardTimeout, func() { c.finalize(tok, causeHardTimeout) })
	c.changedLocked(r, from)
	c.mu.Unlock()

	go c.pump(tok, stream)
}

func (c *Controller) pump(tok uint64, stream speech.Stream) {
	for ev := range stream.Events() {
		if !c.onTranscript(tok, ev) {
			return
		}
	}
	c.finalize(tok, causeStreamEnded)
}

// onTranscript reports whether the pump should keep reading.
func (c *Controller) onTranscript(tok uint64, ev speech.TranscriptEvent) bool {
	c.mu.Lock()
	if !c.floor.Current(tok) || c.floor.Phase() != types.PhaseListening {
		reason := floor.ReasonWrongPhase
		if !c.floor.Current(tok) {
			reason = floor.ReasonStale
		}
		c.mu.Unlock()
		c.rejected("transcript", floor.Decision{Reason: reason})
		return false
	}
	att := c.att
	text := strings.TrimSpace(ev.Text)
	if ev.Kind == speech.Final {
		// a too-short final keeps whatever the partials built up
		if text != "" && utf8.RuneCountInString(text) >= c.opts.MinAnswerRunes {
			att.transcript = text
		}
		done := c.finalizeLocked(tok, causeFinal)
		c.mu.Unlock()
		c.completeIf(done)
		return false
	}
	if text == att.transcript || utf8.RuneCountInString(text) < c.opts.MinAnswerRunes {
		c.mu.Unlock()
		return true
	}
	att.transcript = text
	c.armSilenceLocked(att)
	c.log.Debug().Str("session_id", c.run.sess.ID).Str("transcript", text).Msg("transcript update")
	c.mu.Unlock()
	return true
}

func (c *Controller) armSilenceLocked(att *attempt) {
	if att.silence != nil {
		att.silence.Stop()
	}
	att.silenceGen++
	tok, gen := att.token, att.silenceGen
	att.silence = c.after(c.opts.SilenceTimeout, func() { c.onSilence(tok, gen) })
}

func (c *Controller) onSilence(tok, gen uint64) {
	c.mu.Lock()
	if att := c.att; att != nil && att.token == tok && att.silenceGen != gen {
		// re-armed by a newer transcript after this timer had already fired
		c.mu.Unlock()
		c.rejected(string(causeSilence), floor.Decision{Reason: floor.ReasonStale})
		return
	}
	done := c.finalizeLocked(tok, causeSilence)
	c.mu.Unlock()
	c.completeIf(done)
}

func (c *Controller) finalize(tok uint64, why cause) {
	c.mu.Lock()
	done := c.finalizeLocked(tok, why)
	c.mu.Unlock()
	c.completeIf(done)
}

// finalizeLocked ends the turn carrying tok and writes its answer. It returns
// the run when the session has just completed.
func (c *Controller) finalizeLocked(tok uint64, why cause) *run {
	from := c.floor.Phase()
	d := c.floor.BeginFinalize(tok)
	if !d.Accept {
		c.rejected(string(why), d)
		return nil
	}
	r := c.run
	att := c.att
	c.att = nil
	if err := att.close(); err != nil {
		c.log.Debug().Err(err).Msg("stop capture stream")
	}
	metricFinalized.WithLabelValues(string(why)).Inc()
	metricTurnDurationMS.Observe(float64(time.Since(att.started).Milliseconds()))
	c.changedLocked(r, from)

	q, _ := r.sess.Current()
	rec := c.answerFor(q, att.transcript)
	switch err := r.sess.RecordAnswer(rec); {
	case errors.Is(err, intake.ErrAlreadyAnswered):
		metricDuplicateAnswers.Inc()
		c.log.Warn().Err(err).Str("session_id", r.sess.ID).Msg("duplicate answer dropped")
	case err != nil:
		c.log.Error().Err(err).Str("session_id", r.sess.ID).Msg("record answer")
	default:
		outcome := "answered"
		if rec.WasTimeout {
			outcome = "timeout"
		}
		metricAnswers.WithLabelValues(outcome).Inc()
		c.log.Info().
			Str("session_id", r.sess.ID).
			Int("question_id", q.ID).
			Str("cause", string(why)).
			Bool("timeout", rec.WasTimeout).
			Msg("answer recorded")
		c.obs.AnswerRecorded(r.sess.ID, q, rec)
	}

	if c.advanceLocked(r) {
		return r
	}
	return nil
}

func (c *Controller) answerFor(q types.Question, transcript string) types.AnswerRecord {
	rec := types.AnswerRecord{
		QuestionID:    q.ID,
		RawTranscript: transcript,
		CapturedAt:    time.Now().UTC(),
	}
	if utf8.RuneCountInString(strings.TrimSpace(transcript)) < c.opts.MinAnswerRunes {
		rec.WasTimeout = true
		rec.NormalizedValue = types.Sentinel(q.ID)
		return rec
	}
	rec.NormalizedValue = normalize.Normalize(transcript, q.Kind)
	return rec
}

func (c *Controller) completeIf(r *run) {
	if r != nil {
		c.complete(r)
	}
}

// complete hands the finished session to the emitter outside the lock.
func (c *Controller) complete(r *run) {
	rec, err := c.emitter.Emit(r.ctx, r.sess)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		metricSinkFailures.Inc()
		c.log.Error().Err(err).Str("session_id", r.sess.ID).Msg("patient record not delivered")
	} else {
		c.log.Info().
			Str("session_id", r.sess.ID).
			Str("record_id", rec.ID).
			Str("urgency", rec.UrgencyLabel).
			Msg("patient record delivered")
	}
	if r.finished {
		// reset while the sink was running
		return
	}
	c.finishLocked(r, rec, err)
	c.obs.Completed(r.sess.ID, rec, err)
}

func (c *Controller) finishLocked(r *run, rec types.PatientRecord, err error) {
	if r.finished {
		return
	}
	r.finished = true
	r.rec, r.err = rec, err
	close(r.done)
}

func (c *Controller) teardownLocked() {
	if c.att == nil {
		return
	}
	if err := c.att.close(); err != nil {
		c.log.Debug().Err(err).Msg("stop capture stream")
	}
	c.att = nil
}

func (c *Controller) changedLocked(r *run, from types.Phase) {
	to := c.floor.Phase()
	r.sess.Phase = to
	metricStateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	c.log.Debug().
		Str("session_id", r.sess.ID).
		Str("from", from.String()).
		Str("to", to.String()).
		Int("step", r.sess.Step()).
		Msg("phase")
	c.obs.PhaseChanged(r.sess.ID, from, to, r.sess.Step())
}

func (c *Controller) rejected(op string, d floor.Decision) {
	metricRejected.WithLabelValues(op, d.Reason).Inc()
	c.log.Debug().Str("op", op).Str("reason", d.Reason).Msg("callback ignored")
}
