package dialogue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"triage/assistant/internal/speech"
	"triage/assistant/internal/types"
)

// fakeClock records scheduled timers; tests fire them by hand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d  time.Duration
	fn func()

	mu      sync.Mutex
	stopped bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{d: d, fn: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fire runs the callback even when the timer was stopped, as a timer that
// fired just before Stop would.
func (t *fakeTimer) fire() { t.fn() }

// waitTimer returns the n-th timer scheduled with duration d.
func (c *fakeClock) waitTimer(t *testing.T, d time.Duration, n int) *fakeTimer {
	t.Helper()
	var found *fakeTimer
	waitFor(t, "timer", func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		k := 0
		for _, tm := range c.timers {
			if tm.d != d {
				continue
			}
			if k == n {
				found = tm
				return true
			}
			k++
		}
		return false
	})
	return found
}

type transition struct{ from, to types.Phase }

type recorder struct {
	mu          sync.Mutex
	transitions []transition
	answers     []types.AnswerRecord
	notices     []string
	completed   []error
}

func (r *recorder) PhaseChanged(_ string, from, to types.Phase, _ int) {
	r.mu.Lock()
	r.transitions = append(r.transitions, transition{from, to})
	r.mu.Unlock()
}

func (r *recorder) AnswerRecorded(_ string, _ types.Question, rec types.AnswerRecord) {
	r.mu.Lock()
	r.answers = append(r.answers, rec)
	r.mu.Unlock()
}

func (r *recorder) Notice(_, code, _ string) {
	r.mu.Lock()
	r.notices = append(r.notices, code)
	r.mu.Unlock()
}

func (r *recorder) Completed(_ string, _ types.PatientRecord, err error) {
	r.mu.Lock()
	r.completed = append(r.completed, err)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]transition, []types.AnswerRecord, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.transitions...),
		append([]types.AnswerRecord(nil), r.answers...),
		append([]string(nil), r.notices...)
}

func testOptions(qs []types.Question) (Options, *fakeClock, *recorder) {
	clock := &fakeClock{}
	rec := &recorder{}
	log := zerolog.Nop()
	return Options{
		Questions: qs,
		Observer:  rec,
		Logger:    &log,
		AfterFunc: clock.AfterFunc,
	}, clock, rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func listeningAt(c *Controller, step int) func() bool {
	return func() bool {
		st := c.Status()
		return st.Phase == types.PhaseListening && st.Step == step
	}
}

func waitRecord(t *testing.T, c *Controller) (types.PatientRecord, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Wait(ctx)
}

// gatedCapturer holds each StartCapture call until its gate is released.
type gatedCapturer struct {
	inner *speech.ScriptedCapturer
	gates []chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedCapturer(n int, replies ...speech.Reply) *gatedCapturer {
	g := &gatedCapturer{inner: speech.NewScriptedCapturer(replies...)}
	for i := 0; i < n; i++ {
		g.gates = append(g.gates, make(chan struct{}))
	}
	return g
}

func (g *gatedCapturer) StartCapture(context.Context) (speech.Stream, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.mu.Unlock()
	if i < len(g.gates) {
		<-g.gates[i]
	}
	return g.inner.StartCapture(context.Background())
}

func (g *gatedCapturer) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
