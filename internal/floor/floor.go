// Package floor decides who holds the conversational floor and whether a
// requested transition is still valid.
//
// Every asynchronous callback in a turn carries the token it was scheduled
// under. The token moves forward on each prompt, on Finalizing entry, and on
// cancellation, so a callback from a superseded turn is rejected here. Phase
// and busy flag must agree with the request as well.
//
// Manager is not safe for concurrent use; the caller holds its own lock.
package floor

import "triage/assistant/internal/types"

const (
	ReasonStale      = "stale_token"
	ReasonWrongPhase = "wrong_phase"
	ReasonBusy       = "busy"
	ReasonNotBusy    = "not_busy"
)

// Decision reports whether a transition was accepted. Token is the token the
// caller must carry from here on.
type Decision struct {
	Accept bool
	Token  uint64
	Reason string
}

type Manager struct {
	phase types.Phase
	busy  bool
	token uint64
}

func New() *Manager { return &Manager{} }

func (m *Manager) Phase() types.Phase { return m.phase }
func (m *Manager) Busy() bool         { return m.busy }
func (m *Manager) Token() uint64      { return m.token }

// Current reports whether tok belongs to the live turn.
func (m *Manager) Current(tok uint64) bool { return tok == m.token }

// BeginPrompt hands the floor to the assistant for a new prompt.
func (m *Manager) BeginPrompt() Decision {
	if m.phase == types.PhaseComplete {
		return Decision{Token: m.token, Reason: ReasonWrongPhase}
	}
	m.token++
	m.phase = types.PhasePrompting
	m.busy = false
	return Decision{Accept: true, Token: m.token}
}

// ClaimListen is called from the speech-output completion path. It marks the
// controller busy while the capture stream is being opened.
func (m *Manager) ClaimListen(tok uint64) Decision {
	switch {
	case tok != m.token:
		return Decision{Token: m.token, Reason: ReasonStale}
	case m.phase != types.PhasePrompting:
		return Decision{Token: m.token, Reason: ReasonWrongPhase}
	case m.busy:
		return Decision{Token: m.token, Reason: ReasonBusy}
	}
	m.busy = true
	return Decision{Accept: true, Token: m.token}
}

// OpenListen completes a claimed listen once the capture stream is confirmed open.
func (m *Manager) OpenListen(tok uint64) Decision {
	switch {
	case tok != m.token:
		return Decision{Token: m.token, Reason: ReasonStale}
	case m.phase != types.PhasePrompting:
		return Decision{Token: m.token, Reason: ReasonWrongPhase}
	case !m.busy:
		return Decision{Token: m.token, Reason: ReasonNotBusy}
	}
	m.phase = types.PhaseListening
	m.busy = false
	return Decision{Accept: true, Token: m.token}
}

// BeginFinalize moves the floor to Finalizing. It is accepted from Listening,
// or from a claimed Prompting when capture could not be opened. The token
// advances so that every other callback of the turn becomes stale.
func (m *Manager) BeginFinalize(tok uint64) Decision {
	if tok != m.token {
		return Decision{Token: m.token, Reason: ReasonStale}
	}
	switch {
	case m.phase == types.PhaseListening && !m.busy:
	case m.phase == types.PhasePrompting && m.busy:
	case m.phase == types.PhaseFinalizing:
		return Decision{Token: m.token, Reason: ReasonBusy}
	default:
		return Decision{Token: m.token, Reason: ReasonWrongPhase}
	}
	m.token++
	m.phase = types.PhaseFinalizing
	m.busy = true
	return Decision{Accept: true, Token: m.token}
}

// Cancel invalidates the live turn without changing phase.
func (m *Manager) Cancel() uint64 {
	m.token++
	m.busy = false
	return m.token
}

func (m *Manager) Complete() {
	m.token++
	m.phase = types.PhaseComplete
	m.busy = false
}

func (m *Manager) Reset() {
	m.token++
	m.phase = types.PhaseIdle
	m.busy = false
}
