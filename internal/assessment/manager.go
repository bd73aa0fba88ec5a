// Package assessment owns the lifecycle of triage assessments: creation and
// client tokens, one turn controller per assessment, and mirroring controller
// events to the event log and the patient's browser.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"triage/assistant/internal/auth"
	"triage/assistant/internal/config"
	"triage/assistant/internal/dialogue"
	"triage/assistant/internal/record"
	"triage/assistant/internal/speech"
	"triage/assistant/internal/store"
	"triage/assistant/internal/types"
	"triage/assistant/internal/voicews"
)

var (
	ErrNotFound   = errors.New("assessment not found")
	ErrNoClient   = errors.New("no client connected for assessment")
	ErrNotRunning = errors.New("assessment is not running")
	ErrConflict   = errors.New("assessment already started")
	ErrEnded      = errors.New("assessment has ended")
)

// Channel is the link to the device the patient talks to.
type Channel interface {
	Connected(id string) bool
	Speech(id string) (speech.Speaker, speech.Capturer)
	Notify(id, typ string, payload map[string]any) error
	Close(id string)
}

// Created is returned from Create with the token the browser presents on
// the websocket.
type Created struct {
	types.Assessment
	Token        string    `json:"token"`
	TokenExpires time.Time `json:"token_expires"`
}

type Manager struct {
	cfg   config.Config
	store *store.Store
	ch    Channel
	sink  record.Sink
	base  dialogue.Options
	log   zerolog.Logger
	now   func() time.Time

	mu          sync.Mutex
	controllers map[string]*dialogue.Controller
}

// NewManager builds a manager. base carries the timing and questionnaire
// every controller is started with; its Observer and Logger are replaced per
// assessment.
func NewManager(cfg config.Config, st *store.Store, ch Channel, sink record.Sink, base dialogue.Options, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		store:       st,
		ch:          ch,
		sink:        sink,
		base:        base,
		log:         log.With().Str("component", "assessment").Logger(),
		now:         time.Now,
		controllers: make(map[string]*dialogue.Controller),
	}
}

func (m *Manager) Create() (Created, error) {
	now := m.now().UTC()
	a := types.Assessment{ID: uuid.NewString(), Status: types.StatusCreated, CreatedAt: now, UpdatedAt: now}
	exp := now.Add(m.cfg.TokenTTL())
	tok, err := auth.Mint(m.cfg.Client.TokenSecret, a.ID, exp)
	if err != nil {
		return Created{}, fmt.Errorf("mint client token: %w", err)
	}
	if err := m.store.CreateAssessment(a); err != nil {
		return Created{}, err
	}
	m.store.AppendEvent(a.ID, "assessment_created", nil)
	m.log.Info().Str("assessment_id", a.ID).Msg("assessment created")
	return Created{Assessment: a, Token: tok, TokenExpires: exp}, nil
}

func (m *Manager) Get(id string) (types.Assessment, bool) { return m.store.GetAssessment(id) }

func (m *Manager) List() []types.Assessment { return m.store.ListAssessments() }

// Start begins the questionnaire. A completed or reset assessment can be
// started again; each start is a fresh session.
func (m *Manager) Start(ctx context.Context, id string) (string, error) {
	a, ok := m.store.GetAssessment(id)
	if !ok {
		return "", ErrNotFound
	}
	if a.Status == types.StatusEnded {
		return "", ErrEnded
	}
	if !m.ch.Connected(id) {
		return "", ErrNoClient
	}

	m.mu.Lock()
	ctl := m.controllers[id]
	if ctl == nil {
		ctl = m.newController(id)
		m.controllers[id] = ctl
	}
	m.mu.Unlock()

	if ctl.Status().Phase == types.PhaseComplete {
		ctl.Reset()
	}
	sessionID, err := ctl.Start(ctx)
	if errors.Is(err, dialogue.ErrNotIdle) {
		return "", ErrConflict
	}
	if err != nil {
		return "", err
	}
	m.store.SetStatus(id, types.StatusRunning, sessionID)
	m.store.AppendEvent(id, "assessment_started", map[string]any{"session_id": sessionID})
	return sessionID, nil
}

func (m *Manager) newController(id string) *dialogue.Controller {
	speaker, capturer := m.ch.Speech(id)
	opts := m.base
	log := m.log.With().Str("assessment_id", id).Logger()
	opts.Logger = &log
	opts.Observer = &observer{id: id, store: m.store, ch: m.ch, log: log}
	return dialogue.New(speaker, capturer, record.NewEmitter(nil, nil, m.sink), opts)
}

func (m *Manager) controller(id string) (*dialogue.Controller, error) {
	if _, ok := m.store.GetAssessment(id); !ok {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ctl := m.controllers[id]
	if ctl == nil {
		return nil, ErrNotRunning
	}
	return ctl, nil
}

func (m *Manager) Repeat(id string) error {
	ctl, err := m.controller(id)
	if err != nil {
		return err
	}
	if err := ctl.Repeat(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	m.store.AppendEvent(id, "repeat_requested", nil)
	return nil
}

// Reset abandons the running session, if any. Nothing is emitted for it.
func (m *Manager) Reset(id string) error {
	ctl, err := m.controller(id)
	if err != nil {
		return err
	}
	ctl.Reset()
	m.store.SetStatus(id, types.StatusReset, "")
	m.store.AppendEvent(id, "assessment_reset", nil)
	return nil
}

// End resets the assessment, drops its controller and disconnects the
// client. Ended assessments cannot be restarted.
func (m *Manager) End(id string) error {
	if _, ok := m.store.GetAssessment(id); !ok {
		return ErrNotFound
	}
	m.mu.Lock()
	ctl := m.controllers[id]
	delete(m.controllers, id)
	m.mu.Unlock()
	if ctl != nil {
		ctl.Reset()
	}
	m.ch.Close(id)
	m.store.SetStatus(id, types.StatusEnded, "")
	m.store.AppendEvent(id, "assessment_ended", nil)
	m.log.Info().Str("assessment_id", id).Msg("assessment ended")
	return nil
}

// Status reports the live turn state. An assessment that was never started
// reports Idle.
func (m *Manager) Status(id string) (dialogue.Status, error) {
	ctl, err := m.controller(id)
	if errors.Is(err, ErrNotRunning) {
		return dialogue.Status{Phase: types.PhaseIdle}, nil
	}
	if err != nil {
		return dialogue.Status{}, err
	}
	return ctl.Status(), nil
}

// Wait blocks until the running session of id finishes.
func (m *Manager) Wait(ctx context.Context, id string) (types.PatientRecord, error) {
	ctl, err := m.controller(id)
	if err != nil {
		return types.PatientRecord{}, err
	}
	return ctl.Wait(ctx)
}

func (m *Manager) Record(id string) (types.PatientRecord, bool) { return m.store.Record(id) }

func (m *Manager) Events(id string) []types.Event { return m.store.ListEvents(id) }

// HandleControl applies repeat and reset requests sent by the client.
func (m *Manager) HandleControl(id, typ string) {
	var err error
	switch typ {
	case voicews.TypeRepeat:
		err = m.Repeat(id)
	case voicews.TypeReset:
		err = m.Reset(id)
	default:
		return
	}
	if err != nil {
		m.log.Debug().Err(err).Str("assessment_id", id).Str("control", typ).Msg("client control ignored")
	}
}

// HandleDisconnect resets a session that is still in progress when its
// client goes away; it cannot continue without speech I/O.
func (m *Manager) HandleDisconnect(id string) {
	st, err := m.Status(id)
	if err != nil {
		return
	}
	if st.Phase == types.PhaseIdle || st.Phase == types.PhaseComplete {
		return
	}
	m.log.Warn().Str("assessment_id", id).Str("phase", st.Phase.String()).Msg("client lost mid-assessment, resetting")
	_ = m.Reset(id)
}

// Shutdown resets every running session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ctls := make([]*dialogue.Controller, 0, len(m.controllers))
	for _, ctl := range m.controllers {
		ctls = append(ctls, ctl)
	}
	m.mu.Unlock()
	for _, ctl := range ctls {
		ctl.Reset()
	}
}
