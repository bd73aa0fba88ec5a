package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"triage/assistant/internal/types"
)

var ErrAssessmentExists = errors.New("assessment already exists")

const maxEvents = 200

type Store struct {
	mu          sync.RWMutex
	assessments map[string]*types.Assessment
	events      map[string][]types.Event
	records     map[string]types.PatientRecord
}

func New() *Store {
	return &Store{
		assessments: make(map[string]*types.Assessment),
		events:      make(map[string][]types.Event),
		records:     make(map[string]types.PatientRecord),
	}
}

func (s *Store) CreateAssessment(a types.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[a.ID]; ok {
		return ErrAssessmentExists
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	s.assessments[a.ID] = &a
	s.events[a.ID] = []types.Event{}
	return nil
}

func (s *Store) GetAssessment(id string) (types.Assessment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return types.Assessment{}, false
	}
	return *a, true
}

// SetStatus updates status and, when sessionID is not empty, the current
// intake session id.
func (s *Store) SetStatus(id, status, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return false
	}
	a.Status = status
	if sessionID != "" {
		a.SessionID = sessionID
	}
	a.UpdatedAt = time.Now().UTC()
	return true
}

// ListAssessments returns assessments oldest first.
func (s *Store) ListAssessments() []types.Assessment {
	s.mu.RLock()
	out := make([]types.Assessment, 0, len(s.assessments))
	for _, a := range s.assessments {
		out = append(out, *a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AppendEvent records an event for an assessment. Each assessment keeps at
// most maxEvents; when trimming, the oldest go and a single events_truncated
// marker is appended.
func (s *Store) AppendEvent(id, typ string, payload map[string]any) types.Event {
	evt := types.Event{Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id] = append(s.events[id], evt)
	if l := len(s.events[id]); l > maxEvents {
		keep := maxEvents - 1
		dropped := l - keep
		s.events[id] = append([]types.Event(nil), s.events[id][l-keep:]...)
		warn := types.Event{Type: "events_truncated", Ts: time.Now().UTC(), Payload: map[string]any{"assessment_id": id, "dropped": dropped, "kept": keep}}
		s.events[id] = append(s.events[id], warn)
	}
	return evt
}

func (s *Store) ListEvents(id string) []types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[id]
	out := make([]types.Event, len(src))
	copy(out, src)
	return out
}

// SaveRecord keeps the latest completed record of an assessment.
func (s *Store) SaveRecord(id string, rec types.PatientRecord) {
	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
}

func (s *Store) Record(id string) (types.PatientRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}
