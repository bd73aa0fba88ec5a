package store

import (
	"testing"
	"time"

	"triage/assistant/internal/types"
)

func TestCreateAndGetAssessment(t *testing.T) {
	st := New()
	a := types.Assessment{ID: "abc123", Status: types.StatusCreated, CreatedAt: time.Now()}
	if err := st.CreateAssessment(a); err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	if err := st.CreateAssessment(a); err != ErrAssessmentExists {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	got, ok := st.GetAssessment("abc123")
	if !ok || got.ID != a.ID {
		t.Fatalf("expected assessment %q, got %#v", a.ID, got)
	}
	if !st.SetStatus("abc123", types.StatusRunning, "sess-1") {
		t.Fatalf("set status failed")
	}
	got, _ = st.GetAssessment("abc123")
	if got.Status != types.StatusRunning || got.SessionID != "sess-1" {
		t.Fatalf("unexpected assessment: %#v", got)
	}
}

func TestEventsAreCapped(t *testing.T) {
	st := New()
	for i := 0; i < maxEvents+10; i++ {
		st.AppendEvent("a1", "phase_changed", map[string]any{"i": i})
	}
	evs := st.ListEvents("a1")
	if len(evs) != maxEvents {
		t.Fatalf("expected %d events, got %d", maxEvents, len(evs))
	}
	last := evs[len(evs)-1]
	if last.Type != "events_truncated" {
		t.Fatalf("expected truncation marker last, got %q", last.Type)
	}
	if evs[len(evs)-2].Payload["i"] != maxEvents+9 {
		t.Fatalf("newest event should be kept, got %v", evs[len(evs)-2].Payload)
	}
}

func TestRecords(t *testing.T) {
	st := New()
	if _, ok := st.Record("a1"); ok {
		t.Fatalf("no record expected")
	}
	st.SaveRecord("a1", types.PatientRecord{ID: "r1", Name: "Maria Lopez"})
	rec, ok := st.Record("a1")
	if !ok || rec.Name != "Maria Lopez" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
