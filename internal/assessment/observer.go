package assessment

import (
	"github.com/rs/zerolog"

	"triage/assistant/internal/store"
	"triage/assistant/internal/types"
)

// observer mirrors one controller's events into the event log and out to
// the client. It runs under the controller lock; the store and Notify
// never block.
type observer struct {
	id    string
	store *store.Store
	ch    Channel
	log   zerolog.Logger
}

func (o *observer) PhaseChanged(sessionID string, from, to types.Phase, step int) {
	payload := map[string]any{
		"session_id": sessionID,
		"from":       from.String(),
		"to":         to.String(),
		"step":       step,
	}
	o.store.AppendEvent(o.id, "phase_changed", payload)
	o.notify("phase", payload)
}

func (o *observer) AnswerRecorded(sessionID string, q types.Question, rec types.AnswerRecord) {
	payload := map[string]any{
		"session_id":  sessionID,
		"question_id": q.ID,
		"key":         q.Key,
		"value":       rec.NormalizedValue,
		"timeout":     rec.WasTimeout,
	}
	o.store.AppendEvent(o.id, "answer_recorded", payload)
	o.notify("answer", payload)
}

func (o *observer) Notice(sessionID, code, detail string) {
	payload := map[string]any{"session_id": sessionID, "code": code, "detail": detail}
	o.store.AppendEvent(o.id, "notice", payload)
	o.notify("notice", payload)
}

func (o *observer) Completed(sessionID string, rec types.PatientRecord, err error) {
	o.store.SaveRecord(o.id, rec)
	if err != nil {
		o.store.SetStatus(o.id, types.StatusFailed, sessionID)
		o.store.AppendEvent(o.id, "record_failed", map[string]any{"record_id": rec.ID, "error": err.Error()})
		o.notify("notice", map[string]any{"session_id": sessionID, "code": "record_failed", "detail": "patient record could not be queued"})
		return
	}
	o.store.SetStatus(o.id, types.StatusComplete, sessionID)
	o.store.AppendEvent(o.id, "record_emitted", map[string]any{"record_id": rec.ID, "urgency": rec.UrgencyLabel})
	o.notify("complete", map[string]any{"session_id": sessionID, "record": rec})
}

func (o *observer) notify(typ string, payload map[string]any) {
	if err := o.ch.Notify(o.id, typ, payload); err != nil {
		o.log.Debug().Err(err).Str("type", typ).Msg("client notify skipped")
	}
}
