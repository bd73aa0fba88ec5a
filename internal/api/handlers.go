package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"triage/assistant/internal/assessment"
	"triage/assistant/internal/health"
	"triage/assistant/internal/queue"
	"triage/assistant/internal/types"
)

const defaultQueueLimit = 100

// Queue is the waiting room completed records are delivered to.
type Queue interface {
	Waiting(ctx context.Context, limit int64) ([]types.PatientRecord, error)
	Remove(ctx context.Context, id string) error
}

type Handlers struct {
	mgr     *assessment.Manager
	checker *health.Checker
	queue   Queue
	log     zerolog.Logger
}

// NewHandlers wires the HTTP handlers. q may be nil when no queue is
// configured; the queue routes then answer 503.
func NewHandlers(mgr *assessment.Manager, checker *health.Checker, q Queue, log zerolog.Logger) *Handlers {
	return &Handlers{mgr: mgr, checker: checker, queue: q, log: log.With().Str("component", "api").Logger()}
}

func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	created, err := h.mgr.Create()
	if err != nil {
		h.log.Error().Err(err).Msg("create assessment")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"assessments": h.mgr.List()})
}

func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request, id string) {
	a, ok := h.mgr.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	st, err := h.mgr.Status(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assessment": a, "status": st})
}

func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request, id string) {
	sessionID, err := h.mgr.Start(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session_id": sessionID})
}

func (h *Handlers) HandleRepeat(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.mgr.Repeat(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.mgr.Reset(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleEnd(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.mgr.End(id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.mgr.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assessment_id": id,
		"events":        h.mgr.Events(id),
	})
}

func (h *Handlers) HandleRecord(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.mgr.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	rec, ok := h.mgr.Record(id)
	if !ok {
		http.Error(w, "no record yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		http.Error(w, "queue not configured", http.StatusServiceUnavailable)
		return
	}
	limit := int64(defaultQueueLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	patients, err := h.queue.Waiting(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list queue")
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": patients})
}

func (h *Handlers) HandleDequeue(w http.ResponseWriter, r *http.Request, id string) {
	if h.queue == nil {
		http.Error(w, "queue not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.queue.Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	st := h.checker.CheckAll(r.Context())
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assessment.ErrNotFound), errors.Is(err, queue.ErrNotQueued):
		http.NotFound(w, r)
	case errors.Is(err, assessment.ErrEnded):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, assessment.ErrNoClient),
		errors.Is(err, assessment.ErrConflict),
		errors.Is(err, assessment.ErrNotRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
