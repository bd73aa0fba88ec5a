package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"triage/assistant/internal/assessment"
	"triage/assistant/internal/config"
	"triage/assistant/internal/dialogue"
	"triage/assistant/internal/health"
	"triage/assistant/internal/queue"
	"triage/assistant/internal/store"
	"triage/assistant/internal/types"
	"triage/assistant/internal/voicews"
)

type fakeQueue struct {
	mu       sync.Mutex
	patients []types.PatientRecord
	limit    int64
}

func (f *fakeQueue) Waiting(_ context.Context, limit int64) ([]types.PatientRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	out := f.patients
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return append([]types.PatientRecord(nil), out...), nil
}

func (f *fakeQueue) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.patients {
		if p.ID == id {
			f.patients = append(f.patients[:i], f.patients[i+1:]...)
			return nil
		}
	}
	return queue.ErrNotQueued
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithQueue(t, nil)
}

func newTestServerWithQueue(t *testing.T, q Queue) *httptest.Server {
	t.Helper()
	cfg := config.Load()
	cfg.Client.TokenSecret = "s3cret"
	ch := assessment.HubChannel{Hub: voicews.NewHub(zerolog.Nop())}
	mgr := assessment.NewManager(cfg, store.New(), ch, nil, dialogue.Options{}, zerolog.Nop())
	h := NewHandlers(mgr, health.NewChecker(config.Config{}, nil), q, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestUnknownAssessment404(t *testing.T) {
	srv := newTestServer(t)
	for _, action := range []string{"start", "repeat", "reset", "end"} {
		if resp := post(t, srv.URL+"/assessments/unknown/"+action); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", action, resp.StatusCode)
		}
	}
	resp, err := http.Get(srv.URL + "/assessments/unknown/events")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateThenStartWithoutClient(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/assessments", "application/json", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Token == "" {
		t.Fatalf("missing id or token: %+v", created)
	}

	if r := post(t, srv.URL+"/assessments/"+created.ID+"/start"); r.StatusCode != http.StatusConflict {
		t.Fatalf("start without client: expected 409, got %d", r.StatusCode)
	}
	if r := post(t, srv.URL+"/assessments/"+created.ID+"/repeat"); r.StatusCode != http.StatusConflict {
		t.Fatalf("repeat before start: expected 409, got %d", r.StatusCode)
	}

	get, err := http.Get(srv.URL + "/assessments/" + created.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer get.Body.Close()
	var body struct {
		Status dialogue.Status `json:"status"`
	}
	if err := json.NewDecoder(get.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status.Phase.String() != "IDLE" {
		t.Fatalf("expected IDLE, got %s", body.Status.Phase)
	}

	if r := post(t, srv.URL+"/assessments/"+created.ID+"/end"); r.StatusCode != http.StatusOK {
		t.Fatalf("end: expected 200, got %d", r.StatusCode)
	}
	if r := post(t, srv.URL+"/assessments/"+created.ID+"/start"); r.StatusCode != http.StatusGone {
		t.Fatalf("start after end: expected 410, got %d", r.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/assessments/abc/start")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func del(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestQueueListAndRemove(t *testing.T) {
	q := &fakeQueue{patients: []types.PatientRecord{
		{ID: "p-crit", Name: "Bo", UrgencyLabel: types.UrgencyCritical},
		{ID: "p-low", Name: "Ann", UrgencyLabel: types.UrgencyLow},
	}}
	srv := newTestServerWithQueue(t, q)

	list := func(query string) []types.PatientRecord {
		t.Helper()
		resp, err := http.Get(srv.URL + "/queue" + query)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list queue: expected 200, got %d", resp.StatusCode)
		}
		var body struct {
			Patients []types.PatientRecord `json:"patients"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return body.Patients
	}

	got := list("")
	if len(got) != 2 || got[0].ID != "p-crit" || got[1].ID != "p-low" {
		t.Fatalf("unexpected queue: %+v", got)
	}
	q.mu.Lock()
	limit := q.limit
	q.mu.Unlock()
	if limit != 100 {
		t.Fatalf("expected default limit 100, got %d", limit)
	}
	if got := list("?limit=1"); len(got) != 1 || got[0].ID != "p-crit" {
		t.Fatalf("limit not applied: %+v", got)
	}
	resp, err := http.Get(srv.URL + "/queue?limit=zero")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", resp.StatusCode)
	}

	if r := del(t, srv.URL+"/queue/p-crit"); r.StatusCode != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", r.StatusCode)
	}
	if got := list(""); len(got) != 1 || got[0].ID != "p-low" {
		t.Fatalf("unexpected queue after remove: %+v", got)
	}
	if r := del(t, srv.URL+"/queue/p-crit"); r.StatusCode != http.StatusNotFound {
		t.Fatalf("second remove: expected 404, got %d", r.StatusCode)
	}
	if r := post(t, srv.URL+"/queue/p-low"); r.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("post to patient: expected 405, got %d", r.StatusCode)
	}
}

func TestQueueWithoutRedis(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/queue")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if r := del(t, srv.URL+"/queue/p1"); r.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", r.StatusCode)
	}
}
