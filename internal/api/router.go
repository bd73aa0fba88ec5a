package api

import (
	"net/http"
	"strings"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", h.HandleReady)

	mux.HandleFunc("/assessments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.HandleCreate(w, r)
		case http.MethodGet:
			h.HandleList(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/assessments/", func(w http.ResponseWriter, r *http.Request) {
		// /assessments/{id} | /start | /repeat | /reset | /end | /events | /record
		path := strings.TrimSuffix(r.URL.Path, "/")
		rest := strings.TrimPrefix(path, "/assessments/")
		parts := strings.Split(rest, "/")
		if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
			http.NotFound(w, r)
			return
		}
		id := parts[0]
		tail := ""
		if len(parts) > 1 {
			tail = parts[1]
		}

		method := http.MethodPost
		var handle func(http.ResponseWriter, *http.Request, string)
		switch tail {
		case "":
			method, handle = http.MethodGet, h.HandleGet
		case "events":
			method, handle = http.MethodGet, h.HandleListEvents
		case "record":
			method, handle = http.MethodGet, h.HandleRecord
		case "start":
			handle = h.HandleStart
		case "repeat":
			handle = h.HandleRepeat
		case "reset":
			handle = h.HandleReset
		case "end":
			handle = h.HandleEnd
		default:
			http.NotFound(w, r)
			return
		}
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handle(w, r, id)
	})

	mux.HandleFunc("/queue", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleQueue(w, r)
	})

	mux.HandleFunc("/queue/", func(w http.ResponseWriter, r *http.Request) {
		// /queue/{patient_id}
		id := strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, "/"), "/queue/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleDequeue(w, r, id)
	})

	return mux
}
