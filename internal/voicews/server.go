// Package voicews carries the turn controller's speech I/O over a websocket
// to the patient's browser, which runs speech synthesis and recognition.
package voicews

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"triage/assistant/internal/auth"
	"triage/assistant/internal/config"
	"triage/assistant/internal/store"
)

type Server struct {
	Cfg   config.Config
	Store *store.Store
	Hub   *Hub

	// OnControl receives repeat and reset requests from the client.
	OnControl func(assessmentID, typ string)
	// OnDisconnect runs after the current client for an assessment goes away,
	// before its pending speech operations are failed.
	OnDisconnect func(assessmentID string)

	log zerolog.Logger
	now func() time.Time
}

func NewServer(cfg config.Config, st *store.Store, hub *Hub, log zerolog.Logger) *Server {
	return &Server{
		Cfg:   cfg,
		Store: st,
		Hub:   hub,
		log:   log.With().Str("component", "voicews").Logger(),
		now:   time.Now,
	}
}

func (s *Server) HandleClientWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("assessment_id")
	if id == "" {
		http.Error(w, "missing assessment_id", http.StatusBadRequest)
		return
	}
	if _, ok := s.Store.GetAssessment(id); !ok {
		http.Error(w, "unknown assessment", http.StatusNotFound)
		return
	}
	if s.Cfg.Client.TokenSecret == "" {
		http.Error(w, "client auth not configured", http.StatusUnauthorized)
		return
	}
	if _, err := auth.Verify(s.Cfg.Client.TokenSecret, q.Get("token"), id, s.now(), s.Cfg.TokenSkew()); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: s.Cfg.Client.OriginPatterns})
	if err != nil {
		s.log.Warn().Err(err).Msg("ws accept")
		return
	}
	log := s.log.With().Str("assessment_id", id).Logger()
	c, replaced := s.Hub.attach(id, conn)
	if replaced {
		s.Store.AppendEvent(id, "client_replaced", nil)
	}
	s.Store.AppendEvent(id, "client_connected", nil)
	log.Info().Bool("replaced", replaced).Msg("client connected")

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Store.AppendEvent(id, "client_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		metricMessages.WithLabelValues("in", msg.Type).Inc()
		s.record(id, msg)
		s.dispatch(id, msg, log)
	}

	b, cur := s.Hub.detach(id, c)
	if !cur {
		return
	}
	s.Store.AppendEvent(id, "client_disconnected", nil)
	log.Info().Msg("client disconnected")
	// OnDisconnect runs while streams are still open, so an ended capture
	// cannot finalize the turn before the owner resets it.
	if s.OnDisconnect != nil {
		s.OnDisconnect(id)
	}
	if b != nil {
		b.disconnected()
	}
}

func (s *Server) dispatch(id string, msg Message, log zerolog.Logger) {
	switch msg.Type {
	case TypeHello:
		log.Info().Str("agent", msg.str("user_agent")).Msg("client hello")
	case TypeRepeat, TypeReset:
		if s.OnControl != nil {
			s.OnControl(id, msg.Type)
		}
	default:
		if !s.Hub.Dispatch(id, msg) {
			log.Debug().Str("type", msg.Type).Str("command_id", msg.CommandID).Msg("ignored client message")
		}
	}
}

// record keeps client messages in the event log. Partial transcripts are
// too chatty to keep.
func (s *Server) record(id string, msg Message) {
	if msg.Type == TypeTranscript && !msg.flag("final") {
		return
	}
	payload := make(map[string]any, len(msg.Payload)+3)
	for k, v := range msg.Payload {
		payload[k] = v
	}
	payload["ts_ms"] = msg.TsMs
	payload["seq"] = msg.Seq
	if msg.CommandID != "" {
		payload["command_id"] = msg.CommandID
	}
	s.Store.AppendEvent(id, "client_"+msg.Type, payload)
}
