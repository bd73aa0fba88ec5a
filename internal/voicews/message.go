package voicews

// Message is the envelope for every frame on the client websocket, in both
// directions.
type Message struct {
	Type         string         `json:"type"`
	TsMs         int64          `json:"ts_ms"`
	AssessmentID string         `json:"assessment_id,omitempty"`
	Seq          int64          `json:"seq"`
	CommandID    string         `json:"command_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Server to client.
const (
	TypeSpeak        = "speak"
	TypeStartCapture = "start_capture"
	TypeStopCapture  = "stop_capture"
	TypePhase        = "phase"
	TypeNotice       = "notice"
	TypeAnswer       = "answer"
	TypeComplete     = "complete"
)

// Client to server.
const (
	TypeHello              = "hello"
	TypeSpeechEnded        = "speech_ended"
	TypeCaptureStarted     = "capture_started"
	TypeCaptureUnavailable = "capture_unavailable"
	TypeTranscript         = "transcript"
	TypeCaptureEnded       = "capture_ended"
	TypeRepeat             = "repeat"
	TypeReset              = "reset"
)

func (m Message) str(key string) string {
	if m.Payload == nil {
		return ""
	}
	s, _ := m.Payload[key].(string)
	return s
}

func (m Message) flag(key string) bool {
	if m.Payload == nil {
		return false
	}
	b, _ := m.Payload[key].(bool)
	return b
}
