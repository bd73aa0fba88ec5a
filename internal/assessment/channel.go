package assessment

import (
	"triage/assistant/internal/speech"
	"triage/assistant/internal/voicews"
)

// HubChannel speaks to patients through the websocket hub.
type HubChannel struct {
	Hub    *voicews.Hub
	Bridge voicews.BridgeConfig
}

func (c HubChannel) Connected(id string) bool { return c.Hub.Connected(id) }

func (c HubChannel) Speech(id string) (speech.Speaker, speech.Capturer) {
	b := c.Hub.Bridge(id, c.Bridge)
	return b, b
}

func (c HubChannel) Notify(id, typ string, payload map[string]any) error {
	return c.Hub.Send(id, voicews.Message{Type: typ, Payload: payload})
}

func (c HubChannel) Close(id string) {
	c.Hub.Forget(id)
	c.Hub.Disconnect(id)
}
