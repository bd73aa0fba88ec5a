package voicews

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
)

var (
	ErrNotConnected = errors.New("client not connected")
	ErrQueueFull    = errors.New("client send queue full")
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second
)

type client struct {
	conn *ws.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
	seq  int64
}

func (c *client) close(reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(ws.StatusNormalClosure, reason)
	})
}

func (c *client) writeLoop(log zerolog.Logger) {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.out:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Write(ctx, ws.MessageText, b)
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("ws write failed")
				c.close("write failed")
				return
			}
		}
	}
}

// Hub keeps at most one browser connection per assessment and the bridge
// that speaks through it. Sends never block: each client has a bounded
// queue drained by its own writer goroutine.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[string]*client
	bridges map[string]*Bridge
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log.With().Str("component", "voicews").Logger(),
		clients: make(map[string]*client),
		bridges: make(map[string]*Bridge),
	}
}

// attach sets the connection for an assessment and closes the previous one
// if present.
func (h *Hub) attach(id string, conn *ws.Conn) (c *client, replaced bool) {
	c = &client{conn: conn, out: make(chan []byte, sendQueueSize), done: make(chan struct{})}
	h.mu.Lock()
	old := h.clients[id]
	h.clients[id] = c
	h.mu.Unlock()
	if old != nil {
		old.close("replaced")
		replaced = true
		metricReplaced.Inc()
	} else {
		metricActiveClients.Inc()
	}
	go c.writeLoop(h.log.With().Str("assessment_id", id).Logger())
	return c, replaced
}

// detach removes c if it is still the current connection and returns the
// assessment's bridge. The caller fails the bridge's pending operations once
// the disconnect has been handled.
func (h *Hub) detach(id string, c *client) (*Bridge, bool) {
	c.close("done")
	h.mu.Lock()
	cur := h.clients[id] == c
	var b *Bridge
	if cur {
		delete(h.clients, id)
		b = h.bridges[id]
	}
	h.mu.Unlock()
	if !cur {
		return nil, false
	}
	metricActiveClients.Dec()
	return b, true
}

func (h *Hub) Connected(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[id] != nil
}

// Send queues msg for the assessment's client.
func (h *Hub) Send(id string, msg Message) error {
	h.mu.Lock()
	c := h.clients[id]
	if c != nil {
		c.seq++
		msg.Seq = c.seq
	}
	h.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	if msg.TsMs == 0 {
		msg.TsMs = time.Now().UnixMilli()
	}
	msg.AssessmentID = id
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrNotConnected
	case c.out <- b:
		metricMessages.WithLabelValues("out", msg.Type).Inc()
		return nil
	default:
		metricSendDrops.Inc()
		return ErrQueueFull
	}
}

// Bridge returns the speech bridge for an assessment, creating it on first
// use.
func (h *Hub) Bridge(id string, cfg BridgeConfig) *Bridge {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b := h.bridges[id]; b != nil {
		return b
	}
	b := newBridge(id, h, cfg, h.log.With().Str("assessment_id", id).Logger())
	h.bridges[id] = b
	return b
}

// Dispatch routes a client message to the assessment's bridge.
func (h *Hub) Dispatch(id string, msg Message) bool {
	h.mu.Lock()
	b := h.bridges[id]
	h.mu.Unlock()
	if b == nil {
		return false
	}
	return b.Dispatch(msg)
}

// Forget drops the bridge once its assessment has ended, failing anything
// still waiting on it.
func (h *Hub) Forget(id string) {
	h.mu.Lock()
	b := h.bridges[id]
	delete(h.bridges, id)
	h.mu.Unlock()
	if b != nil {
		b.disconnected()
	}
}

// Disconnect closes the assessment's client connection, if any.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	c := h.clients[id]
	h.mu.Unlock()
	if c != nil {
		c.close("assessment ended")
	}
}

// Close drops every client connection.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		clients[id] = c
	}
	h.mu.Unlock()
	for id, c := range clients {
		c.close("shutdown")
		if b, ok := h.detach(id, c); ok && b != nil {
			b.disconnected()
		}
	}
}
