// Package hub adapts the engine's single-executor state hub onto real
// gorilla/websocket connections: one reader goroutine per connection
// decodes frames into engine.Commands and posts them through Engine.Submit,
// one writer goroutine drains a per-connection outbound queue, and Hub
// itself implements engine.Sender so the engine never has to know a socket
// exists. This mirrors the register/unregister/broadcast channel split of
// the teacher's own websocket.Hub, generalized from a single fan-out
// channel to one outbound queue per connection so a slow subscriber only
// ever blocks its own delivery.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/streamspace/statehub/internal/engine"
	"github.com/streamspace/statehub/internal/ingest"
	"github.com/streamspace/statehub/internal/logger"
	"github.com/streamspace/statehub/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

type sendError string

func (e sendError) Error() string { return string(e) }

const (
	errNotConnected   = sendError("connection not registered")
	errSendBufferFull = sendError("send buffer full")
)

// conn is one connection's writer-side state, shared between Hub.Send and
// that connection's own writePump goroutine.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan interface{}
}

// Hub owns the live connection set for both the subscriber and admin
// WebSocket endpoints and implements engine.Sender over it.
type Hub struct {
	eng     *engine.Engine
	decoder *ingest.Decoder

	mu    sync.RWMutex
	conns map[string]*conn
}

// New builds a Hub bound to one Engine and frame Decoder.
func New(eng *engine.Engine, decoder *ingest.Decoder) *Hub {
	return &Hub{eng: eng, decoder: decoder, conns: map[string]*conn{}}
}

// Send implements engine.Sender: a non-blocking enqueue onto the target
// connection's writer goroutine. A full buffer means the connection is
// slow; the caller (runTick's dispatch loop) treats the returned error as
// cause to prune the subscriber, same as the teacher hub closing a client
// whose send channel is full.
func (h *Hub) Send(connID string, v interface{}) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return errNotConnected
	}
	select {
	case c.send <- v:
		return nil
	default:
		return errSendBufferFull
	}
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if existing, ok := h.conns[c.id]; ok && existing == c {
		delete(h.conns, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// ServeSubscriber handles one accepted subscriber-channel connection until
// it closes, decoding frames through the ingest.Decoder and posting the
// resulting commands to the engine.
func (h *Hub) ServeSubscriber(ws *websocket.Conn) {
	c := &conn{id: uuid.New().String(), ws: ws, send: make(chan interface{}, sendBuffer)}
	h.register(c)

	go h.writePump(c)
	h.subscriberReadPump(c)
}

func (h *Hub) subscriberReadPump(c *conn) {
	sourceID := ""
	registered := false

	defer func() {
		h.unregister(c)
		h.eng.Submit(engine.DisconnectCmd{ConnID: c.id, SourceID: sourceID})
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		typ, err := protocol.DecodeType(raw)
		if err != nil {
			continue
		}

		// A data frame arriving before handshake registers this connection
		// as a legacy (pre-handshake) client the first time it carries a
		// submitPlayerId, matching the teacher domain's backward-compatible
		// auto-connect rule.
		if typ != protocol.TypeHandshake && !registered {
			if pid := ingest.PeekSubmitPlayerID(raw); pid != "" {
				sourceID = pid
				registered = true
				h.eng.Submit(engine.LegacyRegisterCmd{ConnID: c.id, SubmitPlayerID: pid})
			}
		}

		cmd := h.decoder.Decode(c.id, raw)
		if cmd == nil {
			continue
		}
		if hs, ok := cmd.(engine.HandshakeCmd); ok {
			sourceID = hs.SubmitPlayerID
			registered = true
		}
		h.eng.Submit(cmd)
	}
}

// adminFrame is the admin channel's flat command shape; every admin
// command is decoded into this one struct rather than one struct per type
// since the fields barely overlap and the channel is low-volume.
type adminFrame struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Team     string `json:"team"`
	Color    string `json:"color"`
	Label    string `json:"label"`
	Enabled  bool   `json:"enabled"`
}

// ServeAdmin handles one accepted admin-channel connection until it closes.
func (h *Hub) ServeAdmin(ws *websocket.Conn) {
	c := &conn{id: uuid.New().String(), ws: ws, send: make(chan interface{}, sendBuffer)}
	h.register(c)
	h.eng.Submit(engine.AdminRegisterCmd{ConnID: c.id})

	go h.writePump(c)
	h.adminReadPump(c)
}

func (h *Hub) adminReadPump(c *conn) {
	defer func() {
		h.unregister(c)
		h.eng.Submit(engine.AdminDisconnectCmd{ConnID: c.id})
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var in adminFrame
		if err := json.Unmarshal(raw, &in); err != nil {
			_ = h.Send(c.id, protocol.AdminAckOut{Type: protocol.TypeAdminAck, OK: false, Error: "invalid_json"})
			continue
		}

		switch in.Type {
		case protocol.TypePing, protocol.TypeHealth:
			h.eng.Submit(engine.AdminCommandCmd{ConnID: c.id, Action: in.Type})
		case protocol.TypeCommandPlayerMarkSet, protocol.TypeCommandPlayerMarkClear,
			protocol.TypeCommandPlayerMarkClearAll, protocol.TypeCommandSameServerFilterSet:
			h.eng.Submit(engine.AdminCommandCmd{
				ConnID:   c.id,
				Action:   in.Type,
				PlayerID: in.PlayerID,
				Team:     in.Team,
				Color:    in.Color,
				Label:    in.Label,
				Enabled:  in.Enabled,
			})
		default:
			_ = h.Send(c.id, protocol.AdminAckOut{Type: protocol.TypeAdminAck, OK: false, Error: "unsupported_command"})
		}
	}
}

func (h *Hub) writePump(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.WebSocket().Warn().Err(err).Msg("failed to marshal outbound frame")
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
