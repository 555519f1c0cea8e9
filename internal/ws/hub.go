package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"clinicdocs/internal/calc"
	"clinicdocs/internal/history"
	"clinicdocs/internal/model"
	"clinicdocs/internal/prefill"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TemplateLoader fetches the schema a live session fills
type TemplateLoader interface {
	Get(ctx context.Context, id string) (*model.Template, error)
}

// PrefillLoader resolves the server prefill data of an opened form
type PrefillLoader interface {
	Load(ctx context.Context, req prefill.Request) model.PrefillData
}

// Hub manages WebSocket connections and channel subscriptions
type Hub struct {
	mu        sync.RWMutex
	conns     map[*Conn]bool
	subs      map[string]map[*Conn]bool // channel -> connections
	publish   chan Event
	log       *zap.Logger
	templates TemplateLoader
	prefill   PrefillLoader
	calc      *calc.Calculator
	debounce  time.Duration
	ctx       context.Context
}

// Conn represents a WebSocket connection
type Conn struct {
	ws       *websocket.Conn
	send     chan []byte
	done     chan struct{}
	hub      *Hub
	doctorID string
	subs     map[string]bool // subscribed channels
	live     *LiveSession
	ctx      context.Context
}

// Event represents a message to be published
type Event struct {
	Channel string
	Message map[string]interface{}
}

// NewHub creates a new WebSocket hub
func NewHub(calculator *calc.Calculator, log *zap.Logger) *Hub {
	return &Hub{
		conns:    make(map[*Conn]bool),
		subs:     make(map[string]map[*Conn]bool),
		publish:  make(chan Event, 256),
		log:      log,
		calc:     calculator,
		debounce: DefaultDebounce,
		ctx:      context.Background(),
	}
}

// SetTemplateLoader lets live sessions open templates by id
func (h *Hub) SetTemplateLoader(loader TemplateLoader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.templates = loader
}

// SetPrefillLoader lets live sessions seed prefilled fields on open
func (h *Hub) SetPrefillLoader(loader PrefillLoader) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prefill = loader
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for event := range h.publish {
		h.mu.RLock()
		conns := make([]*Conn, 0, len(h.subs[event.Channel]))
		for conn := range h.subs[event.Channel] {
			conns = append(conns, conn)
		}
		h.mu.RUnlock()

		if len(conns) == 0 {
			continue
		}
		msg, _ := json.Marshal(map[string]interface{}{
			"type":    "event",
			"channel": event.Channel,
			"data":    event.Message,
		})
		for _, conn := range conns {
			select {
			case conn.send <- msg:
			case <-conn.done:
			default:
				h.log.Warn("Connection buffer full, dropping connection", zap.String("doctor_id", conn.doctorID))
				h.unregister(conn)
			}
		}
	}
}

// Register adds a new connection to the hub
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

// unregister removes a connection from the hub
func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		if conn.live != nil {
			conn.live.Close()
		}
		close(conn.done)
		for channel := range conn.subs {
			if subs := h.subs[channel]; subs != nil {
				delete(subs, conn)
				if len(subs) == 0 {
					delete(h.subs, channel)
				}
			}
		}
	}
}

// Subscribe adds a connection to a channel
func (h *Hub) Subscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Conn]bool)
	}
	h.subs[channel][conn] = true
	conn.subs[channel] = true
}

// Unsubscribe removes a connection from a channel
func (h *Hub) Unsubscribe(conn *Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subs[channel]; subs != nil {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.subs, channel)
		}
	}
	delete(conn.subs, channel)
}

// Publish sends an event to all subscribers of a channel
func (h *Hub) Publish(channel string, message map[string]interface{}) {
	select {
	case h.publish <- Event{Channel: channel, Message: message}:
	default:
		h.log.Warn("Hub publish channel full, dropping event", zap.String("channel", channel))
	}
}

// NewConn creates a new connection
func NewConn(ws *websocket.Conn, hub *Hub, doctorID string) *Conn {
	c := &Conn{
		ws:       ws,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		hub:      hub,
		doctorID: doctorID,
		subs:     make(map[string]bool),
		ctx:      hub.ctx,
	}
	c.live = NewLiveSession(hub.calc, hub.debounce, c.sendJSON)
	return c
}

// ReadPump handles reading from the WebSocket connection
func (c *Conn) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.log.Warn("Failed to parse message", zap.Error(err))
			c.sendError("invalid_message", "message is not valid JSON")
			continue
		}

		c.handleMessage(msg)
	}
}

// WritePump handles writing to the WebSocket connection
func (c *Conn) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Message is a client frame
type Message struct {
	Type          string          `json:"type"`
	Channel       string          `json:"channel,omitempty"`
	TemplateID    string          `json:"templateId,omitempty"`
	PatientID     string          `json:"patientId,omitempty"`
	AppointmentID string          `json:"appointmentId,omitempty"`
	Schema        *model.Schema   `json:"schema,omitempty"`
	Values        model.FormData  `json:"values,omitempty"`
	Seq           int64           `json:"seq,omitempty"`
	Op            string          `json:"op,omitempty"`
	Args          json.RawMessage `json:"args,omitempty"`
}

func (c *Conn) handleMessage(msg Message) {
	switch msg.Type {
	case "subscribe":
		if msg.Channel != "" {
			c.hub.Subscribe(c, msg.Channel)
			c.sendAck("subscribed", msg.Channel)
		}
	case "unsubscribe":
		if msg.Channel != "" {
			c.hub.Unsubscribe(c, msg.Channel)
			c.sendAck("unsubscribed", msg.Channel)
		}
	case "open":
		c.open(msg)
	case "values":
		c.live.Update(msg.Values, msg.Seq)
	case "edit":
		cmd, err := history.Decode(msg.Op, msg.Args)
		if err != nil {
			c.sendError("invalid_edit", err.Error())
			return
		}
		c.sendEditorState(c.live.Edit(cmd))
	case "undo":
		c.sendEditorState(c.live.Undo())
	case "redo":
		c.sendEditorState(c.live.Redo())
	case "ping":
		c.sendAck("pong", "")
	default:
		c.hub.log.Warn("Unknown message type", zap.String("type", msg.Type))
		c.sendError("unknown_type", "unknown message type")
	}
}

// open starts live calculation for an inline schema or a stored template
func (c *Conn) open(msg Message) {
	var schema model.Schema
	switch {
	case msg.Schema != nil:
		schema = *msg.Schema
	case msg.TemplateID != "":
		c.hub.mu.RLock()
		loader := c.hub.templates
		c.hub.mu.RUnlock()
		if loader == nil {
			c.sendError("unavailable", "templates cannot be opened on this connection")
			return
		}
		t, err := loader.Get(c.ctx, msg.TemplateID)
		if err != nil {
			c.hub.log.Warn("Failed to open template", zap.String("template_id", msg.TemplateID), zap.Error(err))
			c.sendError("not_found", "template not found")
			return
		}
		schema = t.Schema
		// follow edits to the template while it is open
		c.hub.Subscribe(c, "template:"+t.ID)
	default:
		c.sendError("invalid_message", "open needs a schema or a templateId")
		return
	}

	seed := c.seed(schema, msg)
	c.live.Open(schema, seed)
	c.sendAck("opened", "")
	if len(seed) > 0 {
		c.sendJSON(map[string]interface{}{
			"type":   "prefill",
			"values": seed,
		})
	}
}

func (c *Conn) seed(schema model.Schema, msg Message) model.FormData {
	c.hub.mu.RLock()
	loader := c.hub.prefill
	c.hub.mu.RUnlock()
	if loader == nil {
		return nil
	}
	data := loader.Load(c.ctx, prefill.Request{
		PatientID:     msg.PatientID,
		DoctorID:      c.doctorID,
		AppointmentID: msg.AppointmentID,
	})
	return prefill.Seed(schema, data)
}

func (c *Conn) sendEditorState(state EditorState, err error) {
	if err != nil {
		c.sendError("edit_failed", err.Error())
		return
	}
	c.sendJSON(map[string]interface{}{
		"type":    "schema",
		"schema":  state.Schema,
		"canUndo": state.CanUndo,
		"canRedo": state.CanRedo,
	})
}

func (c *Conn) sendJSON(v map[string]interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		c.hub.log.Error("Failed to encode message", zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- msg:
	default:
	}
}

func (c *Conn) sendAck(msgType, channel string) {
	ack := map[string]interface{}{
		"type": "ack",
		"ack":  msgType,
	}
	if channel != "" {
		ack["channel"] = channel
	}
	c.sendJSON(ack)
}

func (c *Conn) sendError(code, message string) {
	c.sendJSON(map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	})
}
