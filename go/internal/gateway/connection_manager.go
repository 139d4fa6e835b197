package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcaldwell/podiumquiz/go/internal/game"
)

// EventSink receives a copy of every outbound room event. The NATS relay
// implements it; a nil sink disables mirroring.
type EventSink interface {
	Publish(roomCode string, event game.EventType, data []byte)
}

// ConnectionManager owns every live websocket and the room-keyed broadcast
// groups. It implements the engine's Broadcaster interface.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection          // connection id -> connection
	roomGroups  map[string]map[*Connection]bool // room code -> members

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock
	sink     EventSink

	broadcastCh chan outboundMessage

	// Handler is the inbound side; set once before serving.
	Handler InboundHandler
}

// InboundHandler consumes decoded client frames and connection lifecycle.
type InboundHandler interface {
	HandleMessage(connID string, msg ClientMessage) Ack
	HandleDisconnect(connID string)
}

// Ack mirrors engine.Ack without importing it, keeping the gateway free of
// an engine dependency cycle.
type Ack struct {
	OK     bool           `json:"ok"`
	Reason string         `json:"reason,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Connection is one client socket.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds socket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns sane defaults for phone clients on flaky
// wifi.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

type outboundMessage struct {
	roomCode string // empty for direct sends
	connID   string
	event    game.EventType
	data     []byte
}

// ServerEvent is the outbound wire envelope.
type ServerEvent struct {
	ID        string          `json:"id"`
	Event     game.EventType  `json:"event"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

// NewConnectionManager builds a manager. Start must be called before any
// broadcasts are delivered.
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock, sink EventSink) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		roomGroups:  make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		sink:        sink,
		broadcastCh: make(chan outboundMessage, 1000),
	}
}

// Start drains the broadcast channel until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

// ToRoom queues an event for every member of a room's broadcast group.
func (cm *ConnectionManager) ToRoom(code string, event game.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal room event")
		return
	}
	if cm.sink != nil {
		cm.sink.Publish(code, event, data)
	}
	select {
	case cm.broadcastCh <- outboundMessage{roomCode: code, event: event, data: data}:
	default:
		log.Warn().Str("room", code).Str("event", string(event)).Msg("broadcast channel full, dropping message")
	}
}

// ToConn queues an event for a single connection.
func (cm *ConnectionManager) ToConn(connID string, event game.EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(event)).Msg("failed to marshal direct event")
		return
	}
	select {
	case cm.broadcastCh <- outboundMessage{connID: connID, event: event, data: data}:
	default:
		log.Warn().Str("conn", connID).Str("event", string(event)).Msg("broadcast channel full, dropping message")
	}
}

// JoinRoomGroup subscribes a connection to a room's broadcasts.
func (cm *ConnectionManager) JoinRoomGroup(connID, code string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn := cm.connections[connID]
	if conn == nil {
		return
	}
	if cm.roomGroups[code] == nil {
		cm.roomGroups[code] = make(map[*Connection]bool)
	}
	cm.roomGroups[code][conn] = true

	log.Debug().Str("conn", connID).Str("room", code).Msg("joined room group")
}

// RoomGroupSize reports how many sockets a room currently reaches.
func (cm *ConnectionManager) RoomGroupSize(code string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.roomGroups[code])
}

func (cm *ConnectionManager) deliver(msg outboundMessage) {
	envelope := ServerEvent{
		ID:        uuid.NewString(),
		Event:     msg.event,
		Timestamp: cm.clock.Now(),
		Data:      msg.data,
	}
	frame, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event envelope")
		return
	}

	cm.mu.RLock()
	var targets []*Connection
	if msg.connID != "" {
		if conn := cm.connections[msg.connID]; conn != nil {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.roomGroups[msg.roomCode] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- frame:
		default:
			log.Warn().Str("conn", conn.ID).Msg("send buffer full, closing connection")
			cm.dropConnection(conn)
		}
	}
}

// UpgradeConnection turns an HTTP request into a managed websocket.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	conn := &Connection{
		ID:          uuid.NewString(),
		Conn:        ws,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.connections[conn.ID] = conn
	cm.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	log.Info().Str("conn", conn.ID).Msg("websocket connection established")
	return nil
}

// dropConnection removes a connection from every group and closes its send
// channel. Idempotent.
func (cm *ConnectionManager) dropConnection(conn *Connection) {
	cm.mu.Lock()
	_, live := cm.connections[conn.ID]
	if live {
		delete(cm.connections, conn.ID)
		for code, group := range cm.roomGroups {
			if group[conn] {
				delete(group, conn)
				if len(group) == 0 {
					delete(cm.roomGroups, code)
				}
			}
		}
		close(conn.Send)
	}
	cm.mu.Unlock()

	if live {
		conn.Conn.Close()
		if cm.Handler != nil {
			cm.Handler.HandleDisconnect(conn.ID)
		}
		log.Info().Str("conn", conn.ID).Msg("connection dropped")
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Manager.dropConnection(c)
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("conn", c.ID).Msg("failed to write frame")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer c.Manager.dropConnection(c)

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("conn", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.handleClientFrame(frame)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientFrame(frame []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		log.Debug().Str("conn", c.ID).Msg("discarding malformed client frame")
		return
	}
	if c.Manager.Handler == nil {
		return
	}

	ack := c.Manager.Handler.HandleMessage(c.ID, msg)
	reply := ClientAck{Seq: msg.Seq, OK: ack.OK, Reason: ack.Reason, Data: ack.Data}
	out, err := json.Marshal(reply)
	if err != nil {
		return
	}
	select {
	case c.Send <- out:
	default:
		log.Warn().Str("conn", c.ID).Msg("send buffer full while acking")
	}
}
