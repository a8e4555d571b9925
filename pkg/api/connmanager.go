package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/fernlabour/labour-actor/pkg/actor"
	"github.com/fernlabour/labour-actor/pkg/authz"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/google/uuid"
)

// catchupLimit bounds how many events a single catchup response returns. A
// client that has missed more than this is told to overflow: re-fetch the
// aggregate via GET /labours/:id instead of paginating catchup requests.
const catchupLimit = 200

// ClientMessage is the JSON shape of client -> server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`
	AggregateID string `json:"aggregate_id,omitempty"`
	LastSeq     *int64 `json:"last_seq,omitempty"`
}

// ConnectionManager tracks live WebSocket connections and their aggregate
// subscriptions, and fans out broadcast events to subscribers. There is no
// cross-process distribution layer: every aggregate is owned by exactly one
// Actor in this process, so Broadcast is called directly from that Actor's
// alarm pass and delivery never has to cross a process boundary.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*connection

	channelMu sync.RWMutex
	channels  map[string]map[string]bool // aggregateID -> set of connection IDs

	store        eventstore.Store
	host         *actor.Host
	writeTimeout time.Duration
}

type connection struct {
	id            string
	conn          *websocket.Conn
	user          authz.User      // re-resolved to a Principal per aggregate on each subscribe
	subscriptions map[string]bool // accessed only from this connection's read loop
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionManager constructs a ConnectionManager. store supplies
// catchup events for newly-subscribed or reconnecting clients; host
// authorizes each subscribe request against the target aggregate's current
// state, since a WS connection's capabilities can change over its lifetime
// (e.g. a subscriber later gets blocked).
func NewConnectionManager(store eventstore.Store, host *actor.Host, writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*connection),
		channels:     make(map[string]map[string]bool),
		store:        store,
		host:         host,
		writeTimeout: writeTimeout,
	}
}

// HandleConnection owns a single WebSocket connection's lifecycle: register,
// greet, read loop, and cleanup. Blocks until the connection closes. user
// identifies the already-authenticated caller (resolved from the WS
// subprotocol bearer token before upgrade); it is re-classified into a
// Principal for each aggregate the connection subscribes to.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn, user authz.User) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &connection{
		id:            connID,
		conn:          conn,
		user:          user,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.register(c)
	defer m.unregister(c)

	m.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": connID,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("api: invalid websocket message", "connection_id", connID, "error", err)
			continue
		}
		m.handleClientMessage(ctx, c, &msg)
	}
}

// Broadcast implements actor.Broadcaster. It is called from an Actor's alarm
// pass once sync projection has advanced, so every event here has already
// been durably projected before any subscriber sees it.
func (m *ConnectionManager) Broadcast(aggregateID string, events []eventstore.StoredEvent) {
	m.channelMu.RLock()
	subs, ok := m.channels[aggregateID]
	if !ok {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	// Snapshot connection pointers under the lock, send outside it, so a
	// slow client's write timeout can't stall register/unregister.
	m.mu.RLock()
	conns := make([]*connection, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	for _, e := range events {
		payload, err := json.Marshal(toEventEnvelope(e))
		if err != nil {
			slog.Error("api: marshal broadcast event", "aggregate_id", aggregateID, "error", err)
			continue
		}
		for _, c := range conns {
			if err := m.sendRaw(c, payload); err != nil {
				slog.Warn("api: broadcast send failed", "connection_id", c.id, "error", err)
			}
		}
	}
}

// ActiveConnections reports the number of live WebSocket connections, used
// by the health endpoint.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) handleClientMessage(ctx context.Context, c *connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.AggregateID == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "aggregate_id is required for subscribe"})
			return
		}
		principal, err := m.host.ResolvePrincipal(ctx, msg.AggregateID, c.user)
		if err != nil {
			m.sendJSON(c, map[string]string{
				"type":         "subscription.error",
				"aggregate_id": msg.AggregateID,
				"message":      "not authorized",
			})
			return
		}
		if _, err := m.host.Query(ctx, msg.AggregateID, principal, authz.Action{Kind: authz.ActionReadLabour}); err != nil {
			m.sendJSON(c, map[string]string{
				"type":         "subscription.error",
				"aggregate_id": msg.AggregateID,
				"message":      "not authorized",
			})
			return
		}
		m.subscribe(c, msg.AggregateID)
		m.sendJSON(c, map[string]string{"type": "subscription.confirmed", "aggregate_id": msg.AggregateID})
		m.sendCatchup(ctx, c, msg.AggregateID, 0)

	case "unsubscribe":
		if msg.AggregateID == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "aggregate_id is required for unsubscribe"})
			return
		}
		m.unsubscribe(c, msg.AggregateID)

	case "catchup":
		if msg.AggregateID == "" || msg.LastSeq == nil {
			m.sendJSON(c, map[string]string{"type": "error", "message": "aggregate_id and last_seq are required for catchup"})
			return
		}
		m.sendCatchup(ctx, c, msg.AggregateID, *msg.LastSeq)

	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (m *ConnectionManager) subscribe(c *connection, aggregateID string) {
	m.channelMu.Lock()
	if _, exists := m.channels[aggregateID]; !exists {
		m.channels[aggregateID] = make(map[string]bool)
	}
	m.channels[aggregateID][c.id] = true
	m.channelMu.Unlock()

	c.subscriptions[aggregateID] = true
}

func (m *ConnectionManager) unsubscribe(c *connection, aggregateID string) {
	m.channelMu.Lock()
	if subs, exists := m.channels[aggregateID]; exists {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(m.channels, aggregateID)
		}
	}
	m.channelMu.Unlock()

	delete(c.subscriptions, aggregateID)
}

func (m *ConnectionManager) sendCatchup(ctx context.Context, c *connection, aggregateID string, lastSeq int64) {
	events, err := m.store.EventsSince(ctx, aggregateID, lastSeq, catchupLimit+1)
	if err != nil {
		slog.Error("api: catchup query failed", "aggregate_id", aggregateID, "error", err)
		return
	}

	hasMore := len(events) > catchupLimit
	if hasMore {
		events = events[:catchupLimit]
	}

	for _, e := range events {
		payload, err := json.Marshal(toEventEnvelope(e))
		if err != nil {
			continue
		}
		if err := m.sendRaw(c, payload); err != nil {
			slog.Warn("api: catchup send failed", "connection_id", c.id, "error", err)
			return
		}
	}

	if hasMore {
		m.sendJSON(c, map[string]interface{}{
			"type":         "catchup.overflow",
			"aggregate_id": aggregateID,
			"has_more":     true,
		})
	}
}

func (m *ConnectionManager) register(c *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.id] = c
}

func (m *ConnectionManager) unregister(c *connection) {
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}

	m.mu.Lock()
	delete(m.connections, c.id)
	m.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (m *ConnectionManager) sendJSON(c *connection, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("api: marshal websocket message", "connection_id", c.id, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("api: send websocket message", "connection_id", c.id, "error", err)
	}
}

func (m *ConnectionManager) sendRaw(c *connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}
