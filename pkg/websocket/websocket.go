// Package websocket is the live connection registry: it tracks every open
// client connection per user, maintains room membership, and fans pushed
// events out to rooms without blocking the callers that trigger them.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nabilkencana/Warga-Kita-Backend/pkg/metrics"
)

// Message is the wire envelope for every push event.
type Message struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
	From      string      `json:"from,omitempty"`
	Room      string      `json:"room,omitempty"`
}

// Connection is one live client channel. A user may hold several at once
// (multiple devices or tabs).
type Connection struct {
	ID       string
	UserID   string
	RT       string
	Conn     wsConn
	Send     chan []byte
	Hub      *Hub
	LastPing time.Time
	IsAlive  bool
	Rooms    map[string]bool
	mu       sync.RWMutex
}

// Hub owns all connection state. Ingress (register/unregister) and targeted
// pushes are serialized through the run loop; broadcast-all rides the shard
// worker pool so one slow consumer cannot stall the rest.
type Hub struct {
	connections map[string]*Connection
	// userID -> set of connection IDs; absence of a key means offline.
	userConnections map[string]map[string]bool
	// room name -> set of connection IDs.
	roomConnections map[string]map[string]bool

	broadcast  chan *Message
	register   chan *Connection
	unregister chan *Connection

	connectionCount int64
	config          *Config
	mu              sync.RWMutex
	ctx             context.Context
	cancel          context.CancelFunc

	// shards reduce contention on broadcast-all fanout
	shardCount int
	shardConns []map[string]*Connection
	shardLocks []sync.RWMutex

	broadcastJobs chan broadcastJob
}

const _broadcastAll = iota

type broadcastJob struct {
	kind  int
	shard int
	data  []byte
}

// NewHub creates and starts a hub.
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		connections:     make(map[string]*Connection),
		userConnections: make(map[string]map[string]bool),
		roomConnections: make(map[string]map[string]bool),
		broadcast:       make(chan *Message, config.MessageQueueSize),
		register:        make(chan *Connection, 1000),
		unregister:      make(chan *Connection, 1000),
		config:          config,
		ctx:             ctx,
		cancel:          cancel,
	}

	if hub.config.ShardCount <= 0 {
		hub.config.ShardCount = 1
	}
	hub.shardCount = hub.config.ShardCount
	hub.shardConns = make([]map[string]*Connection, hub.shardCount)
	hub.shardLocks = make([]sync.RWMutex, hub.shardCount)
	for i := 0; i < hub.shardCount; i++ {
		hub.shardConns[i] = make(map[string]*Connection)
	}

	if hub.config.BroadcastWorkerCount <= 0 {
		hub.config.BroadcastWorkerCount = 1
	}
	hub.broadcastJobs = make(chan broadcastJob, hub.config.MessageQueueSize)
	for i := 0; i < hub.config.BroadcastWorkerCount; i++ {
		go hub.broadcastWorker()
	}

	go hub.run()
	return hub
}

func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case conn := <-h.register:
			h.registerConnection(conn)
		case conn := <-h.unregister:
			h.unregisterConnection(conn)
		case message := <-h.broadcast:
			if message.Timestamp == 0 {
				message.Timestamp = time.Now().Unix()
			}
			data, err := json.Marshal(message)
			if err != nil {
				logrus.Errorf("failed to marshal push message: %v", err)
				continue
			}
			if message.Room != "" {
				h.sendToRoom(message.Room, data)
			} else {
				h.enqueueBroadcastAll(data)
			}
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// PushToRoom queues an event for every connection in a room. It never blocks
// on slow clients; a full queue is reported as an error so callers can count
// the failure and move on.
func (h *Hub) PushToRoom(room, event string, data interface{}) error {
	if h.ctx.Err() != nil {
		return fmt.Errorf("hub closed")
	}
	msg := &Message{Event: event, Data: data, Room: room}
	select {
	case h.broadcast <- msg:
		return nil
	default:
		return fmt.Errorf("push queue full, dropping %s for room %s", event, room)
	}
}

// PushToUser targets all of one user's connections via their personal room.
func (h *Hub) PushToUser(userID, event string, data interface{}) error {
	return h.PushToRoom(UserRoom(userID), event, data)
}

// Broadcast queues an event for every live connection.
func (h *Hub) Broadcast(event string, data interface{}) error {
	if h.ctx.Err() != nil {
		return fmt.Errorf("hub closed")
	}
	select {
	case h.broadcast <- &Message{Event: event, Data: data}:
		return nil
	default:
		return fmt.Errorf("push queue full, dropping broadcast %s", event)
	}
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if atomic.LoadInt64(&h.connectionCount) >= int64(h.config.MaxConnections) {
		if conn.Conn != nil {
			conn.Conn.Close()
		}
		logrus.Warnf("connection limit reached: %d", h.config.MaxConnections)
		return
	}

	h.connections[conn.ID] = conn
	atomic.AddInt64(&h.connectionCount, 1)
	metrics.LiveConnections.Inc()

	sh := h.shardIndex(conn.ID)
	h.shardLocks[sh].Lock()
	h.shardConns[sh][conn.ID] = conn
	h.shardLocks[sh].Unlock()

	if conn.UserID != "" {
		if h.userConnections[conn.UserID] == nil {
			h.userConnections[conn.UserID] = make(map[string]bool)
		}
		h.userConnections[conn.UserID][conn.ID] = true
	}

	for room := range conn.Rooms {
		h.addToRoomLocked(room, conn.ID)
	}

	logrus.Infof("ws connection registered: %s user=%s total=%d",
		conn.ID, conn.UserID, atomic.LoadInt64(&h.connectionCount))
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[conn.ID]; !exists {
		return
	}
	delete(h.connections, conn.ID)
	atomic.AddInt64(&h.connectionCount, -1)
	metrics.LiveConnections.Dec()

	sh := h.shardIndex(conn.ID)
	h.shardLocks[sh].Lock()
	delete(h.shardConns[sh], conn.ID)
	h.shardLocks[sh].Unlock()

	// Dropping the last connection removes the user entry entirely: no
	// entry is how "offline" is represented.
	if conn.UserID != "" && h.userConnections[conn.UserID] != nil {
		delete(h.userConnections[conn.UserID], conn.ID)
		if len(h.userConnections[conn.UserID]) == 0 {
			delete(h.userConnections, conn.UserID)
		}
	}

	for room := range conn.Rooms {
		h.removeFromRoomLocked(room, conn.ID)
	}

	close(conn.Send)
	logrus.Infof("ws connection unregistered: %s total=%d",
		conn.ID, atomic.LoadInt64(&h.connectionCount))
}

func (h *Hub) addToRoomLocked(room, connID string) {
	if h.roomConnections[room] == nil {
		h.roomConnections[room] = make(map[string]bool)
	}
	h.roomConnections[room][connID] = true
}

func (h *Hub) removeFromRoomLocked(room, connID string) {
	if h.roomConnections[room] != nil {
		delete(h.roomConnections[room], connID)
		if len(h.roomConnections[room]) == 0 {
			delete(h.roomConnections, room)
		}
	}
}

func (h *Hub) sendToRoom(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	connIDs, exists := h.roomConnections[room]
	if !exists {
		return
	}
	for connID := range connIDs {
		if conn, ok := h.connections[connID]; ok && conn.IsAlive {
			h.trySend(conn, data, func() {
				logrus.Warnf("send buffer full for connection %s in room %s", connID, room)
			})
		}
	}
}

func (h *Hub) enqueueBroadcastAll(data []byte) {
	for i := 0; i < h.shardCount; i++ {
		select {
		case h.broadcastJobs <- broadcastJob{kind: _broadcastAll, shard: i, data: data}:
		default:
			logrus.Warnf("broadcast job queue full, message dropped")
		}
	}
}

func (h *Hub) broadcastWorker() {
	for job := range h.broadcastJobs {
		switch job.kind {
		case _broadcastAll:
			h.shardLocks[job.shard].RLock()
			for _, conn := range h.shardConns[job.shard] {
				if conn.IsAlive {
					h.trySend(conn, job.data, func() {
						logrus.Debugf("send buffer full for connection %s, dropped", conn.ID)
					})
				}
			}
			h.shardLocks[job.shard].RUnlock()
		}
	}
}

// trySend applies the backpressure policy.
func (h *Hub) trySend(conn *Connection, data []byte, onDrop func()) {
	if h.config.DropOnFull {
		select {
		case conn.Send <- data:
		default:
			onDrop()
			if h.config.CloseOnBackpressure && conn.Conn != nil {
				conn.Conn.Close()
			}
		}
		return
	}
	timeout := h.config.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case conn.Send <- data:
	case <-time.After(timeout):
		onDrop()
		if h.config.CloseOnBackpressure && conn.Conn != nil {
			conn.Conn.Close()
		}
	}
}

func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		if now.Sub(conn.LastPing) > h.config.ConnectionTimeout {
			logrus.Warnf("connection %s heartbeat timeout, closing", conn.ID)
			conn.IsAlive = false
			if conn.Conn != nil {
				conn.Conn.Close()
			}
		}
	}
}

func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// GetUserConnections returns how many live connections a user holds.
func (h *Hub) GetUserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConnections[userID])
}

// IsUserOnline reports whether any connection exists for the user.
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.userConnections[userID]
	return ok
}

// GetRoomConnections returns the member count of a room.
func (h *Hub) GetRoomConnections(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.roomConnections[room])
}

// ConnectedUsers returns connection counts keyed by user id.
func (h *Hub) ConnectedUsers() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.userConnections))
	for userID, conns := range h.userConnections {
		out[userID] = len(conns)
	}
	return out
}

// Close shuts the hub down and drops every connection.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	for _, conn := range h.connections {
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}
	h.mu.Unlock()

	logrus.Info("websocket hub closed")
}

func (h *Hub) shardIndex(id string) int {
	if h.shardCount <= 1 {
		return 0
	}
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(id))
	return int(hasher.Sum32() % uint32(h.shardCount))
}
