package websocket

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// wsConn is the slice of *websocket.Conn the hub needs; tests substitute it.
type wsConn interface {
	Close() error
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	NextWriter(messageType int) (io.WriteCloser, error)
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// Origin is enforced by the reverse proxy in production.
			return true
		},
		EnableCompression: cfg.EnableCompression,
	}
}

// HandleWebSocket upgrades the request and registers the connection. Every
// connection joins its personal room and "general"; an rt tag also joins the
// neighborhood room.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID, rt string) {
	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}

	connection := &Connection{
		ID:       "conn_" + uuid.NewString(),
		UserID:   userID,
		RT:       rt,
		Conn:     conn,
		Send:     make(chan []byte, hub.config.MessageBufferSize),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
		Rooms:    map[string]bool{RoomGeneral: true},
	}
	if userID != "" {
		connection.Rooms[UserRoom(userID)] = true
	}
	if rt != "" {
		connection.Rooms[RTRoom(rt)] = true
	}

	hub.register <- connection

	go connection.writePump()
	go connection.readPump()

	connection.sendEvent(EventConnected, map[string]interface{}{
		"message":   "websocket connected successfully",
		"userId":    userID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(int64(c.Hub.config.MaxMessageSize))
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("websocket read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Connection) writePump() {
	interval := c.Hub.config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			// drain queued messages into the same frame
			n := len(c.Send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches a client frame.
func (c *Connection) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		logrus.Errorf("failed to parse client message: %v", err)
		return
	}
	msg.From = c.UserID

	switch msg.Event {
	case MessagePing:
		c.handlePing()
	case MessageSecurityJoin:
		c.handleSecurityJoin(msg)
	case MessageSecurityLocation:
		c.handleSecurityLocation(msg)
	default:
		logrus.Warnf("unknown client event: %s", msg.Event)
	}
}

func (c *Connection) handlePing() {
	c.mu.Lock()
	c.LastPing = time.Now()
	c.mu.Unlock()

	c.sendEvent(EventPong, nil)
}

// handleSecurityJoin puts a responder connection into the security room and
// announces it there.
func (c *Connection) handleSecurityJoin(msg Message) {
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		logrus.Warnf("invalid security:join payload: %v", msg.Data)
		return
	}
	securityID, ok := data["securityId"].(float64)
	if !ok {
		logrus.Warnf("security:join without securityId")
		return
	}

	c.JoinRoom(RoomSecurity)
	c.JoinRoom(SecurityRoom(uint(securityID)))

	_ = c.Hub.PushToRoom(RoomSecurity, EventSecurityOnline, map[string]interface{}{
		"securityId": uint(securityID),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	logrus.Infof("security %d joined security room via %s", uint(securityID), c.ID)
}

// handleSecurityLocation rebroadcasts a responder position to the security
// room; the durable roster row is updated over HTTP, not here.
func (c *Connection) handleSecurityLocation(msg Message) {
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		logrus.Warnf("invalid security:location payload: %v", msg.Data)
		return
	}

	_ = c.Hub.PushToRoom(RoomSecurity, EventSecurityLocation, map[string]interface{}{
		"securityId": data["securityId"],
		"latitude":   data["latitude"],
		"longitude":  data["longitude"],
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Connection) sendEvent(event string, data interface{}) {
	payload, err := json.Marshal(&Message{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
		logrus.Warnf("send buffer full for connection %s", c.ID)
	}
}

// JoinRoom adds the connection to a room.
func (c *Connection) JoinRoom(room string) {
	c.mu.Lock()
	c.Rooms[room] = true
	c.mu.Unlock()

	c.Hub.mu.Lock()
	c.Hub.addToRoomLocked(room, c.ID)
	c.Hub.mu.Unlock()
}

// LeaveRoom removes the connection from a room.
func (c *Connection) LeaveRoom(room string) {
	c.mu.Lock()
	delete(c.Rooms, room)
	c.mu.Unlock()

	c.Hub.mu.Lock()
	c.Hub.removeFromRoomLocked(room, c.ID)
	c.Hub.mu.Unlock()
}

// InRoom reports room membership.
func (c *Connection) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rooms[room]
}

// GetRooms lists the rooms the connection belongs to.
func (c *Connection) GetRooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.Rooms))
	for room := range c.Rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
