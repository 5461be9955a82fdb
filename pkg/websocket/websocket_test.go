package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = time.Second
	cfg.ConnectionTimeout = 5 * time.Second
	return ValidateConfig(cfg)
}

func newTestConnection(hub *Hub, id, userID, rt string) *Connection {
	rooms := map[string]bool{RoomGeneral: true}
	if userID != "" {
		rooms[UserRoom(userID)] = true
	}
	if rt != "" {
		rooms[RTRoom(rt)] = true
	}
	return &Connection{
		ID:       id,
		UserID:   userID,
		RT:       rt,
		Send:     make(chan []byte, 16),
		Hub:      hub,
		LastPing: time.Now(),
		IsAlive:  true,
		Rooms:    rooms,
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()

	phone := newTestConnection(hub, "c1", "7", "")
	laptop := newTestConnection(hub, "c2", "7", "")

	hub.register <- phone
	hub.register <- laptop
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int64(2), hub.GetConnectionCount())
	assert.Equal(t, 2, hub.GetUserConnections("7"))
	assert.True(t, hub.IsUserOnline("7"))

	hub.unregister <- phone
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, hub.GetUserConnections("7"))
	assert.True(t, hub.IsUserOnline("7"))

	hub.unregister <- laptop
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, hub.GetUserConnections("7"))
	assert.False(t, hub.IsUserOnline("7"))
	assert.Equal(t, int64(0), hub.GetConnectionCount())
}

func TestRoomMembership(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()

	conn := newTestConnection(hub, "c1", "3", "05")
	hub.register <- conn
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, hub.GetRoomConnections(RoomGeneral))
	assert.Equal(t, 1, hub.GetRoomConnections(UserRoom("3")))
	assert.Equal(t, 1, hub.GetRoomConnections(RTRoom("05")))
	assert.Equal(t, 0, hub.GetRoomConnections(RoomSecurity))

	conn.JoinRoom(RoomSecurity)
	assert.True(t, conn.InRoom(RoomSecurity))
	assert.Equal(t, 1, hub.GetRoomConnections(RoomSecurity))

	conn.LeaveRoom(RoomSecurity)
	assert.False(t, conn.InRoom(RoomSecurity))
	assert.Equal(t, 0, hub.GetRoomConnections(RoomSecurity))

	hub.unregister <- conn
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.GetRoomConnections(UserRoom("3")))
}

func TestPushToUser(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()

	target := newTestConnection(hub, "c1", "9", "")
	other := newTestConnection(hub, "c2", "12", "")
	hub.register <- target
	hub.register <- other
	time.Sleep(50 * time.Millisecond)

	err := hub.PushToUser("9", EventNewNotification, map[string]interface{}{"title": "Water outage"})
	require.NoError(t, err)

	select {
	case raw := <-target.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, EventNewNotification, msg.Event)
		assert.NotZero(t, msg.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("expected a push on the target connection")
	}

	select {
	case raw := <-other.Send:
		t.Fatalf("unexpected push to other user: %s", raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	hub := NewHub(testConfig())
	defer hub.Close()

	conns := make([]*Connection, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		conn := newTestConnection(hub, id, "user-"+id, "")
		conns = append(conns, conn)
		hub.register <- conn
	}
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, hub.Broadcast(EventEmergencyNew, map[string]interface{}{"id": 1}))

	for _, conn := range conns {
		select {
		case raw := <-conn.Send:
			var msg Message
			require.NoError(t, json.Unmarshal(raw, &msg))
			assert.Equal(t, EventEmergencyNew, msg.Event)
		case <-time.After(time.Second):
			t.Fatalf("connection %s missed the broadcast", conn.ID)
		}
	}
}

func TestPushAfterClose(t *testing.T) {
	hub := NewHub(testConfig())
	hub.Close()
	time.Sleep(20 * time.Millisecond)

	assert.Error(t, hub.PushToRoom(RoomSecurity, EventEmergencyAlert, nil))
	assert.Error(t, hub.Broadcast(EventEmergencyNew, nil))
}

func TestDropOnFullDoesNotBlock(t *testing.T) {
	cfg := testConfig()
	cfg.DropOnFull = true
	hub := NewHub(cfg)
	defer hub.Close()

	slow := newTestConnection(hub, "slow", "1", "")
	slow.Send = make(chan []byte, 1)
	hub.register <- slow
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = hub.PushToUser("1", EventNewNotification, i)
		}
		time.Sleep(100 * time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("push blocked on a slow consumer")
	}
	assert.Len(t, slow.Send, 1)
}

func TestStatsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub(testConfig())
	defer hub.Close()

	conn := newTestConnection(hub, "c1", "4", "")
	hub.register <- conn
	time.Sleep(50 * time.Millisecond)

	router := gin.New()
	NewHandler(hub).RegisterRoutes(router)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, RouteWebSocketStats, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["connections"])
	assert.EqualValues(t, 1, body["users"])
}
