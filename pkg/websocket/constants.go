package websocket

import "fmt"

// Server-emitted events.
const (
	EventConnected        = "connected"
	EventNewNotification  = "new_notification"
	EventEmergencyNew     = "emergency:new"
	EventEmergencyAlert   = "emergency:alert"
	EventSecurityOnline   = "security:online"
	EventSecurityLocation = "security:location:update"
	EventPong             = "pong"
	EventError            = "error"
)

// Client-emitted events.
const (
	MessagePing             = "ping"
	MessageSecurityJoin     = "security:join"
	MessageSecurityLocation = "security:location"
)

// Well-known rooms. Every connection joins its personal room and "general";
// responders join the security room explicitly.
const (
	RoomGeneral  = "general"
	RoomSecurity = "security-room"
)

// UserRoom is the personal room every connection of one user belongs to, so
// pushing to it reaches all of that user's devices.
func UserRoom(userID string) string { return "user_" + userID }

// RTRoom groups connections by neighborhood unit.
func RTRoom(rt string) string { return "rt_" + rt }

func SecurityRoom(securityID uint) string { return fmt.Sprintf("security:%d", securityID) }

// Default configuration values.
const (
	DefaultMaxConnections    = 100000
	DefaultHeartbeatInterval = 30
	DefaultConnectionTimeout = 60
	DefaultMessageBufferSize = 256
	DefaultMessageQueueSize  = 1000
	DefaultReadBufferSize    = 1024
	DefaultWriteBufferSize   = 1024
	DefaultMaxMessageSize    = 4096
	DefaultShardCount        = 16
	DefaultBroadcastWorkers  = 32
)

// Environment configuration keys.
const (
	EnvWebSocketMaxConnections    = "WEBSOCKET_MAX_CONNECTIONS"
	EnvWebSocketHeartbeatInterval = "WEBSOCKET_HEARTBEAT_INTERVAL"
	EnvWebSocketConnectionTimeout = "WEBSOCKET_CONNECTION_TIMEOUT"
	EnvWebSocketMessageBufferSize = "WEBSOCKET_MESSAGE_BUFFER_SIZE"
	EnvWebSocketMessageQueueSize  = "WEBSOCKET_MESSAGE_QUEUE_SIZE"
	EnvWebSocketShardCount        = "WEBSOCKET_SHARD_COUNT"
	EnvWebSocketBroadcastWorkers  = "WEBSOCKET_BROADCAST_WORKERS"
	EnvWebSocketDropOnFull        = "WEBSOCKET_DROP_ON_FULL"
	EnvWebSocketSendTimeoutMs     = "WEBSOCKET_SEND_TIMEOUT_MS"
	EnvWebSocketMaxMessageSize    = "WEBSOCKET_MAX_MESSAGE_SIZE"
)

// Route paths.
const (
	RouteWebSocket       = "/ws/notifications"
	RouteWebSocketStats  = "/ws/stats"
	RouteWebSocketHealth = "/ws/health"
)
