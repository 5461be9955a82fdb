package websocket

import (
	"time"

	"github.com/nabilkencana/Warga-Kita-Backend/pkg/util"
)

// Config controls hub sizing and backpressure behavior.
type Config struct {
	MaxConnections    int
	HeartbeatInterval time.Duration
	ConnectionTimeout time.Duration
	MessageBufferSize int
	MessageQueueSize  int
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int
	EnableCompression bool
	CompressionLevel  int

	ShardCount           int
	BroadcastWorkerCount int

	// DropOnFull drops a frame instead of waiting when a connection's send
	// buffer is full. CloseOnBackpressure additionally evicts the slow
	// connection.
	DropOnFull          bool
	CloseOnBackpressure bool
	SendTimeout         time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MaxConnections:       DefaultMaxConnections,
		HeartbeatInterval:    DefaultHeartbeatInterval * time.Second,
		ConnectionTimeout:    DefaultConnectionTimeout * time.Second,
		MessageBufferSize:    DefaultMessageBufferSize,
		MessageQueueSize:     DefaultMessageQueueSize,
		ReadBufferSize:       DefaultReadBufferSize,
		WriteBufferSize:      DefaultWriteBufferSize,
		MaxMessageSize:       DefaultMaxMessageSize,
		EnableCompression:    false,
		ShardCount:           DefaultShardCount,
		BroadcastWorkerCount: DefaultBroadcastWorkers,
		DropOnFull:           true,
		SendTimeout:          100 * time.Millisecond,
	}
}

// LoadConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset keys.
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.MaxConnections = int(util.GetIntEnvDefault(EnvWebSocketMaxConnections, int64(cfg.MaxConnections)))
	cfg.HeartbeatInterval = time.Duration(util.GetIntEnvDefault(EnvWebSocketHeartbeatInterval, DefaultHeartbeatInterval)) * time.Second
	cfg.ConnectionTimeout = time.Duration(util.GetIntEnvDefault(EnvWebSocketConnectionTimeout, DefaultConnectionTimeout)) * time.Second
	cfg.MessageBufferSize = int(util.GetIntEnvDefault(EnvWebSocketMessageBufferSize, int64(cfg.MessageBufferSize)))
	cfg.MessageQueueSize = int(util.GetIntEnvDefault(EnvWebSocketMessageQueueSize, int64(cfg.MessageQueueSize)))
	cfg.MaxMessageSize = int(util.GetIntEnvDefault(EnvWebSocketMaxMessageSize, int64(cfg.MaxMessageSize)))
	cfg.ShardCount = int(util.GetIntEnvDefault(EnvWebSocketShardCount, int64(cfg.ShardCount)))
	cfg.BroadcastWorkerCount = int(util.GetIntEnvDefault(EnvWebSocketBroadcastWorkers, int64(cfg.BroadcastWorkerCount)))
	cfg.DropOnFull = util.GetBoolEnvDefault(EnvWebSocketDropOnFull, cfg.DropOnFull)
	cfg.SendTimeout = time.Duration(util.GetIntEnvDefault(EnvWebSocketSendTimeoutMs, cfg.SendTimeout.Milliseconds())) * time.Millisecond

	return ValidateConfig(cfg)
}

// ValidateConfig clamps nonsensical values back to defaults.
func ValidateConfig(cfg *Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval * time.Second
	}
	if cfg.ConnectionTimeout <= cfg.HeartbeatInterval {
		cfg.ConnectionTimeout = 2 * cfg.HeartbeatInterval
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = DefaultMessageBufferSize
	}
	if cfg.MessageQueueSize <= 0 {
		cfg.MessageQueueSize = DefaultMessageQueueSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = DefaultWriteBufferSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = DefaultShardCount
	}
	if cfg.BroadcastWorkerCount <= 0 {
		cfg.BroadcastWorkerCount = DefaultBroadcastWorkers
	}
	return cfg
}
