package config

import (
	"log"
	"os"
	"time"

	"github.com/nabilkencana/Warga-Kita-Backend/pkg/cache"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/util"
)

type Config struct {
	Env       string `env:"APP_ENV"`
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	APIPrefix string `env:"API_PREFIX"`
	DBDriver  string `env:"DB_DRIVER"`
	DSN       string `env:"DSN"`

	Log   logger.LogConfig
	Cache cache.Config

	// rate limit applied to the SOS endpoint, ulule format e.g. "10-M"
	SOSRate string `env:"SOS_RATE_LIMIT"`

	// cron spec for the expired-notification sweep
	NotificationPurgeCron string `env:"NOTIFICATION_PURGE_CRON"`
}

var GlobalConfig *Config

func Load() error {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	GlobalConfig = &Config{
		Env:       env,
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnvDefault("MODE", "debug"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		DBDriver:  util.GetEnv("DB_DRIVER"),
		DSN:       util.GetEnv("DSN"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:     util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
				Password: util.GetEnv("REDIS_PASSWORD"),
				DB:       int(util.GetIntEnv("REDIS_DB")),
				PoolSize: int(util.GetIntEnv("REDIS_POOL_SIZE")),
			},
			Local: cache.LocalConfig{
				MaxSize:           int(util.GetIntEnv("LOCAL_CACHE_MAX_SIZE")),
				DefaultExpiration: time.Duration(util.GetIntEnv("LOCAL_CACHE_DEFAULT_EXPIRATION")) * time.Second,
				CleanupInterval:   time.Duration(util.GetIntEnv("LOCAL_CACHE_CLEANUP_INTERVAL")) * time.Second,
			},
		},
		SOSRate:               util.GetEnvDefault("SOS_RATE_LIMIT", "10-M"),
		NotificationPurgeCron: util.GetEnvDefault("NOTIFICATION_PURGE_CRON", "0 3 * * *"),
	}
	return nil
}
