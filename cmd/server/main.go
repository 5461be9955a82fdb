package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/handler"
	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/internal/service"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/cache"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/config"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/scheduler"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/util"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Mode)

	db, err := util.OpenDatabase(&gorm.Config{}, cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", zap.Error(err))
		return
	}

	appCache, err := cache.NewCache(cfg.Cache)
	if err != nil {
		logger.Error("failed to init cache", zap.Error(err))
		return
	}
	defer appCache.Close()

	hub := websocket.NewHub(websocket.LoadConfigFromEnv())
	defer hub.Close()

	notifications := service.NewNotificationService(db, hub, appCache)
	dispatch := service.NewDispatchService(db, notifications)
	alarm := service.NewAlarmService(db, notifications, dispatch, hub)
	emergencies := service.NewEmergencyService(db, notifications, alarm)
	securities := service.NewSecurityService(db, hub)

	sched := scheduler.New(time.Local)
	_, err = sched.Cron(cfg.NotificationPurgeCron, scheduler.FuncJob(func(ctx context.Context) {
		if _, err := notifications.PurgeExpired(ctx); err != nil {
			logger.Error("notification purge failed", zap.Error(err))
		}
	}))
	if err != nil {
		logger.Error("failed to schedule notification purge", zap.Error(err))
		return
	}
	sched.Start()
	defer sched.Stop()

	router := handler.NewRouter(handler.Deps{
		Emergencies:   emergencies,
		Securities:    securities,
		Notifications: notifications,
		Hub:           hub,
		SOSRate:       cfg.SOSRate,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
