package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"notification-relay/internal/auth"
	"notification-relay/internal/channel"
	"notification-relay/internal/config"
	"notification-relay/internal/gateway"
	"notification-relay/internal/handlers"
	"notification-relay/internal/logger"
	"notification-relay/internal/registry"
	"notification-relay/internal/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logr.Sync()

	if len(cfg.AllowedOrigins) == 0 {
		logr.Warn("no allowed origins configured, accepting connections from any origin")
	}

	verifier := auth.NewVerifier(cfg.TokenSecret)
	reg := registry.New(logr)
	channels := channel.NewManager(logr)
	gw := gateway.New(cfg, verifier, reg, channels, logr)

	router := routes.Setup(routes.Deps{
		Gateway:        gw,
		Notify:         handlers.NewNotifyHandler(cfg.IngressSecret, channels, logr),
		Health:         handlers.NewHealthHandler(reg),
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            logr,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("relay listening",
			zap.Int("port", cfg.Port),
			zap.Duration("ping_interval", cfg.PingInterval),
			zap.Duration("pong_timeout", cfg.PongTimeout))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	// Tell connected clients we are going away, then drain the HTTP server.
	gw.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("shutdown incomplete", zap.Error(err))
	}
	logr.Info("relay stopped")
}
