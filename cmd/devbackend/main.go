package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/config"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/internal/devbackend"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/logger"
	"github.com/tzuchitechturkey/readinggroup-website-sub001/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)
	if logger.LevelString() != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx := context.Background()
	deps, cleanup, err := devbackend.Build(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to initialize: %v", err)
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)
	deps.Gatherer = reg

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      devbackend.NewRouter(*deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("devbackend listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
