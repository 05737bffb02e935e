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

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/crewsync-api/api/swagger"
	"github.com/noah-isme/crewsync-api/internal/app"
	"github.com/noah-isme/crewsync-api/internal/handler"
	"github.com/noah-isme/crewsync-api/internal/middleware"
	"github.com/noah-isme/crewsync-api/pkg/config"
	"github.com/noah-isme/crewsync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/crewsync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/crewsync-api/pkg/middleware/requestid"
)

// @title CrewSync API
// @version 1.0.0
// @description Volunteer coordination: events, shifts and assignments.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.Build(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer container.Close(context.Background())

	container.Queue.Start(ctx)
	defer container.Queue.Stop()

	checks := make(map[string]handler.ReadinessCheck)
	for name, check := range container.ReadinessChecks() {
		checks[name] = check
	}
	metricsHandler := handler.NewMetricsHandler(container.Metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(container.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.RouterDeps{
		Auth:        middleware.JWT(container.Auth),
		AuditLog:    container.Audit,
		Logger:      logr,
		Events:      handler.NewEventHandler(container.Events, container.Access),
		Assignments: handler.NewAssignmentHandler(container.Assignments, container.Access, container.Worker, logr),
		Stats:       handler.NewStatsHandler(container.Stats, container.Access),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Assignments.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
