// Command timetable-gateway serves the HTTP API in front of the
// timetable-generation pipeline: submit a course catalogue, poll a run's
// status, and export its rendered timetables.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusops/timetable-engine/internal/handler"
	internalmiddleware "github.com/campusops/timetable-engine/internal/middleware"
	"github.com/campusops/timetable-engine/internal/pipeline"
	"github.com/campusops/timetable-engine/internal/repository"
	"github.com/campusops/timetable-engine/internal/service"
	"github.com/campusops/timetable-engine/pkg/cache"
	"github.com/campusops/timetable-engine/pkg/config"
	"github.com/campusops/timetable-engine/pkg/database"
	"github.com/campusops/timetable-engine/pkg/jobs"
	"github.com/campusops/timetable-engine/pkg/logger"
	corsmiddleware "github.com/campusops/timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/timetable-engine/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logr.Sync()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	cacheEnabled := err == nil
	if err != nil {
		logr.Warn("connect redis, idempotency cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 10*time.Minute, logr, cacheEnabled)

	runRepo := repository.NewScheduleRunRepository(db)

	solverOpts := pipeline.DefaultOptions()
	if cfg.Solver.MaxHoursPerDay > 0 {
		solverOpts.Model.MaxDailyLoad = cfg.Solver.MaxHoursPerDay
	}
	if cfg.Solver.MaxConsecutiveSlots > 0 {
		solverOpts.Model.MaxConsecutiveSlots = cfg.Solver.MaxConsecutiveSlots
	}
	if len(cfg.Solver.MorningSlots) > 0 {
		solverOpts.Model.MorningSlots = cfg.Solver.MorningSlots
	}
	if cfg.Solver.MorningOnlyCourseCode != "" {
		solverOpts.Derive.MorningOnlyCourseCode = cfg.Solver.MorningOnlyCourseCode
	}
	if cfg.Solver.OpenElectiveMarker != "" {
		solverOpts.Derive.OpenElectiveMarker = cfg.Solver.OpenElectiveMarker
	}
	if cfg.Solver.TimeLimit > 0 {
		solverOpts.TimeLimit = cfg.Solver.TimeLimit
	}
	if cfg.Solver.BatchSize > 0 {
		solverOpts.BatchSize = cfg.Solver.BatchSize
	}
	solverOpts.Logger = logr

	queueCfg := jobs.QueueConfig{
		Workers:    cfg.Queue.Workers,
		BufferSize: cfg.Queue.BufferSize,
		MaxRetries: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		Logger:     logr,
	}

	// Catalogues larger than this many rows dispatch to the background
	// queue instead of solving inline on the request goroutine.
	const asyncThreshold = 50

	// runSvc needs the queue's handler before the queue can be built, and
	// the queue before the service can be constructed; wire the service
	// first with a nil queue reference, then patch it in.
	runSvc := service.NewScheduleRunService(runRepo, cacheSvc, metricsSvc, nil, logr, solverOpts, asyncThreshold)
	queue := jobs.NewQueue("schedule-runs", runSvc.QueueHandler, queueCfg)
	runSvc.SetQueue(queue)

	queueCtx, cancelQueue := context.WithCancel(context.Background())
	queue.Start(queueCtx)
	defer func() {
		cancelQueue()
		queue.Stop()
	}()

	runHandler := handler.NewScheduleRunHandler(runSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		secured := api.Group("")
		secured.Use(internalmiddleware.BearerToken(cfg.Auth.APIKeyHash))
		secured.POST("/schedule-runs", runHandler.Create)

		api.GET("/schedule-runs/:id", runHandler.Get)
		api.GET("/schedule-runs/:id/export", runHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("timetable-gateway listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
