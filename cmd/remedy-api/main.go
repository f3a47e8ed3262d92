package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/config"
	v1 "github.com/remedyhq/remedy/internal/handler/v1"
	"github.com/remedyhq/remedy/internal/repository"
	"github.com/remedyhq/remedy/internal/service"
	"github.com/remedyhq/remedy/internal/source"
	"github.com/remedyhq/remedy/pkg/cache"
	"github.com/remedyhq/remedy/pkg/database"
	"github.com/remedyhq/remedy/pkg/logger"
	"github.com/remedyhq/remedy/pkg/metrics"
	"github.com/remedyhq/remedy/pkg/tracer"
)

const changeChannel = "remedy:routine-changes"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting remedy-api",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	if cfg.Tracing.Enabled {
		tp, err := tracer.Init(cfg.Tracing)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	m := metrics.NewCollector("remedy")

	// Redis backs both the change bus and the snapshot cache; without it
	// the service runs single-instance on in-process fallbacks.
	var (
		bus source.Bus
		kv  cache.KV
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()

		bus = source.NewRedisBus(client, changeChannel, log)
		kv = cache.NewRedisKV(client)
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		bus = source.NewMemoryBus()
		kv = cache.NewMemoryKV()
		log.Info("redis disabled, using in-process bus and cache")
	}

	if err := database.Instrument(db, m); err != nil {
		log.Fatal("failed to instrument database", zap.Error(err))
	}

	routineRepo := repository.NewRoutineRepository(db)
	patientRepo := repository.NewPatientRepository(db)

	src := source.NewStoreSource(routineRepo, bus, cfg.Schedule.PollInterval, log)
	snapshots := service.NewSnapshotWriter(kv, cfg.Schedule.SnapshotTTL, cfg.Schedule.SnapshotBuffer, m, log)

	scheduleSvc := service.NewScheduleService(patientRepo, routineRepo, src, snapshots, m, log)
	routineSvc := service.NewRoutineService(routineRepo, patientRepo, bus, scheduleSvc, m, log)
	patientSvc := service.NewPatientService(patientRepo, m, log)

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule.RolloverSpec, scheduleSvc.Rollover); err != nil {
		log.Fatal("invalid rollover cron spec",
			zap.String("spec", cfg.Schedule.RolloverSpec),
			zap.Error(err),
		)
	}
	c.Start()

	router := v1.NewRouter(cfg, v1.Handlers{
		Patients:  v1.NewPatientHandler(patientSvc),
		Routines:  v1.NewRoutineHandler(routineSvc),
		Schedules: v1.NewScheduleHandler(scheduleSvc),
	}, m, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}

	<-c.Stop().Done()
	scheduleSvc.Close(shutdownCtx)
	snapshots.Shutdown()

	log.Info("service stopped")
}
