package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"audiofeedback/internal/analysis"
	"audiofeedback/internal/api"
	"audiofeedback/internal/audio"
	"audiofeedback/internal/config"
	"audiofeedback/internal/redis"
	"audiofeedback/internal/service/history"
	"audiofeedback/internal/storage"
	"audiofeedback/internal/uploads"
	"audiofeedback/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgPath := pflag.String("config", os.Getenv("AUDIOFEEDBACK_CONFIG"), "path to a JSON or YAML config file")
	port := pflag.Int("port", 0, "listen port (overrides PORT and the config file)")
	host := pflag.String("host", "", "listen host (overrides the config file)")
	pflag.Parse()

	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("AUDIOFEEDBACK_DEBUG"), "1") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *cfgPath, *host, *port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, cfgPath, host string, port int) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.BasicConfig.Host = host
	}
	if port > 0 {
		cfg.BasicConfig.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hist *history.Service
	if cfg.Database.Driver != "" {
		db, err := storage.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
			return err
		}
		if hist, err = history.NewService(db, cfg.Database.Driver); err != nil {
			return err
		}
		logger.Info("analysis history enabled", "driver", cfg.Database.Driver)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		if rdb, err = redis.NewRedisClient(cfg.Redis); err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info("result cache enabled", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
	}

	decoder := audio.NewDecoder(cfg.Analysis.FFmpegBin, cfg.Analysis.FFprobeBin)
	manager := worker.NewManager(analysis.NewAnalyzer(decoder), worker.DispatcherConfig{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Second,
	}, logger)
	defer manager.Close()
	if rdb != nil {
		manager.EnableCache(rdb, time.Duration(cfg.Redis.ResultTTL)*time.Minute)
	}

	store, err := uploads.NewStore(cfg.BasicConfig.TempDir, cfg.BasicConfig.MaxUploadBytes, logger)
	if err != nil {
		return err
	}
	store.StartSweeper(ctx,
		time.Duration(cfg.BasicConfig.TempSweepInterval)*time.Minute,
		time.Duration(cfg.BasicConfig.TempFileTTL)*time.Minute,
	)

	handler := api.NewHandler(manager, store, cfg.BasicConfig.MaxUploadBytes, logger)
	if hist != nil {
		handler.WithHistory(hist)
		handler.AddHealthCheck("database", hist)
	}
	if rdb != nil {
		handler.AddHealthCheck("redis", rdb)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:        cfg.Address(),
		Handler:     router,
		IdleTimeout: time.Duration(cfg.BasicConfig.KeepAliveSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "upload_dir", store.Dir(), "max_workers", cfg.BasicConfig.MaxWorkers)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
