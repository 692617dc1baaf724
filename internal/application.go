package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/botarena/internal/config"
	"github.com/rocketscienceinc/botarena/internal/repository"
	"github.com/rocketscienceinc/botarena/internal/repository/storage"
	"github.com/rocketscienceinc/botarena/internal/sandbox"
	"github.com/rocketscienceinc/botarena/internal/usecase"
	"github.com/rocketscienceinc/botarena/internal/worker"
	"github.com/rocketscienceinc/botarena/transport/rest"
)

const shutdownTimeout = 10 * time.Second

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	mirror, closeMirror, err := initMirror(ctx, log, conf)
	if err != nil {
		return err
	}
	defer closeMirror()

	engine := sandbox.NewEngine(ctx, logger, sandbox.Config{
		CallTimeout:      conf.Sandbox.CallTimeout,
		MemoryLimitPages: conf.Sandbox.MemoryLimitPages,
		AllocExports:     conf.Sandbox.AllocExports,
		DecideExports:    conf.Sandbox.DecideExports,
	})
	defer func() {
		if err = engine.Close(context.Background()); err != nil {
			log.Error("could not close sandbox engine", "error", err)
		}
	}()

	pool, err := worker.NewPool(logger, conf.Tournament.Workers)
	if err != nil {
		return fmt.Errorf("could not create worker pool: %w", err)
	}

	botRepo := repository.NewBotRepository()
	matchRepo := repository.NewMatchRepository()

	tournament := usecase.NewTournament(logger, botRepo, matchRepo, engine, mirror, conf.Tournament.GameConcurrency)
	botManager := usecase.NewBotManager(logger, botRepo, matchRepo, engine, pool, tournament, conf.Tournament.BoardSizes)

	server := rest.NewServer(logger, conf.HTTP, rest.NewHandler(logger, botManager, pool))

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		if httpErr := server.Start(); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		err = fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("could not shutdown HTTP server", "error", shutdownErr)
	}

	if shutdownErr := pool.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("could not shutdown worker pool", "error", shutdownErr)
	}

	return err
}

// initMirror - connects the optional Redis result mirror. The returned mirror is nil when it is disabled.
func initMirror(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.ResultMirror, func(), error) {
	if !conf.Redis.Enabled {
		return nil, func() {}, nil
	}

	if conf.Redis.Host == "" {
		return nil, nil, ErrAddrNotFound
	}

	redisAddrString := conf.Redis.GetRedisAddr()

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeFn := func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}

	return repository.NewResultMirror(redisStorage.Connection), closeFn, nil
}
