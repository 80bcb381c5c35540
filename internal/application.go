package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-hub/internal/config"
	"github.com/rocketscienceinc/tictactoe-hub/internal/repository"
	"github.com/rocketscienceinc/tictactoe-hub/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-hub/internal/service"
	"github.com/rocketscienceinc/tictactoe-hub/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-hub/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-hub/transport/rest"
	"github.com/rocketscienceinc/tictactoe-hub/transport/tcp"
	"github.com/rocketscienceinc/tictactoe-hub/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// OpenUserRepository connects to the configured user store. The returned func releases it.
func OpenUserRepository(ctx context.Context, conf *config.Config) (repository.UserRepository, func() error, error) {
	switch conf.Storage {
	case config.StorageSQLite:
		sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open sqlite storage: %w", err)
		}

		if err = sqliteStorage.Init(ctx); err != nil {
			_ = sqliteStorage.Close()
			return nil, nil, fmt.Errorf("could not init sqlite storage: %w", err)
		}

		return repository.NewSQLiteUserRepository(sqliteStorage.Connection), sqliteStorage.Close, nil
	default:
		redisAddrString := conf.Redis.GetRedisAddr()
		if conf.Redis.Host == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		return repository.NewUserRepository(redisStorage.Connection), redisStorage.Close, nil
	}
}

// RunApp - runs the application until SIGINT or SIGTERM.
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

	return Run(ctx, logger, conf)
}

// Run serves until ctx is done or a server fails. Storage is closed only after every server has drained.
func Run(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	userRepo, closeStorage, err := OpenUserRepository(ctx, conf)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closeStorage(); closeErr != nil {
			log.Error("could not close user storage", "error", closeErr)
		}
	}()

	authService := service.NewAuthService(logger, userRepo)

	if conf.UserDatabase != "" {
		users, readErr := repository.ReadUserDatabase(conf.UserDatabase)
		if readErr != nil {
			return fmt.Errorf("could not read user database: %w", readErr)
		}

		if _, err = authService.Import(ctx, users); err != nil {
			return fmt.Errorf("could not import users: %w", err)
		}
	}

	router := usecase.NewRouter(logger)
	registry := tictactoe.NewRegistry(logger, router, conf.Hub.MaxRooms)
	dispatcher := usecase.NewDispatcher(logger, authService, registry, router, usecase.Limits{
		MaxViolations: conf.Hub.MaxViolations,
		OutboxSize:    conf.Hub.OutboxSize,
	})

	// a failing server cancels groupCtx, which stops the others
	group, groupCtx := errgroup.WithContext(ctx)

	// run HTTP server
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, registry).Start(groupCtx, conf.HTTPPort); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	// run Websocket server
	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := websocket.New(logger, dispatcher).Start(groupCtx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}
		return nil
	})

	// run TCP server
	group.Go(func() error {
		log.Info("Starting TCP server", "port", conf.TCPPort)
		if tcpErr := tcp.New(logger, dispatcher).Start(groupCtx, conf.TCPPort); tcpErr != nil {
			return fmt.Errorf("TCP server error: %w", tcpErr)
		}
		return nil
	})

	if err = group.Wait(); err != nil {
		log.Error("server failed, shutting down", "error", err)
		return err
	}

	log.Info("Application context canceled, servers stopped")

	return nil
}
