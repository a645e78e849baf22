package main

import (
	"context"
	"dm-relay/auth"
	"dm-relay/contract"
	"dm-relay/infrastructure/grpc/server"
	"dm-relay/infrastructure/rest"
	"dm-relay/infrastructure/ws"
	"dm-relay/internal"
	"dm-relay/moderation"
	"dm-relay/repositories"
	"dm-relay/runtime"
	"dm-relay/runtime/workers"
	"dm-relay/services"
	"dm-relay/session"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run owns every resource so that deferred cleanups execute before exiting.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageRepository.Close() }()

	// 3. Relay, registry and supervised workers
	var filter contract.ContentFilter
	if config.EnableModeration {
		moderator, err := moderation.NewDefaultModerator(logger, charReplacement)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
		}
		filter = moderator
	}

	relay := runtime.NewRelay(logger,
		workers.NewSupervisor(logger, config.RestartInterval),
		runtime.NewRegistry(),
		messageRepository,
		runtime.RelayConfig{
			MaxContentLength: config.MaxContentLength,
			IdleTimeout:      config.IdleTimeout,
			MetricInterval:   config.MetricInterval,
			Filter:           filter,
		})
	relay.Start(ctx)

	// 4. HTTP: REST routes and websocket endpoint
	verifier := auth.NewTokenVerifier(config.JWTSecret)
	wsHandler := ws.NewHandler(ctx, logger, relay,
		session.Config{BufferSize: config.ConnectionBufferSize},
		config.IdleTimeout, config.Origins())
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: rest.NewRouter(logger, services.NewChatService(relay), verifier, wsHandler, config.Origins()),
	}

	// 5. gRPC health
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.Host, config.GrpcPort))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on gRPC port %d: %w", config.GrpcPort, err)
	}
	healthServer := server.NewHealthServer(logger)

	errChan := make(chan error, 2)
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	healthServer.Serving()

	// 6. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 7. Graceful shutdown: stop accepting, close sessions, drain workers
	logger.Info("Shutting down gracefully...")
	healthServer.NotServing()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	relay.Stop()
	healthServer.Stop(shutdownCtx)
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
