package main

import (
	"chat-room/domain"
	grpcserver "chat-room/infrastructure/grpc/server"
	httpserver "chat-room/infrastructure/http/server"
	"chat-room/internal"
	"chat-room/moderation"
	"chat-room/repositories"
	"chat-room/runtime/workers"
	"chat-room/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat room terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Returning instead of exiting lets the deferred cleanups close the database.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	moderator, err := moderation.NewModerator(moderation.ParseWords(config.CensoredWords), charReplacement)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator build failed: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := repositories.OpenBadger(config.BadgerFilepath, config.BadgerInMemory, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, inspectMapper)
	}

	// 3. Stores, service and presence sweeper
	clock := domain.SystemClock{}
	participants := repositories.NewParticipantRepository(db, logger, clock)
	messages, err := repositories.NewMessageRepository(db, logger, clock)
	if err != nil {
		return exitRuntime, fmt.Errorf("message log opening failed: %w", err)
	}
	defer func() { _ = messages.Close() }()
	chatService := services.NewChatService(logger, participants, messages, moderator, clock, services.Config{
		StoreTimeout:        config.StoreTimeout,
		DefaultMessageLimit: config.DefaultMessageLimit,
	})

	grpcServer, healthServer := grpcserver.NewHealthServer(logger)
	presence := repositories.NewPresenceRepository(db, logger, participants, messages)
	sweeper := workers.NewPresenceSweeper(logger, presence, healthServer, workers.SweeperConfig{
		SweepInterval:  config.SweepInterval,
		StaleThreshold: config.StaleThreshold,
		StoreTimeout:   config.StoreTimeout,
	})
	supervisor := workers.NewSupervisor(logger, config.RestartInterval).Add(sweeper)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		supervisor.Run(ctx)
	}()

	// 5. gRPC health server
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	grpcListener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	go func() {
		logger.Info("Starting gRPC health server", "address", grpcAddress)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 6. HTTP chat API
	httpAddress := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              httpAddress,
		Handler:           httpserver.NewRouter(logger, httpserver.NewChatServer(logger, chatService)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", httpAddress, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code, runErr := exitOK, error(nil)
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful Shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcServer.GracefulStop()
	stop()
	supervisor.Stop()
	<-supervised
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func inspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	entry := repositories.DescribeEntry(key, val)
	row.Type = entry.Kind
	row.Detail = entry.Detail
	return row
}
