package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"pulse-chat/auth"
	"pulse-chat/infrastructure/grpc/server"
	"pulse-chat/infrastructure/ws"
	"pulse-chat/internal"
	"pulse-chat/moderation"
	"pulse-chat/repositories"
	"pulse-chat/runtime"
	"pulse-chat/runtime/workers"
	"pulse-chat/services"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource of the process so deferred cleanups always execute before exit.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	censored, err := moderation.NewEmbeddedLoader().LoadAll("censored")
	if err != nil {
		return fmt.Errorf("cannot load censored words: %w", err)
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(censored.Words, replacement, log)
	if err != nil {
		return fmt.Errorf("moderator failed: %w", err)
	}
	log.Info("Censored words loaded", "words", len(censored.Words), "languages", censored.Languages)

	// 4. Supervision & Orchestration
	authenticator := auth.NewAuthenticator(config.AuthSecret, config.AuthIssuer, config.AuthTokenDuration)
	orchestrator := runtime.NewOrchestrator(
		log,
		workers.NewSupervisor(log, config.RestartInterval),
		authenticator,
		repositories.NewRoomRepository(db, log),
		repositories.NewBreakerMessageStore(
			repositories.NewMessageRepository(db, log, config.LimitMessages), log,
			repositories.BreakerConfig{MaxFailures: uint32(config.StoreMaxFailures), Timeout: config.StoreBreakerTimeout}),
		moderator,
		runtime.Config{
			DeliveryTimeout:      config.DeliveryTimeout,
			TransitionBufferSize: config.TransitionBufferSize,
			HealthInterval:       config.HealthInterval,
		},
	)
	users, closeUsers, err := userRepository(config, db)
	if err != nil {
		return err
	}
	defer closeUsers()
	authService := services.NewAuthService(users, authenticator)
	chatService := services.NewChatService(orchestrator)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Load(ctx); err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	errChan := make(chan error, 3)
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator failed to start: %w", err)
		}
	}()

	// 6. gRPC Server
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer := server.NewGRPCServer(log, authenticator, authService, chatService, config.ConnectionBufferSize)
	go func() {
		log.Info("Starting gRPC server", "address", grpcAddress)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 7. WebSocket & REST gateway
	gateway := ws.NewGateway(log, authenticator, authService, chatService, ws.Config{
		AllowedOrigins:       config.Origins(),
		ConnectionBufferSize: config.ConnectionBufferSize,
		FrameRate:            float64(config.FrameRate),
		FrameBurst:           config.FrameBurst,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.HTTPPort),
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Starting HTTP gateway", "address", httpServer.Addr, "origins", config.Origins())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		orchestrator.Stop()
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP gateway did not stop cleanly", "error", err)
	}
	grpcServer.GracefulStop()
	orchestrator.Stop()
	log.Info("Program stopped cleanly")
	return nil
}

// userRepository picks the account store. Postgres lets several servers share accounts.
func userRepository(config internal.Config, db *badger.DB) (repositories.IUserRepository, func(), error) {
	if config.UserStore != internal.UserStorePostgres {
		return repositories.NewUserRepository(db), func() {}, nil
	}
	pg, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := pg.PingContext(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	if err := repositories.MigrateUsers(ctx, pg); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return repositories.NewPostgresUserRepository(pg), func() { _ = pg.Close() }, nil
}
