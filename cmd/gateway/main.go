package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/services"
	"chatnet/internal/infrastructure/gateway"
	"chatnet/internal/infrastructure/monitoring"
	"chatnet/internal/infrastructure/reliability"
	repositories "chatnet/internal/infrastructure/repositories"
	"chatnet/pkg/circuitbreaker"
	"chatnet/pkg/config"
	"chatnet/pkg/logger"
	"chatnet/pkg/retry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/chatnet/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize repository factory. The gateway and the API share the
	// same store when redis is enabled; with memory repositories each
	// process holds its own copy.
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	roomRepo := repoFactory.CreateRoomRepository()
	messageRepo := repoFactory.CreateMessageRepository()
	roomLocker := repoFactory.CreateRoomLocker()

	// Initialize services
	roomService := services.NewRoomService(roomRepo, roomLocker, domain.DedupPolicy(cfg.Rooms.DedupPolicy))
	messageService := services.NewMessageService(messageRepo, roomRepo)
	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// The persistence path goes through retry + circuit breaker so a
	// degraded store cannot stall fanout.
	persistService := reliability.NewMessageServiceWrapper(
		messageService,
		retry.DefaultConfig(),
		circuitbreaker.DefaultConfig(),
		log,
	)

	prometheusCollector := monitoring.NewPrometheusCollector()

	wsServer := gateway.NewWebSocketServer(
		authService,
		roomService,
		persistService,
		prometheusCollector,
		gateway.Options{
			PingInterval:       cfg.Gateway.PingInterval,
			PongTimeout:        cfg.Gateway.PongTimeout,
			WriteTimeout:       cfg.Gateway.WriteTimeout,
			PersistMessages:    cfg.Gateway.PersistMessages,
			MembershipCacheTTL: cfg.Gateway.MembershipCacheTTL,
		},
		log,
	)
	defer wsServer.Close()

	// Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	mux.HandleFunc("/health", wsServer.HealthCheck)
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:    cfg.Gateway.Address,
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting ChatNet Gateway on %s", cfg.Gateway.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Gateway failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down ChatNet Gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Gateway.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during gateway shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing gateway", "error", closeErr)
		}
	}

	log.Info("ChatNet Gateway stopped")
}
