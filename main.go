package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradepulse/ws-gateway/auth"
	"github.com/tradepulse/ws-gateway/broker"
	"github.com/tradepulse/ws-gateway/config"
	"github.com/tradepulse/ws-gateway/server"
	"github.com/tradepulse/ws-gateway/websocket"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	// Upstream event ingest from backend services
	messageBroker, err := broker.NewRedisBroker(cfg.RedisAddr, broker.RetryPolicy{
		MaxRetries:      uint64(cfg.BrokerMaxRetries),
		InitialInterval: cfg.BrokerInitialBackoff,
		MaxInterval:     cfg.BrokerMaxBackoff,
	})
	if err != nil {
		log.Fatalf("Failed to create Redis broker: %v", err)
	}

	// Connection registry and fan-out engine
	manager := websocket.NewManager()
	manager.SetPresenceNotifier(broker.NewPresencePublisher(messageBroker))

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))
	handler := websocket.NewHandler(manager, messageBroker, verifier)

	srv := server.NewServer(
		cfg.ListenAddr,
		handler.HandleWebSocket,
		auth.TokenHandler([]byte(cfg.JWTSecret)),
		cfg.ShutdownTimeout,
	)

	// Start pumping backend events into the manager
	go func() {
		if err := handler.ListenForEvents(ctx); err != nil {
			log.Fatalf("Event listener failed: %v", err)
		}
	}()

	go srv.Start()
	log.Printf("Trading event gateway started on %s", cfg.ListenAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	cancel()
	srv.Shutdown(manager, messageBroker)
}
