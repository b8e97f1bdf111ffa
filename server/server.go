package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/tradepulse/ws-gateway/broker"
	"github.com/tradepulse/ws-gateway/websocket"
)

// Server wraps the HTTP listener that fronts the gateway.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer creates the HTTP server and registers the gateway routes.
func NewServer(addr string, wsHandler, tokenHandler http.HandlerFunc, shutdownTimeout time.Duration) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler)
	mux.HandleFunc("/token", tokenHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// Shutdown drains the gateway: stop accepting connections, close the
// live ones, wait for their delivery pumps, then release the broker.
func (s *Server) Shutdown(manager *websocket.Manager, messageBroker broker.MessageBroker) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing WebSocket connections...")
	manager.CloseAll("Server shutting down")

	log.Println("Waiting for delivery pumps...")
	done := make(chan struct{})
	go func() {
		manager.WaitForCompletion()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All connections drained")
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded, forcing exit")
	}

	log.Println("Closing message broker...")
	if err := messageBroker.Close(); err != nil {
		log.Printf("Broker closure error: %v", err)
	}

	log.Println("Shutdown complete")
}
